package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const actingUserIDKey contextKey = "actingUserID"

// ContextWithUserID returns a new context carrying the acting user.
func ContextWithUserID(ctx context.Context, id uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actingUserIDKey, id)
}

// UserIDFromContext retrieves the acting user from the context, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	value := ctx.Value(actingUserIDKey)
	if value == nil {
		return uuid.Nil, false
	}
	id, ok := value.(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// UserIDFromRequest resolves the acting user for a request: the context wins,
// then the X-User-ID header set by the desktop shell.
func UserIDFromRequest(r *http.Request) (uuid.UUID, error) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		return id, nil
	}
	raw := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if raw == "" {
		return uuid.Nil, fmt.Errorf("acting user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid acting user id: %w", err)
	}
	return id, nil
}
