package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tmasson/registre/internal/auth"
	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/repository"
	"github.com/tmasson/registre/pkg/fieldcheck"
)

// Handler exposes record reads, upserts, soft deletes, the audit trail and
// mass assignment over HTTP. Reads go straight to the pool-bound stores;
// writes go through the service so they pick up transactions and auditing.
type Handler struct {
	service    *Service
	records    repository.RecordRepository
	audit      repository.AuditRepository
	categories repository.CategoryRepository
}

// NewHTTPHandler wraps the record service and its pool-bound read stores.
func NewHTTPHandler(service *Service, records repository.RecordRepository, audit repository.AuditRepository, categories repository.CategoryRepository) http.Handler {
	return &Handler{service: service, records: records, audit: audit, categories: categories}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/assign"):
		h.handleAssign(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/assign-percentage"):
		h.handleAssignPercentage(w, r)
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/unassign-percentage"):
		h.handleUnassignPercentage(w, r)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/audit"):
		h.handleAudit(w, r)
	case r.Method == http.MethodPost:
		h.handleUpsert(w, r)
	case r.Method == http.MethodDelete:
		h.handleDelete(w, r)
	case r.Method == http.MethodGet:
		h.handleGet(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

type upsertPayload struct {
	ID         *uuid.UUID      `json:"id"`
	UniqueKey  string          `json:"numero_unique"`
	OwnerID    *uuid.UUID      `json:"owner_id"`
	CategoryID *uuid.UUID      `json:"category_id"`
	Extra      domain.FieldBag `json:"extra"`
}

func (h *Handler) handleUpsert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload upsertPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Manual creations into a category are validated against its
	// definitions. Updates are partial (absent keys carry over) and import
	// rows may legitimately carry orphan keys, so both skip this check.
	if payload.ID == nil && payload.CategoryID != nil && payload.Extra != nil {
		category, err := h.categories.GetByID(r.Context(), *payload.CategoryID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if check := fieldcheck.Validate(payload.Extra, category.Fields); !check.IsValid {
			writeJSON(w, http.StatusUnprocessableEntity, check)
			return
		}
	}

	result, err := h.service.Upsert(r.Context(), UpsertInput{
		ID:         payload.ID,
		UniqueKey:  strings.TrimSpace(payload.UniqueKey),
		OwnerID:    payload.OwnerID,
		CategoryID: payload.CategoryID,
		Extra:      payload.Extra,
	}, UpsertOptions{ActingUserID: actingUserID})
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, ErrDuplicateKey):
			status = http.StatusConflict
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if key := strings.TrimSpace(query.Get("key")); key != "" {
		record, err := h.records.GetByUniqueKey(r.Context(), key)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	if id, ok := trailingID(r.URL.Path); ok {
		record, err := h.records.GetByID(r.Context(), id)
		if err != nil {
			h.writeLookupError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, record)
		return
	}

	var categoryID *uuid.UUID
	if raw := strings.TrimSpace(query.Get("category")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid category id: %v", err), http.StatusBadRequest)
			return
		}
		categoryID = &id
	}

	if raw := strings.TrimSpace(query.Get("owner")); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid owner id: %v", err), http.StatusBadRequest)
			return
		}
		list, err := h.records.ListByOwner(r.Context(), ownerID)
		if err != nil {
			http.Error(w, fmt.Sprintf("list records: %v", err), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	list, err := h.records.List(r.Context(), categoryID)
	if err != nil {
		http.Error(w, fmt.Sprintf("list records: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := trailingID(r.URL.Path)
	if !ok {
		http.Error(w, "record id is required", http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.SoftDelete(r.Context(), id, actingUserID); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyDeleted):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/audit")
	id, ok := trailingID(path)
	if !ok {
		http.Error(w, "record id is required", http.StatusBadRequest)
		return
	}

	entries, err := h.audit.ListForRecord(r.Context(), id)
	if err != nil {
		http.Error(w, fmt.Sprintf("list audit trail: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type assignPayload struct {
	RecordIDs []uuid.UUID `json:"record_ids"`
	UserID    uuid.UUID   `json:"user_id"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload assignPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if len(payload.RecordIDs) == 0 || payload.UserID == uuid.Nil {
		http.Error(w, "record_ids and user_id are required", http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	changed, err := h.service.AssignOwner(r.Context(), payload.RecordIDs, payload.UserID, actingUserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

type assignPercentagePayload struct {
	RecordIDs []uuid.UUID    `json:"record_ids"`
	Shares    []PercentShare `json:"shares"`
}

func (h *Handler) handleAssignPercentage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload assignPercentagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	assigned, err := h.service.DistributeByPercentage(r.Context(), payload.RecordIDs, payload.Shares, actingUserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, assigned)
}

type unassignPercentagePayload struct {
	OwnerID uuid.UUID `json:"owner_id"`
	Percent float64   `json:"percent"`
}

func (h *Handler) handleUnassignPercentage(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload unassignPercentagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}
	if payload.OwnerID == uuid.Nil {
		http.Error(w, "owner_id is required", http.StatusBadRequest)
		return
	}

	actingUserID, err := auth.UserIDFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	unassigned, err := h.service.UnassignByPercentage(r.Context(), payload.OwnerID, payload.Percent, actingUserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"unassigned": unassigned})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

// trailingID parses the last path segment as a record id. Paths ending on the
// collection itself ("/records") yield false.
func trailingID(path string) (uuid.UUID, bool) {
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx == -1 || idx == len(trimmed)-1 {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(trimmed[idx+1:])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
