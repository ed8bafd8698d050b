package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/tmasson/registre/internal/domain"
)

// CategoryRepository defines the category/field-definition store. Both write
// operations are idempotent: EnsureCategory on the case-insensitive category
// name, AddField on the field key within its category.
type CategoryRepository interface {
	List(ctx context.Context) ([]domain.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error)
	EnsureCategory(ctx context.Context, name string, fields []domain.FieldDefinition) (domain.Category, error)
	AddField(ctx context.Context, categoryID uuid.UUID, field domain.FieldDefinition) (domain.Category, error)
	Hide(ctx context.Context, id uuid.UUID) error
}

// RecordRepository defines the record store. Lookups by unique key exclude
// soft-deleted rows; lookups by id do not, so callers can distinguish
// "missing" from "deleted".
type RecordRepository interface {
	GetByUniqueKey(ctx context.Context, uniqueKey string) (domain.Record, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error)
	List(ctx context.Context, categoryID *uuid.UUID) ([]domain.Record, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Record, error)
	Insert(ctx context.Context, record domain.Record) (domain.Record, error)
	Update(ctx context.Context, record domain.Record) (domain.Record, error)
	MarkDeleted(ctx context.Context, id uuid.UUID) error
}

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry domain.AuditEntry) error
	ListForRecord(ctx context.Context, recordID uuid.UUID) ([]domain.AuditEntry, error)
}

// ImportLogRepository stores import row errors for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, fileName string, limit int, offset int) ([]domain.ImportLogEntry, error)
}

// UserRepository resolves assignment targets and audit actors.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}
