package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/repository"
)

// ErrDuplicateKey is returned when creating a record whose unique key is
// already held by a non-deleted record.
var ErrDuplicateKey = errors.New("duplicate numero_unique")

// Stores bundles the repositories one record operation runs against. Callers
// hand in transaction-bound stores when the operation must share a batch
// transaction.
type Stores struct {
	Records repository.RecordRepository
	Audit   repository.AuditRepository
}

// NewStores builds stores bound to the given querier (a pool or a tx).
func NewStores(q db.Querier) Stores {
	return Stores{
		Records: repository.NewRecordRepository(q),
		Audit:   repository.NewAuditRepository(q),
	}
}

// TxRunner provides the transaction boundary single-record operations wrap
// themselves in. *db.Connection satisfies it.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}

// StoreFactory builds stores for a querier; injected so tests can substitute
// stubs.
type StoreFactory func(q db.Querier) Stores

// Service is the upsert engine: insert-or-update with a field-level audit
// trail, soft delete, and mass assignment.
type Service struct {
	runner TxRunner
	stores StoreFactory
}

// NewService wires the engine to its transaction runner and store factory.
func NewService(runner TxRunner, stores StoreFactory) *Service {
	return &Service{runner: runner, stores: stores}
}

// UpsertInput carries the caller-provided state for one record write. A nil
// ID selects the create path. On update, nil OwnerID/CategoryID and keys
// absent from Extra are carried over from the stored record; only provided
// values participate in the diff.
type UpsertInput struct {
	ID         *uuid.UUID
	UniqueKey  string
	OwnerID    *uuid.UUID
	CategoryID *uuid.UUID
	Extra      domain.FieldBag
}

// UpsertOptions tags the write with its actor and provenance.
type UpsertOptions struct {
	ActingUserID uuid.UUID
	Import       bool
	FileName     string
}

// UpsertResult reports what the engine did.
type UpsertResult struct {
	ID      uuid.UUID
	Created bool
	Changed bool
}

// Upsert runs one upsert inside its own transaction.
func (s *Service) Upsert(ctx context.Context, in UpsertInput, opts UpsertOptions) (UpsertResult, error) {
	var result UpsertResult
	err := s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		var txErr error
		result, txErr = s.UpsertWith(ctx, s.stores(tx), in, opts)
		return txErr
	})
	return result, err
}

// UpsertWith runs one upsert against externally-provided stores, typically
// transaction-bound by a batching caller. Audit-write failures are logged
// and never roll back the record write: record consistency is prioritized
// over completeness of the audit trail.
func (s *Service) UpsertWith(ctx context.Context, st Stores, in UpsertInput, opts UpsertOptions) (UpsertResult, error) {
	if in.ID != nil {
		return s.update(ctx, st, in, opts)
	}
	return s.create(ctx, st, in, opts)
}

func (s *Service) update(ctx context.Context, st Stores, in UpsertInput, opts UpsertOptions) (UpsertResult, error) {
	current, err := st.Records.GetByID(ctx, *in.ID)
	if err != nil {
		return UpsertResult{}, err
	}
	if current.Deleted {
		return UpsertResult{}, domain.ErrNotFound
	}

	newKey := current.UniqueKey
	if in.UniqueKey != "" {
		newKey = in.UniqueKey
	}
	newOwner := current.OwnerID
	if in.OwnerID != nil {
		newOwner = in.OwnerID
	}
	newCategory := current.CategoryID
	if in.CategoryID != nil {
		newCategory = in.CategoryID
	}
	merged := domain.ShallowMergePreferNew(current.Extra, in.Extra)

	var changes []domain.FieldChange
	if change, changed := domain.DiffScalar(domain.UniqueKeyField, current.UniqueKey, newKey); changed {
		changes = append(changes, change)
	}
	if change, changed := domain.DiffScalar(domain.AuditFieldOwner, current.OwnerID, newOwner); changed {
		changes = append(changes, change)
	}
	if change, changed := domain.DiffScalar(domain.AuditFieldCategory, current.CategoryID, newCategory); changed {
		changes = append(changes, change)
	}
	changes = append(changes, domain.DiffFieldBags(current.Extra, merged)...)

	if len(changes) == 0 {
		return UpsertResult{ID: current.ID, Changed: false}, nil
	}

	updated := current
	updated.UniqueKey = newKey
	updated.OwnerID = newOwner
	updated.CategoryID = newCategory
	updated.Extra = merged

	if _, err := st.Records.Update(ctx, updated); err != nil {
		return UpsertResult{}, err
	}

	action := domain.AuditActionUpdate
	if opts.Import {
		action = domain.AuditActionImportUpdate
	}
	for _, change := range changes {
		s.appendAudit(ctx, st, domain.AuditEntry{
			RecordID: current.ID,
			FieldKey: change.Key,
			OldValue: change.Old,
			NewValue: change.New,
			UserID:   actingUser(opts),
			Action:   action,
			FileName: opts.FileName,
		})
	}

	return UpsertResult{ID: current.ID, Changed: true}, nil
}

func (s *Service) create(ctx context.Context, st Stores, in UpsertInput, opts UpsertOptions) (UpsertResult, error) {
	if in.UniqueKey == "" {
		return UpsertResult{}, fmt.Errorf("%s is required", domain.UniqueKeyField)
	}

	_, err := st.Records.GetByUniqueKey(ctx, in.UniqueKey)
	if err == nil {
		return UpsertResult{}, fmt.Errorf("%w: a record with %s %q already exists",
			ErrDuplicateKey, domain.UniqueKeyField, in.UniqueKey)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return UpsertResult{}, err
	}

	inserted, err := st.Records.Insert(ctx, domain.NewRecord(in.UniqueKey, in.OwnerID, in.CategoryID, in.Extra))
	if err != nil {
		return UpsertResult{}, err
	}

	action := domain.AuditActionCreate
	if opts.Import {
		action = domain.AuditActionImportCreate
	}

	initial := []domain.FieldChange{{Key: domain.UniqueKeyField, New: domain.StringifyValue(inserted.UniqueKey)}}
	if inserted.OwnerID != nil {
		initial = append(initial, domain.FieldChange{Key: domain.AuditFieldOwner, New: domain.StringifyValue(inserted.OwnerID)})
	}
	if inserted.CategoryID != nil {
		initial = append(initial, domain.FieldChange{Key: domain.AuditFieldCategory, New: domain.StringifyValue(inserted.CategoryID)})
	}
	initial = append(initial, domain.DiffFieldBags(nil, inserted.Extra)...)

	for _, change := range initial {
		s.appendAudit(ctx, st, domain.AuditEntry{
			RecordID: inserted.ID,
			FieldKey: change.Key,
			OldValue: nil,
			NewValue: change.New,
			UserID:   actingUser(opts),
			Action:   action,
			FileName: opts.FileName,
		})
	}

	return UpsertResult{ID: inserted.ID, Created: true, Changed: true}, nil
}

// SoftDelete marks a record deleted inside its own transaction.
func (s *Service) SoftDelete(ctx context.Context, id uuid.UUID, actingUserID uuid.UUID) error {
	return s.runner.WithTx(ctx, func(tx pgx.Tx) error {
		return s.SoftDeleteWith(ctx, s.stores(tx), id, actingUserID)
	})
}

// SoftDeleteWith marks a record deleted. Rows are never removed; one
// synthetic audit entry with a sentinel field name records the action.
// Deleting an already-deleted record fails without writing a second entry.
func (s *Service) SoftDeleteWith(ctx context.Context, st Stores, id uuid.UUID, actingUserID uuid.UUID) error {
	current, err := st.Records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if current.Deleted {
		return domain.ErrAlreadyDeleted
	}

	if err := st.Records.MarkDeleted(ctx, id); err != nil {
		return err
	}

	s.appendAudit(ctx, st, domain.AuditEntry{
		RecordID: id,
		FieldKey: domain.AuditFieldDeleted,
		OldValue: domain.StringifyValue(current.UniqueKey),
		NewValue: nil,
		UserID:   &actingUserID,
		Action:   domain.AuditActionDelete,
	})
	return nil
}

// AuditTrail lists the audit entries of a record, most recent first.
func (s *Service) AuditTrail(ctx context.Context, st Stores, recordID uuid.UUID) ([]domain.AuditEntry, error) {
	return st.Audit.ListForRecord(ctx, recordID)
}

func (s *Service) appendAudit(ctx context.Context, st Stores, entry domain.AuditEntry) {
	if err := st.Audit.Append(ctx, entry); err != nil {
		slog.Error("audit write failed",
			"record_id", entry.RecordID,
			"field", entry.FieldKey,
			"action", entry.Action,
			"error", err,
		)
	}
}

func actingUser(opts UpsertOptions) *uuid.UUID {
	if opts.ActingUserID == uuid.Nil {
		return nil
	}
	id := opts.ActingUserID
	return &id
}

// Stores builds stores for a querier using the service's factory.
func (s *Service) Stores(q db.Querier) Stores {
	return s.stores(q)
}

// Runner exposes the transaction runner for batching callers.
func (s *Service) Runner() TxRunner {
	return s.runner
}
