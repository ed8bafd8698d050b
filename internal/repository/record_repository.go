package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/domain"
)

// recordRepository implements RecordRepository against any db.Querier, so the
// same code runs pool-bound or inside a batch transaction.
type recordRepository struct {
	q db.Querier
}

// NewRecordRepository creates a record repository bound to the given querier.
func NewRecordRepository(q db.Querier) RecordRepository {
	return &recordRepository{q: q}
}

const recordColumns = `id, numero_unique, owner_id, category_id, extra, deleted, created_at, updated_at`

func (r *recordRepository) GetByUniqueKey(ctx context.Context, uniqueKey string) (domain.Record, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE numero_unique = $1 AND NOT deleted`,
		uniqueKey,
	)
	return scanRecord(row)
}

func (r *recordRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM records WHERE id = $1`,
		id,
	)
	return scanRecord(row)
}

func (r *recordRepository) List(ctx context.Context, categoryID *uuid.UUID) ([]domain.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE NOT deleted ORDER BY numero_unique`
	args := []any{}
	if categoryID != nil {
		query = `SELECT ` + recordColumns + ` FROM records WHERE NOT deleted AND category_id = $1 ORDER BY numero_unique`
		args = append(args, *categoryID)
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *recordRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Record, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+recordColumns+` FROM records WHERE NOT deleted AND owner_id = $1 ORDER BY numero_unique`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records by owner: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *recordRepository) Insert(ctx context.Context, record domain.Record) (domain.Record, error) {
	extraJSON, err := record.GetExtraAsJSONB()
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal field bag: %w", err)
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO records (id, numero_unique, owner_id, category_id, extra)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+recordColumns,
		record.ID,
		record.UniqueKey,
		nullableUUID(record.OwnerID),
		nullableUUID(record.CategoryID),
		extraJSON,
	)

	inserted, err := scanRecord(row)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}
	return inserted, nil
}

func (r *recordRepository) Update(ctx context.Context, record domain.Record) (domain.Record, error) {
	extraJSON, err := record.GetExtraAsJSONB()
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to marshal field bag: %w", err)
	}

	row := r.q.QueryRow(ctx,
		`UPDATE records
		 SET numero_unique = $2, owner_id = $3, category_id = $4, extra = $5, updated_at = now()
		 WHERE id = $1
		 RETURNING `+recordColumns,
		record.ID,
		record.UniqueKey,
		nullableUUID(record.OwnerID),
		nullableUUID(record.CategoryID),
		extraJSON,
	)

	updated, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to update record: %w", err)
	}
	return updated, nil
}

func (r *recordRepository) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE records SET deleted = TRUE, updated_at = now() WHERE id = $1 AND NOT deleted`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark record deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanRecord(row pgx.Row) (domain.Record, error) {
	var (
		record     domain.Record
		ownerID    pgtype.UUID
		categoryID pgtype.UUID
		extraJSON  []byte
	)
	err := row.Scan(
		&record.ID,
		&record.UniqueKey,
		&ownerID,
		&categoryID,
		&extraJSON,
		&record.Deleted,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, domain.ErrNotFound
		}
		return domain.Record{}, fmt.Errorf("failed to scan record: %w", err)
	}

	record.OwnerID = uuidFromPgtype(ownerID)
	record.CategoryID = uuidFromPgtype(categoryID)

	extra, err := domain.ParseFieldBag(extraJSON)
	if err != nil {
		// A corrupt bag is surfaced, not silently replaced with an empty one.
		return domain.Record{}, fmt.Errorf("record %s: %w", record.ID, err)
	}
	record.Extra = extra

	return record, nil
}

func collectRecords(rows pgx.Rows) ([]domain.Record, error) {
	records := []domain.Record{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}

func nullableUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	out := pgtype.UUID{Valid: true}
	copy(out.Bytes[:], id[:])
	return out
}

func uuidFromPgtype(value pgtype.UUID) *uuid.UUID {
	if !value.Valid {
		return nil
	}
	id, err := uuid.FromBytes(value.Bytes[:])
	if err != nil {
		return nil
	}
	return &id
}
