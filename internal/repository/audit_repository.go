package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/domain"
)

type auditRepository struct {
	q db.Querier
}

// NewAuditRepository creates an audit repository bound to the querier.
func NewAuditRepository(q db.Querier) AuditRepository {
	return &auditRepository{q: q}
}

func (r *auditRepository) Append(ctx context.Context, entry domain.AuditEntry) error {
	var fileName any
	if entry.FileName != "" {
		fileName = entry.FileName
	}

	_, err := r.q.Exec(ctx,
		`INSERT INTO audit_log (record_id, field_key, old_value, new_value, user_id, action, file_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.RecordID,
		entry.FieldKey,
		entry.OldValue,
		entry.NewValue,
		nullableUUID(entry.UserID),
		string(entry.Action),
		fileName,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListForRecord(ctx context.Context, recordID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, record_id, field_key, old_value, new_value, user_id, action, file_name, created_at
		 FROM audit_log
		 WHERE record_id = $1
		 ORDER BY created_at DESC, id DESC`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry    domain.AuditEntry
			userID   pgtype.UUID
			fileName pgtype.Text
			action   string
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.RecordID,
			&entry.FieldKey,
			&entry.OldValue,
			&entry.NewValue,
			&userID,
			&action,
			&fileName,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.UserID = uuidFromPgtype(userID)
		entry.Action = domain.AuditAction(action)
		if fileName.Valid {
			entry.FileName = fileName.String
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
