package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/domain"
)

// ErrFieldKeyInUse is returned when a field key is already claimed by another
// category. Record field bags are flat maps addressed by key alone, so keys
// are kept globally unique.
var ErrFieldKeyInUse = errors.New("field key already in use by another category")

type categoryRepository struct {
	q db.Querier
}

// NewCategoryRepository creates a category repository bound to the querier.
func NewCategoryRepository(q db.Querier) CategoryRepository {
	return &categoryRepository{q: q}
}

const categoryColumns = `id, name, fields, display_order, hidden, created_at, updated_at`

func (r *categoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+categoryColumns+` FROM categories ORDER BY display_order, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = $1`,
		id,
	)
	category, err := scanCategory(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Category{}, fmt.Errorf("category %s not found", id)
		}
		return domain.Category{}, err
	}
	return category, nil
}

// EnsureCategory returns the existing category matching name
// case-insensitively, adding any missing fields, or creates it with the given
// initial fields. Both paths leave field keys globally unique.
func (r *categoryRepository) EnsureCategory(ctx context.Context, name string, fields []domain.FieldDefinition) (domain.Category, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE lower(name) = lower($1)`,
		name,
	)
	existing, err := scanCategory(row)
	if err == nil {
		result := existing
		for _, field := range fields {
			if _, found := result.FindField(field.Key); found {
				continue
			}
			result, err = r.AddField(ctx, result.ID, field)
			if err != nil {
				return domain.Category{}, err
			}
		}
		return result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Category{}, err
	}

	for _, field := range fields {
		if err := r.checkKeyAvailable(ctx, uuid.Nil, field.Key); err != nil {
			return domain.Category{}, err
		}
	}

	category := domain.NewCategory(name, fields)
	fieldsJSON, err := category.GetFieldsAsJSONB()
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to marshal fields: %w", err)
	}

	created := r.q.QueryRow(ctx,
		`INSERT INTO categories (id, name, fields, display_order)
		 VALUES ($1, $2, $3, (SELECT COALESCE(MAX(display_order), 0) + 1 FROM categories))
		 RETURNING `+categoryColumns,
		category.ID,
		category.Name,
		fieldsJSON,
	)
	result, err := scanCategory(created)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to create category: %w", err)
	}
	return result, nil
}

// AddField appends a field definition to a category. Adding a key the
// category already has is a no-op; a key held by another category is
// rejected.
func (r *categoryRepository) AddField(ctx context.Context, categoryID uuid.UUID, field domain.FieldDefinition) (domain.Category, error) {
	category, err := r.GetByID(ctx, categoryID)
	if err != nil {
		return domain.Category{}, err
	}

	if _, found := category.FindField(field.Key); found {
		return category, nil
	}

	if err := r.checkKeyAvailable(ctx, categoryID, field.Key); err != nil {
		return domain.Category{}, err
	}

	if field.DisplayOrder == 0 {
		field.DisplayOrder = len(category.Fields) + 1
	}
	updated := category.WithField(field)

	fieldsJSON, err := updated.GetFieldsAsJSONB()
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to marshal fields: %w", err)
	}

	row := r.q.QueryRow(ctx,
		`UPDATE categories SET fields = $2, updated_at = now() WHERE id = $1 RETURNING `+categoryColumns,
		categoryID,
		fieldsJSON,
	)
	result, err := scanCategory(row)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to add field to category: %w", err)
	}
	return result, nil
}

func (r *categoryRepository) Hide(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE categories SET hidden = TRUE, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to hide category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %s not found", id)
	}
	return nil
}

// checkKeyAvailable rejects a field key claimed by any other category.
func (r *categoryRepository) checkKeyAvailable(ctx context.Context, categoryID uuid.UUID, key string) error {
	rows, err := r.q.Query(ctx,
		`SELECT id, fields FROM categories WHERE id <> $1`,
		categoryID,
	)
	if err != nil {
		return fmt.Errorf("failed to check field key: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id         uuid.UUID
			fieldsJSON []byte
		)
		if err := rows.Scan(&id, &fieldsJSON); err != nil {
			return fmt.Errorf("failed to scan category fields: %w", err)
		}
		fields, err := domain.FromJSONBFields(fieldsJSON)
		if err != nil {
			return fmt.Errorf("category %s: failed to decode fields: %w", id, err)
		}
		for _, field := range fields {
			if field.Key == key {
				return fmt.Errorf("%w: %s", ErrFieldKeyInUse, key)
			}
		}
	}
	return rows.Err()
}

func scanCategory(row pgx.Row) (domain.Category, error) {
	var (
		category   domain.Category
		fieldsJSON []byte
	)
	err := row.Scan(
		&category.ID,
		&category.Name,
		&fieldsJSON,
		&category.DisplayOrder,
		&category.Hidden,
		&category.CreatedAt,
		&category.UpdatedAt,
	)
	if err != nil {
		return domain.Category{}, err
	}

	fields, err := domain.FromJSONBFields(fieldsJSON)
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to unmarshal fields for category %s: %w", category.Name, err)
	}
	category.Fields = fields
	return category, nil
}
