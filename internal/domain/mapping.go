package domain

import "github.com/google/uuid"

// ColumnActionKind discriminates the operator's per-column intent.
type ColumnActionKind string

const (
	ColumnActionMap    ColumnActionKind = "map"
	ColumnActionCreate ColumnActionKind = "create"
	ColumnActionIgnore ColumnActionKind = "ignore"
)

// FieldDraft is the definition proposed for a column whose action creates a
// new field during import.
type FieldDraft struct {
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	Type      FieldType `json:"type"`
	Required  bool      `json:"required"`
	Options   []string  `json:"options,omitempty"`
	MaxLength int       `json:"max_length,omitempty"`
}

// Definition expands the draft into a full field definition. Created fields
// start visible and editable.
func (d FieldDraft) Definition(displayOrder int) FieldDefinition {
	return FieldDefinition{
		Key:          d.Key,
		Label:        d.Label,
		Type:         d.Type,
		Required:     d.Required,
		Visible:      true,
		Options:      d.Options,
		MaxLength:    d.MaxLength,
		DisplayOrder: displayOrder,
	}
}

// ColumnAction is the operator's declared handling for one source column.
// Exactly one variant applies, selected by Kind:
//   - ColumnActionMap: TargetKey names an existing field (or the unique key).
//   - ColumnActionCreate: Draft describes the new field; the target category
//     is either CategoryID (existing) or NewCategoryName (to be created).
//   - ColumnActionIgnore: the column is skipped.
type ColumnAction struct {
	Kind            ColumnActionKind `json:"kind"`
	TargetKey       string           `json:"target_key,omitempty"`
	CategoryID      uuid.UUID        `json:"category_id,omitempty"`
	NewCategoryName string           `json:"new_category_name,omitempty"`
	Draft           FieldDraft       `json:"draft,omitempty"`
}

// PlanKind discriminates a resolved plan entry.
type PlanKind string

const (
	PlanMapUniqueKey          PlanKind = "map_unique_key"
	PlanMapField              PlanKind = "map_field"
	PlanCreateInExistingCateg PlanKind = "create_in_existing_category"
	PlanCreateInNewCategory   PlanKind = "create_in_new_category"
	PlanIgnore                PlanKind = "ignore"
)

// PlanEntry is one fully resolved column instruction.
type PlanEntry struct {
	Kind PlanKind

	// TargetKey is set for map entries and for create entries (the new
	// field's key).
	TargetKey string

	// TargetType carries the mapped field's declared type so normalization
	// can apply type-directed cleanup, e.g. thousands separators on numbers.
	TargetType FieldType

	// CategoryID is set for PlanCreateInExistingCateg.
	CategoryID uuid.UUID

	// CategoryName is set for PlanCreateInNewCategory and names the grouped
	// category-creation request the column belongs to.
	CategoryName string

	Draft FieldDraft
}

// CategoryDraft groups the field drafts of all columns that target the same
// not-yet-existing category name. One draft becomes one category-creation
// request.
type CategoryDraft struct {
	Name   string
	Fields []FieldDraft
}

// MappingPlan is the validated, import-scoped result of mapping resolution.
// Columns is keyed by source header; UniqueKeyColumn names the single column
// mapped to the unique key.
type MappingPlan struct {
	Columns         map[string]PlanEntry
	UniqueKeyColumn string
	NewCategories   []CategoryDraft
}
