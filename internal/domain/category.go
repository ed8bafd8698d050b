package domain

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType represents the type of a configurable field within a category.
type FieldType string

const (
	FieldTypeText          FieldType = "text"
	FieldTypeNumber        FieldType = "number"
	FieldTypeNumberHistory FieldType = "number_history"
	FieldTypeDate          FieldType = "date"
	FieldTypeList          FieldType = "list"
	FieldTypeCheckbox      FieldType = "checkbox"
	FieldTypeFormula       FieldType = "formula"
)

// UniqueKeyField is the reserved key identifying a record across the whole
// system. It is not owned by any category and exactly one import column may
// target it.
const UniqueKeyField = "numero_unique"

var fieldKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidFieldKey reports whether key is usable as a stable field identifier.
func ValidFieldKey(key string) bool {
	return fieldKeyPattern.MatchString(key)
}

// FieldDefinition describes one typed data slot within a category. Keys are
// stable: once records carry values under a key, the key never changes
// meaning.
type FieldDefinition struct {
	Key          string    `json:"key"`
	Label        string    `json:"label"`
	Type         FieldType `json:"type"`
	Required     bool      `json:"required"`
	Visible      bool      `json:"visible"`
	ReadOnly     bool      `json:"read_only"`
	Options      []string  `json:"options,omitempty"`
	MaxLength    int       `json:"max_length,omitempty"`
	DisplayOrder int       `json:"display_order"`
	Header       bool      `json:"header"`
	Formula      string    `json:"formula,omitempty"`
}

// Category groups an ordered list of field definitions. Categories are never
// hard-deleted, only hidden, because audit history references their fields.
type Category struct {
	ID           uuid.UUID         `json:"id"`
	Name         string            `json:"name"`
	Fields       []FieldDefinition `json:"fields"`
	DisplayOrder int               `json:"display_order"`
	Hidden       bool              `json:"hidden"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewCategory creates a category with the immutable pattern.
func NewCategory(name string, fields []FieldDefinition) Category {
	now := time.Now()
	return Category{
		ID:        uuid.New(),
		Name:      name,
		Fields:    copyFields(fields),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// WithField returns a new category with the field added, or updated when a
// definition with the same key already exists.
func (c Category) WithField(field FieldDefinition) Category {
	newFields := copyFields(c.Fields)

	found := false
	for i, existing := range newFields {
		if existing.Key == field.Key {
			newFields[i] = field
			found = true
			break
		}
	}
	if !found {
		newFields = append(newFields, field)
	}

	return Category{
		ID:           c.ID,
		Name:         c.Name,
		Fields:       newFields,
		DisplayOrder: c.DisplayOrder,
		Hidden:       c.Hidden,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    time.Now(),
	}
}

// FindField looks a definition up by key.
func (c Category) FindField(key string) (FieldDefinition, bool) {
	for _, field := range c.Fields {
		if field.Key == key {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// NameMatches compares category names the way imports do: case-insensitively
// and ignoring surrounding whitespace.
func (c Category) NameMatches(name string) bool {
	return strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name))
}

// GetFieldsAsJSONB returns the field definitions as JSONB for storage.
func (c Category) GetFieldsAsJSONB() (json.RawMessage, error) {
	if c.Fields == nil {
		return json.RawMessage("[]"), nil
	}
	return json.Marshal(c.Fields)
}

// FromJSONBFields decodes field definitions stored as JSONB.
func FromJSONBFields(fieldsJSON json.RawMessage) ([]FieldDefinition, error) {
	var fields []FieldDefinition
	err := json.Unmarshal(fieldsJSON, &fields)
	return fields, err
}

func copyFields(fields []FieldDefinition) []FieldDefinition {
	if fields == nil {
		return nil
	}
	newFields := make([]FieldDefinition, len(fields))
	copy(newFields, fields)
	return newFields
}
