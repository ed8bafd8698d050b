package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record lookup matches nothing, or only a
// soft-deleted row where deleted rows are excluded.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyDeleted is returned when soft-deleting a record twice.
var ErrAlreadyDeleted = errors.New("record already deleted")

// Record is the primary tracked entity ("individu"), identified by an
// external unique key and carrying a bag of extra field values keyed by
// FieldDefinition.Key.
type Record struct {
	ID         uuid.UUID  `json:"id"`
	UniqueKey  string     `json:"numero_unique"`
	OwnerID    *uuid.UUID `json:"owner_id,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	Extra      FieldBag   `json:"extra"`
	Deleted    bool       `json:"deleted"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewRecord creates a record with the immutable pattern.
func NewRecord(uniqueKey string, ownerID, categoryID *uuid.UUID, extra FieldBag) Record {
	now := time.Now()
	return Record{
		ID:         uuid.New(),
		UniqueKey:  uniqueKey,
		OwnerID:    copyUUID(ownerID),
		CategoryID: copyUUID(categoryID),
		Extra:      extra.Clone(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// WithExtra returns a new record with the extra-field bag replaced.
func (r Record) WithExtra(extra FieldBag) Record {
	out := r
	out.Extra = extra.Clone()
	out.UpdatedAt = time.Now()
	return out
}

// WithOwner returns a new record with the owner replaced.
func (r Record) WithOwner(ownerID *uuid.UUID) Record {
	out := r
	out.OwnerID = copyUUID(ownerID)
	out.UpdatedAt = time.Now()
	return out
}

// GetExtraAsJSONB returns the extra-field bag as JSONB for storage.
func (r Record) GetExtraAsJSONB() (json.RawMessage, error) {
	if r.Extra == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(r.Extra)
}

// ShallowMergePreferNew merges two field bags: values from next overwrite
// values from prev, keys absent from next carry over from prev. This is the
// update semantics of the extra-field bag; it is deliberately a named
// strategy rather than an accident of map iteration.
func ShallowMergePreferNew(prev, next FieldBag) FieldBag {
	merged := make(FieldBag, len(prev)+len(next))
	for key, value := range prev {
		merged[key] = value
	}
	for key, value := range next {
		merged[key] = value
	}
	return merged
}

func copyUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
