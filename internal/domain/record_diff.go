package domain

import (
	"encoding/json"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// FieldChange captures one field whose stringified value differs between two
// versions of a record. Old is nil when the field had no prior value.
type FieldChange struct {
	Key string
	Old *string
	New *string
}

// StringifyValue renders a normalized scalar the way audit entries store it.
// nil maps to a nil pointer so the audit row keeps NULL rather than an empty
// string.
func StringifyValue(value any) *string {
	if value == nil {
		return nil
	}
	var out string
	switch typed := value.(type) {
	case string:
		out = typed
	case bool:
		out = strconv.FormatBool(typed)
	case float64:
		out = strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		out = strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		out = strconv.Itoa(typed)
	case int64:
		out = strconv.FormatInt(typed, 10)
	case uuid.UUID:
		out = typed.String()
	case *uuid.UUID:
		if typed == nil {
			return nil
		}
		out = typed.String()
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return nil
		}
		out = string(encoded)
	}
	return &out
}

// DiffScalar compares one tracked scalar slot and returns the change, if any.
func DiffScalar(key string, oldValue, newValue any) (FieldChange, bool) {
	oldStr := StringifyValue(oldValue)
	newStr := StringifyValue(newValue)
	if stringPtrEqual(oldStr, newStr) {
		return FieldChange{}, false
	}
	return FieldChange{Key: key, Old: oldStr, New: newStr}, true
}

// DiffFieldBags compares two extra-field bags over the union of their keys
// and returns the changed fields in deterministic key order.
func DiffFieldBags(prev, next FieldBag) []FieldChange {
	keys := make(map[string]struct{}, len(prev)+len(next))
	for key := range prev {
		keys[key] = struct{}{}
	}
	for key := range next {
		keys[key] = struct{}{}
	}

	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)

	var changes []FieldChange
	for _, key := range ordered {
		if change, changed := DiffScalar(key, prev[key], next[key]); changed {
			changes = append(changes, change)
		}
	}
	return changes
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
