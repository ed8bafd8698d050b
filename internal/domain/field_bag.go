package domain

import (
	"encoding/json"
	"fmt"
)

// FieldBag holds a record's extra field values keyed by FieldDefinition.Key.
type FieldBag map[string]any

// ParseFieldBag decodes a JSONB-encoded field bag. Malformed payloads return
// an explicit error; callers decide whether an empty bag is an acceptable
// substitute instead of the decode failure being swallowed inline.
func ParseFieldBag(raw []byte) (FieldBag, error) {
	if len(raw) == 0 {
		return FieldBag{}, nil
	}
	var bag FieldBag
	if err := json.Unmarshal(raw, &bag); err != nil {
		return nil, fmt.Errorf("malformed field bag: %w", err)
	}
	if bag == nil {
		bag = FieldBag{}
	}
	return bag, nil
}

// Clone returns a shallow copy of the bag.
func (b FieldBag) Clone() FieldBag {
	out := make(FieldBag, len(b))
	for key, value := range b {
		out[key] = value
	}
	return out
}
