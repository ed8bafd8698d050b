// Package fieldcheck validates record field bags against the field
// definitions of a category.
package fieldcheck

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tmasson/registre/internal/domain"
)

// Violation reports one failed check.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Result is the outcome of validating one field bag. Errors block a write;
// warnings are informational, e.g. values with no matching definition left
// behind by imports.
type Result struct {
	IsValid  bool        `json:"is_valid"`
	Errors   []Violation `json:"errors"`
	Warnings []Violation `json:"warnings"`
}

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Validate checks a field bag against the given definitions. Formula and
// read-only fields are computed or system-managed, so their stored values are
// not checked.
func Validate(bag domain.FieldBag, definitions []domain.FieldDefinition) Result {
	result := Result{
		IsValid:  true,
		Errors:   []Violation{},
		Warnings: []Violation{},
	}

	defined := make(map[string]bool, len(definitions))
	for _, def := range definitions {
		defined[def.Key] = true

		value, exists := bag[def.Key]
		if def.Required && (!exists || value == nil) {
			result.fail(Violation{
				Field:   def.Key,
				Message: fmt.Sprintf("required field %q is missing", def.Key),
			})
			continue
		}
		if !exists || value == nil {
			continue
		}
		if def.Type == domain.FieldTypeFormula || def.ReadOnly {
			continue
		}

		if err := checkType(value, def); err != nil {
			result.fail(Violation{Field: def.Key, Message: err.Error(), Value: value})
		}
	}

	for key, value := range bag {
		if !defined[key] {
			result.Warnings = append(result.Warnings, Violation{
				Field:   key,
				Message: fmt.Sprintf("field %q has no definition", key),
				Value:   value,
			})
		}
	}

	return result
}

func (r *Result) fail(v Violation) {
	r.IsValid = false
	r.Errors = append(r.Errors, v)
}

func checkType(value any, def domain.FieldDefinition) error {
	switch def.Type {
	case domain.FieldTypeText:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q expects text, got %T", def.Key, value)
		}
		if def.MaxLength > 0 && len([]rune(text)) > def.MaxLength {
			return fmt.Errorf("field %q exceeds maximum length %d", def.Key, def.MaxLength)
		}
		return nil

	case domain.FieldTypeNumber, domain.FieldTypeNumberHistory:
		if !isNumeric(value) {
			return fmt.Errorf("field %q expects a number, got %T", def.Key, value)
		}
		return nil

	case domain.FieldTypeDate:
		text, ok := value.(string)
		if !ok || !isoDatePattern.MatchString(text) {
			return fmt.Errorf("field %q expects a date in YYYY-MM-DD format", def.Key)
		}
		return nil

	case domain.FieldTypeList:
		text, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %q expects one of its options, got %T", def.Key, value)
		}
		for _, option := range def.Options {
			if strings.EqualFold(option, text) {
				return nil
			}
		}
		return fmt.Errorf("field %q has no option %q", def.Key, text)

	case domain.FieldTypeCheckbox:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q expects a boolean, got %T", def.Key, value)
		}
		return nil

	default:
		return fmt.Errorf("field %q has unknown type %q", def.Key, def.Type)
	}
}

func isNumeric(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}
