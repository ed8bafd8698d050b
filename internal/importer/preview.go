package importer

import (
	"regexp"
	"strings"

	"github.com/tmasson/registre/internal/domain"
)

const previewSampleSize = 5

// PreviewColumn summarizes one source column for the mapping wizard: a
// suggested field key and type derived from the data, plus sample values.
type PreviewColumn struct {
	Header        string           `json:"header"`
	SuggestedKey  string           `json:"suggestedKey"`
	SuggestedType domain.FieldType `json:"suggestedType"`
	Samples       []string         `json:"samples"`
}

// Preview is what the mapping wizard renders before the operator declares
// column actions.
type Preview struct {
	Columns  []PreviewColumn `json:"columns"`
	RowCount int             `json:"rowCount"`
}

// BuildPreview profiles every column of a parsed table. Types are suggested
// from the inferred values of the first rows; the operator can always
// override them in the mapping.
func BuildPreview(table Table) Preview {
	preview := Preview{
		Columns:  make([]PreviewColumn, 0, len(table.Headers)),
		RowCount: len(table.Rows),
	}

	for idx, header := range table.Headers {
		column := PreviewColumn{
			Header:       header,
			SuggestedKey: SuggestFieldKey(header),
			Samples:      []string{},
		}

		var inferred []any
		for _, row := range table.Rows {
			if idx >= len(row) {
				continue
			}
			value := Infer(row[idx])
			if value == nil {
				continue
			}
			inferred = append(inferred, value)
			if len(column.Samples) < previewSampleSize {
				if text := domain.StringifyValue(value); text != nil {
					column.Samples = append(column.Samples, *text)
				}
			}
		}

		column.SuggestedType = suggestType(inferred)
		preview.Columns = append(preview.Columns, column)
	}

	return preview
}

// suggestType picks the narrowest field type covering every non-empty value.
func suggestType(values []any) domain.FieldType {
	if len(values) == 0 {
		return domain.FieldTypeText
	}

	allBool := true
	allNumber := true
	allDate := true
	for _, value := range values {
		switch v := value.(type) {
		case bool:
			allNumber = false
			allDate = false
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			allBool = false
			allDate = false
		case string:
			allBool = false
			allNumber = false
			if !isoDatePattern.MatchString(v) {
				allDate = false
			}
		default:
			allBool = false
			allNumber = false
			allDate = false
		}
	}

	switch {
	case allBool:
		return domain.FieldTypeCheckbox
	case allNumber:
		return domain.FieldTypeNumber
	case allDate:
		return domain.FieldTypeDate
	default:
		return domain.FieldTypeText
	}
}

var (
	keyInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)
	keyEdges        = regexp.MustCompile(`^_+|_+$`)
)

// SuggestFieldKey derives a storable field key from a source header.
func SuggestFieldKey(header string) string {
	key := strings.ToLower(strings.TrimSpace(header))
	key = keyInvalidChars.ReplaceAllString(key, "_")
	key = keyEdges.ReplaceAllString(key, "")
	if key == "" {
		return "colonne"
	}
	return key
}
