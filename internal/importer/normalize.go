package importer

import (
	"errors"
	"fmt"

	"github.com/tmasson/registre/internal/domain"
)

// ErrMissingUniqueKey flags a row whose unique-key cell is absent or blank
// after normalization. Such rows never reach persistence but are still
// counted.
var ErrMissingUniqueKey = errors.New("missing numero_unique value")

// NormalizedRecord is one source row reduced to a unique key plus a bag of
// extra field values, ready for the upsert engine.
type NormalizedRecord struct {
	RowNumber int
	UniqueKey string
	Extra     domain.FieldBag
}

// NormalizeRow applies the mapping plan and type inference to one data row.
// Cells beyond the header length are dropped; missing cells were already
// padded with nils by the source parser.
func NormalizeRow(cells []any, headers []string, plan domain.MappingPlan) (NormalizedRecord, error) {
	record := NormalizedRecord{Extra: domain.FieldBag{}}

	for idx, header := range headers {
		if idx >= len(cells) {
			break
		}
		entry, ok := plan.Columns[header]
		if !ok {
			continue
		}

		switch entry.Kind {
		case domain.PlanIgnore:
			continue
		case domain.PlanMapUniqueKey:
			if value := domain.StringifyValue(Infer(cells[idx])); value != nil {
				record.UniqueKey = *value
			}
		case domain.PlanMapField:
			record.Extra[entry.TargetKey] = coerceForType(entry.TargetType, cells[idx])
		case domain.PlanCreateInExistingCateg, domain.PlanCreateInNewCategory:
			record.Extra[entry.TargetKey] = coerceForType(entry.Draft.Type, cells[idx])
		default:
			return NormalizedRecord{}, fmt.Errorf("column %q: unresolved plan entry %q", header, entry.Kind)
		}
	}

	if record.UniqueKey == "" {
		return NormalizedRecord{}, ErrMissingUniqueKey
	}
	return record, nil
}

// coerceForType infers a cell with the field's declared type as a hint:
// numbers get locale-aware cleanup before inference, everything else goes
// through plain inference (dates come out display-formatted either way).
func coerceForType(fieldType domain.FieldType, cell any) any {
	switch fieldType {
	case domain.FieldTypeNumber, domain.FieldTypeNumberHistory:
		if text, ok := cell.(string); ok {
			return Infer(CleanNumber(text))
		}
		return Infer(cell)
	default:
		return Infer(cell)
	}
}
