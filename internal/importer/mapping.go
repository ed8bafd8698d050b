package importer

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tmasson/registre/internal/domain"
)

// ResolveMapping turns the operator's per-column actions into a validated
// mapping plan. All violations are collected rather than short-circuited so
// the caller can display the full list; on any violation no plan is produced.
//
// Columns with no declared action are ignored.
func ResolveMapping(
	headers []string,
	actions map[string]domain.ColumnAction,
	categories []domain.Category,
) (domain.MappingPlan, []string) {
	var errs []string

	knownKeys := map[string]uuid.UUID{}
	keyTypes := map[string]domain.FieldType{}
	for _, category := range categories {
		for _, field := range category.Fields {
			knownKeys[field.Key] = category.ID
			keyTypes[field.Key] = field.Type
		}
	}

	plan := domain.MappingPlan{Columns: make(map[string]domain.PlanEntry, len(headers))}
	mapTargets := map[string]string{}  // field key -> claiming column
	createKeys := map[string]string{}  // proposed key -> claiming column
	newCategoryIndex := map[string]int{} // lowercased name -> index in plan.NewCategories

	for _, header := range headers {
		action, declared := actions[header]
		if !declared || action.Kind == domain.ColumnActionIgnore {
			plan.Columns[header] = domain.PlanEntry{Kind: domain.PlanIgnore}
			continue
		}

		switch action.Kind {
		case domain.ColumnActionMap:
			target := strings.TrimSpace(action.TargetKey)
			if target == "" {
				errs = append(errs, fmt.Sprintf("column %q is mapped but has no target field", header))
				continue
			}

			if claimedBy, dup := mapTargets[target]; dup {
				errs = append(errs, fmt.Sprintf("columns %q and %q both target field %q", claimedBy, header, target))
				continue
			}
			mapTargets[target] = header

			if target == domain.UniqueKeyField {
				plan.UniqueKeyColumn = header
				plan.Columns[header] = domain.PlanEntry{Kind: domain.PlanMapUniqueKey, TargetKey: target}
				continue
			}

			if _, exists := knownKeys[target]; !exists {
				errs = append(errs, fmt.Sprintf("column %q targets unknown field %q", header, target))
				continue
			}
			plan.Columns[header] = domain.PlanEntry{
				Kind:       domain.PlanMapField,
				TargetKey:  target,
				TargetType: keyTypes[target],
			}

		case domain.ColumnActionCreate:
			draft := action.Draft
			draft.Key = strings.TrimSpace(draft.Key)
			draft.Label = strings.TrimSpace(draft.Label)

			valid := true
			if draft.Label == "" {
				errs = append(errs, fmt.Sprintf("column %q: new field needs a label", header))
				valid = false
			}
			if !domain.ValidFieldKey(draft.Key) {
				errs = append(errs, fmt.Sprintf("column %q: invalid field key %q (letters, digits and underscores only)", header, draft.Key))
				valid = false
			} else {
				if claimedBy, dup := createKeys[draft.Key]; dup {
					errs = append(errs, fmt.Sprintf("columns %q and %q both create field key %q", claimedBy, header, draft.Key))
					valid = false
				} else {
					createKeys[draft.Key] = header
				}
				if _, exists := knownKeys[draft.Key]; exists {
					errs = append(errs, fmt.Sprintf("column %q: field key %q already exists, map to it instead", header, draft.Key))
					valid = false
				}
			}
			if draft.Type == domain.FieldTypeList && len(draft.Options) == 0 {
				errs = append(errs, fmt.Sprintf("column %q: list field %q needs at least one option", header, draft.Key))
				valid = false
			}

			entry, entryErrs := resolveCreateTarget(header, action, draft, categories, &plan, newCategoryIndex)
			if len(entryErrs) > 0 {
				errs = append(errs, entryErrs...)
				valid = false
			}
			if valid {
				plan.Columns[header] = entry
			}

		default:
			errs = append(errs, fmt.Sprintf("column %q has unsupported action %q", header, action.Kind))
		}
	}

	if plan.UniqueKeyColumn == "" {
		errs = append(errs, fmt.Sprintf("no column is mapped to %s", domain.UniqueKeyField))
	}

	if len(errs) > 0 {
		return domain.MappingPlan{}, errs
	}
	return plan, nil
}

// resolveCreateTarget picks the category a created field lands in. A literal
// new-category name matching an existing category case-insensitively is
// redirected to that category; columns sharing a genuinely new name are
// grouped into one category-creation request.
func resolveCreateTarget(
	header string,
	action domain.ColumnAction,
	draft domain.FieldDraft,
	categories []domain.Category,
	plan *domain.MappingPlan,
	newCategoryIndex map[string]int,
) (domain.PlanEntry, []string) {
	if action.CategoryID != uuid.Nil {
		for _, category := range categories {
			if category.ID == action.CategoryID {
				return domain.PlanEntry{
					Kind:       domain.PlanCreateInExistingCateg,
					TargetKey:  draft.Key,
					CategoryID: category.ID,
					Draft:      draft,
				}, nil
			}
		}
		return domain.PlanEntry{}, []string{
			fmt.Sprintf("column %q targets unknown category %s", header, action.CategoryID),
		}
	}

	name := strings.TrimSpace(action.NewCategoryName)
	if name == "" {
		return domain.PlanEntry{}, []string{
			fmt.Sprintf("column %q: new field needs a target category", header),
		}
	}

	for _, category := range categories {
		if category.NameMatches(name) {
			return domain.PlanEntry{
				Kind:       domain.PlanCreateInExistingCateg,
				TargetKey:  draft.Key,
				CategoryID: category.ID,
				Draft:      draft,
			}, nil
		}
	}

	lowered := strings.ToLower(name)
	idx, seen := newCategoryIndex[lowered]
	if !seen {
		idx = len(plan.NewCategories)
		newCategoryIndex[lowered] = idx
		plan.NewCategories = append(plan.NewCategories, domain.CategoryDraft{Name: name})
	}
	plan.NewCategories[idx].Fields = append(plan.NewCategories[idx].Fields, draft)

	return domain.PlanEntry{
		Kind:         domain.PlanCreateInNewCategory,
		TargetKey:    draft.Key,
		CategoryName: plan.NewCategories[idx].Name,
		Draft:        draft,
	}, nil
}
