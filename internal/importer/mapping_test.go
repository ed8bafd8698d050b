package importer

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/tmasson/registre/internal/domain"
)

func baseCategories() []domain.Category {
	return []domain.Category{
		{
			ID:   uuid.New(),
			Name: "Ressources Humaines",
			Fields: []domain.FieldDefinition{
				{Key: "salaire", Label: "Salaire", Type: domain.FieldTypeNumber},
				{Key: "date_embauche", Label: "Date d'embauche", Type: domain.FieldTypeDate},
			},
		},
	}
}

func TestResolveMappingHappyPath(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Salaire", "Commentaire"}
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	plan, errs := ResolveMapping(headers, actions, categories)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if plan.UniqueKeyColumn != "ID" {
		t.Fatalf("expected ID as unique key column, got %q", plan.UniqueKeyColumn)
	}
	if plan.Columns["Salaire"].Kind != domain.PlanMapField {
		t.Fatalf("expected Salaire to map, got %+v", plan.Columns["Salaire"])
	}
	// Undeclared columns are silently ignored.
	if plan.Columns["Commentaire"].Kind != domain.PlanIgnore {
		t.Fatalf("expected Commentaire to be ignored, got %+v", plan.Columns["Commentaire"])
	}
}

func TestResolveMappingRejectsDuplicateTargets(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Salaire", "Paie"}
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
		"Paie":    {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	plan, errs := ResolveMapping(headers, actions, categories)
	if len(errs) == 0 {
		t.Fatalf("expected duplicate target error")
	}
	if len(plan.Columns) != 0 {
		t.Fatalf("expected no plan on validation failure, got %+v", plan)
	}
	found := false
	for _, msg := range errs {
		if strings.Contains(msg, "both target field") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected duplicate-target message, got %v", errs)
	}
}

func TestResolveMappingRejectsExistingKeyCreation(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Salaire"}
	actions := map[string]domain.ColumnAction{
		"ID": {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {
			Kind:       domain.ColumnActionCreate,
			CategoryID: categories[0].ID,
			Draft:      domain.FieldDraft{Key: "salaire", Label: "Salaire", Type: domain.FieldTypeNumber},
		},
	}

	_, errs := ResolveMapping(headers, actions, categories)
	if len(errs) == 0 {
		t.Fatalf("expected rejection of create with existing key")
	}
}

func TestResolveMappingRedirectsExistingCategoryName(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Prime"}
	actions := map[string]domain.ColumnAction{
		"ID": {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Prime": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "ressources humaines",
			Draft:           domain.FieldDraft{Key: "prime", Label: "Prime", Type: domain.FieldTypeNumber},
		},
	}

	plan, errs := ResolveMapping(headers, actions, categories)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	entry := plan.Columns["Prime"]
	if entry.Kind != domain.PlanCreateInExistingCateg {
		t.Fatalf("expected redirect to existing category, got %+v", entry)
	}
	if entry.CategoryID != categories[0].ID {
		t.Fatalf("expected category %s, got %s", categories[0].ID, entry.CategoryID)
	}
	if len(plan.NewCategories) != 0 {
		t.Fatalf("expected no new categories, got %+v", plan.NewCategories)
	}
}

func TestResolveMappingGroupsNewCategoryColumns(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Marque", "Immatriculation"}
	actions := map[string]domain.ColumnAction{
		"ID": {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Marque": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "Vehicules",
			Draft:           domain.FieldDraft{Key: "marque", Label: "Marque", Type: domain.FieldTypeText},
		},
		"Immatriculation": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "vehicules",
			Draft:           domain.FieldDraft{Key: "immatriculation", Label: "Immatriculation", Type: domain.FieldTypeText},
		},
	}

	plan, errs := ResolveMapping(headers, actions, categories)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(plan.NewCategories) != 1 {
		t.Fatalf("expected one grouped category, got %+v", plan.NewCategories)
	}
	if len(plan.NewCategories[0].Fields) != 2 {
		t.Fatalf("expected 2 fields in grouped category, got %+v", plan.NewCategories[0])
	}
}

func TestResolveMappingRequiresUniqueKeyColumn(t *testing.T) {
	categories := baseCategories()
	headers := []string{"Salaire"}
	actions := map[string]domain.ColumnAction{
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	_, errs := ResolveMapping(headers, actions, categories)
	if len(errs) != 1 || !strings.Contains(errs[0], domain.UniqueKeyField) {
		t.Fatalf("expected missing unique key error, got %v", errs)
	}
}

func TestResolveMappingCollectsAllErrors(t *testing.T) {
	categories := baseCategories()
	headers := []string{"A", "B"}
	actions := map[string]domain.ColumnAction{
		"A": {Kind: domain.ColumnActionMap, TargetKey: "inconnu"},
		"B": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "Divers",
			Draft:           domain.FieldDraft{Key: "clé invalide", Label: "X", Type: domain.FieldTypeText},
		},
	}

	_, errs := ResolveMapping(headers, actions, categories)
	// Unknown target, invalid key, and the missing unique key column.
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %v", errs)
	}
}

func TestResolveMappingListNeedsOptions(t *testing.T) {
	categories := baseCategories()
	headers := []string{"ID", "Statut"}
	actions := map[string]domain.ColumnAction{
		"ID": {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Statut": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "Divers",
			Draft:           domain.FieldDraft{Key: "statut", Label: "Statut", Type: domain.FieldTypeList},
		},
	}

	_, errs := ResolveMapping(headers, actions, categories)
	if len(errs) != 1 || !strings.Contains(errs[0], "option") {
		t.Fatalf("expected list-options error, got %v", errs)
	}
}
