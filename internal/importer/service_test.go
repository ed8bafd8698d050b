package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmasson/registre/internal/db"
	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/records"
	"github.com/tmasson/registre/internal/repository"
)

type stubRunner struct{}

func (stubRunner) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return fn(nil)
}

type stubRecordRepo struct {
	byID      map[uuid.UUID]domain.Record
	insertErr map[string]error
}

func newStubRecordRepo() *stubRecordRepo {
	return &stubRecordRepo{byID: map[uuid.UUID]domain.Record{}, insertErr: map[string]error{}}
}

func (r *stubRecordRepo) GetByUniqueKey(ctx context.Context, uniqueKey string) (domain.Record, error) {
	for _, record := range r.byID {
		if record.UniqueKey == uniqueKey && !record.Deleted {
			return record, nil
		}
	}
	return domain.Record{}, domain.ErrNotFound
}

func (r *stubRecordRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Record, error) {
	record, ok := r.byID[id]
	if !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	return record, nil
}

func (r *stubRecordRepo) List(ctx context.Context, categoryID *uuid.UUID) ([]domain.Record, error) {
	var out []domain.Record
	for _, record := range r.byID {
		if record.Deleted {
			continue
		}
		if categoryID != nil && (record.CategoryID == nil || *record.CategoryID != *categoryID) {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (r *stubRecordRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Record, error) {
	var out []domain.Record
	for _, record := range r.byID {
		if !record.Deleted && record.OwnerID != nil && *record.OwnerID == ownerID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *stubRecordRepo) Insert(ctx context.Context, record domain.Record) (domain.Record, error) {
	if err := r.insertErr[record.UniqueKey]; err != nil {
		return domain.Record{}, err
	}
	r.byID[record.ID] = record
	return record, nil
}

func (r *stubRecordRepo) Update(ctx context.Context, record domain.Record) (domain.Record, error) {
	if _, ok := r.byID[record.ID]; !ok {
		return domain.Record{}, domain.ErrNotFound
	}
	r.byID[record.ID] = record
	return record, nil
}

func (r *stubRecordRepo) MarkDeleted(ctx context.Context, id uuid.UUID) error {
	record, ok := r.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	record.Deleted = true
	r.byID[id] = record
	return nil
}

type stubAuditRepo struct {
	entries []domain.AuditEntry
}

func (r *stubAuditRepo) Append(ctx context.Context, entry domain.AuditEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubAuditRepo) ListForRecord(ctx context.Context, recordID uuid.UUID) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for _, entry := range r.entries {
		if entry.RecordID == recordID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type stubCategoryRepo struct {
	categories []domain.Category
	ensured    []string
	addedKeys  []string
}

func (r *stubCategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	return r.categories, nil
}

func (r *stubCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Category, error) {
	for _, category := range r.categories {
		if category.ID == id {
			return category, nil
		}
	}
	return domain.Category{}, fmt.Errorf("category %s not found", id)
}

func (r *stubCategoryRepo) EnsureCategory(ctx context.Context, name string, fields []domain.FieldDefinition) (domain.Category, error) {
	r.ensured = append(r.ensured, name)
	for _, category := range r.categories {
		if category.NameMatches(name) {
			return category, nil
		}
	}
	created := domain.NewCategory(name, fields)
	r.categories = append(r.categories, created)
	return created, nil
}

func (r *stubCategoryRepo) AddField(ctx context.Context, categoryID uuid.UUID, field domain.FieldDefinition) (domain.Category, error) {
	r.addedKeys = append(r.addedKeys, field.Key)
	for i, category := range r.categories {
		if category.ID == categoryID {
			r.categories[i] = category.WithField(field)
			return r.categories[i], nil
		}
	}
	return domain.Category{}, fmt.Errorf("category %s not found", categoryID)
}

func (r *stubCategoryRepo) Hide(ctx context.Context, id uuid.UUID) error {
	return nil
}

type stubImportLogRepo struct {
	entries []domain.ImportLogEntry
}

func (r *stubImportLogRepo) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func (r *stubImportLogRepo) List(ctx context.Context, fileName string, limit, offset int) ([]domain.ImportLogEntry, error) {
	return r.entries, nil
}

type fixture struct {
	service    *Service
	records    *stubRecordRepo
	audit      *stubAuditRepo
	categories *stubCategoryRepo
	importLogs *stubImportLogRepo
}

func newFixture(categories []domain.Category, batchSize int) fixture {
	recordRepo := newStubRecordRepo()
	auditRepo := &stubAuditRepo{}
	categoryRepo := &stubCategoryRepo{categories: categories}
	logRepo := &stubImportLogRepo{}

	engine := records.NewService(stubRunner{}, func(q db.Querier) records.Stores {
		return records.Stores{Records: recordRepo, Audit: auditRepo}
	})

	return fixture{
		service:    NewService(categoryRepo, logRepo, engine, batchSize),
		records:    recordRepo,
		audit:      auditRepo,
		categories: categoryRepo,
		importLogs: logRepo,
	}
}

var _ repository.RecordRepository = (*stubRecordRepo)(nil)
var _ repository.CategoryRepository = (*stubCategoryRepo)(nil)

func rhCategories() []domain.Category {
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

func rhActions() map[string]domain.ColumnAction {
	return map[string]domain.ColumnAction{
		"ID":           {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire":      {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
		"DateEmbauche": {Kind: domain.ColumnActionMap, TargetKey: "date_embauche"},
	}
}

func TestRunCreatesRecordsWithNormalizedValues(t *testing.T) {
	f := newFixture(rhCategories(), 0)
	actingUser := uuid.New()

	data := "ID,Salaire,DateEmbauche\nA-42,1'250.50,31/12/2023\n"
	summary := f.service.Run(context.Background(), RunRequest{
		FileName:     "paie.csv",
		Data:         strings.NewReader(data),
		Actions:      rhActions(),
		ActingUserID: actingUser,
	})

	if !summary.Success || summary.Error != "" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.InsertedCount != 1 || summary.UpdatedCount != 0 || summary.ErrorCount != 0 {
		t.Fatalf("unexpected counts: %+v", summary)
	}

	record, err := f.records.GetByUniqueKey(context.Background(), "A-42")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if record.Extra["salaire"] != 1250.5 {
		t.Fatalf("expected salaire 1250.5, got %v", record.Extra["salaire"])
	}
	if record.Extra["date_embauche"] != "2023-12-31" {
		t.Fatalf("expected date 2023-12-31, got %v", record.Extra["date_embauche"])
	}

	// One audit entry per initially-set field, tagged as an import creation.
	if len(f.audit.entries) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(f.audit.entries))
	}
	for _, entry := range f.audit.entries {
		if entry.Action != domain.AuditActionImportCreate {
			t.Fatalf("unexpected audit action %q", entry.Action)
		}
		if entry.OldValue != nil {
			t.Fatalf("creation audit should have nil old value")
		}
		if entry.FileName != "paie.csv" {
			t.Fatalf("audit missing file name: %+v", entry)
		}
		if entry.UserID == nil || *entry.UserID != actingUser {
			t.Fatalf("audit missing acting user: %+v", entry)
		}
	}
}

func TestRunUpdatesExistingRecordsByUniqueKey(t *testing.T) {
	f := newFixture(rhCategories(), 0)

	existing := domain.NewRecord("A-42", nil, nil, domain.FieldBag{"salaire": 1000.0})
	f.records.byID[existing.ID] = existing

	data := "ID,Salaire\nA-42,1200\n"
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.csv",
		Data:     strings.NewReader(data),
		Actions:  actions,
	})

	if summary.InsertedCount != 0 || summary.UpdatedCount != 1 || summary.ErrorCount != 0 {
		t.Fatalf("unexpected counts: %+v", summary)
	}

	record := f.records.byID[existing.ID]
	if record.Extra["salaire"] != 1200.0 {
		t.Fatalf("expected updated salaire, got %v", record.Extra["salaire"])
	}
	if len(f.audit.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(f.audit.entries))
	}
	entry := f.audit.entries[0]
	if entry.Action != domain.AuditActionImportUpdate {
		t.Fatalf("unexpected action %q", entry.Action)
	}
	if entry.OldValue == nil || *entry.OldValue != "1000" {
		t.Fatalf("unexpected old value %v", entry.OldValue)
	}
	if entry.NewValue == nil || *entry.NewValue != "1200" {
		t.Fatalf("unexpected new value %v", entry.NewValue)
	}
}

func TestRunCountsRowsMissingUniqueKey(t *testing.T) {
	f := newFixture(rhCategories(), 0)

	data := "ID,Salaire\nA-1,100\n,200\nA-3,300\n"
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.csv",
		Data:     strings.NewReader(data),
		Actions:  actions,
	})

	if summary.InsertedCount != 2 || summary.ErrorCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.InsertedCount+summary.UpdatedCount+summary.ErrorCount != 3 {
		t.Fatalf("counts do not cover all rows: %+v", summary)
	}
	if len(summary.Errors) != 1 || !strings.Contains(summary.Errors[0], "row 3") {
		t.Fatalf("expected row 3 error, got %v", summary.Errors)
	}
	// The failure also lands in the persistent import log.
	if len(f.importLogs.entries) != 1 || f.importLogs.entries[0].RowNumber == nil || *f.importLogs.entries[0].RowNumber != 3 {
		t.Fatalf("expected import log for row 3, got %+v", f.importLogs.entries)
	}
}

func TestRunAbortsOnMappingValidationErrors(t *testing.T) {
	f := newFixture(rhCategories(), 0)

	data := "ID,Salaire\nA-1,100\n"
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "inconnu"},
	}

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.csv",
		Data:     strings.NewReader(data),
		Actions:  actions,
	})

	if summary.Success {
		t.Fatalf("expected failed summary")
	}
	if summary.InsertedCount != 0 || summary.UpdatedCount != 0 {
		t.Fatalf("no rows should be written on validation failure: %+v", summary)
	}
	if len(summary.Errors) == 0 {
		t.Fatalf("expected validation errors in summary")
	}
	if len(f.records.byID) != 0 {
		t.Fatalf("records were written despite validation failure")
	}
}

func TestRunBatchFailureCountsWholeBatch(t *testing.T) {
	f := newFixture(rhCategories(), 2)
	f.records.insertErr["A-2"] = errors.New("disk full")

	data := "ID,Salaire\nA-1,100\nA-2,200\nA-3,300\n"
	actions := map[string]domain.ColumnAction{
		"ID":      {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Salaire": {Kind: domain.ColumnActionMap, TargetKey: "salaire"},
	}

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.csv",
		Data:     strings.NewReader(data),
		Actions:  actions,
	})

	// First batch (A-1, A-2) fails as a unit, second batch (A-3) lands.
	if summary.ErrorCount != 2 {
		t.Fatalf("expected 2 errored rows, got %+v", summary)
	}
	if summary.InsertedCount != 1 {
		t.Fatalf("expected 1 inserted row, got %+v", summary)
	}
	if summary.InsertedCount+summary.UpdatedCount+summary.ErrorCount != 3 {
		t.Fatalf("counts do not cover all rows: %+v", summary)
	}
	found := false
	for _, msg := range summary.Errors {
		if strings.Contains(msg, "batch of 2 rows failed") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected batch failure message, got %v", summary.Errors)
	}
	if _, err := f.records.GetByUniqueKey(context.Background(), "A-3"); err != nil {
		t.Fatalf("expected A-3 to survive later batch: %v", err)
	}
}

func TestRunCreatesCategoriesAndFields(t *testing.T) {
	f := newFixture(rhCategories(), 0)
	existingID := f.categories.categories[0].ID

	data := "ID,Marque,Prime\nA-1,Renault,1'500\n"
	actions := map[string]domain.ColumnAction{
		"ID": {Kind: domain.ColumnActionMap, TargetKey: domain.UniqueKeyField},
		"Marque": {
			Kind:            domain.ColumnActionCreate,
			NewCategoryName: "Vehicules",
			Draft:           domain.FieldDraft{Key: "marque", Label: "Marque", Type: domain.FieldTypeText},
		},
		"Prime": {
			Kind:       domain.ColumnActionCreate,
			CategoryID: existingID,
			Draft:      domain.FieldDraft{Key: "prime", Label: "Prime", Type: domain.FieldTypeNumber},
		},
	}

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "flotte.csv",
		Data:     strings.NewReader(data),
		Actions:  actions,
	})

	if !summary.Success || summary.InsertedCount != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(f.categories.ensured) != 1 || f.categories.ensured[0] != "Vehicules" {
		t.Fatalf("expected Vehicules to be ensured, got %v", f.categories.ensured)
	}
	if len(f.categories.addedKeys) != 1 || f.categories.addedKeys[0] != "prime" {
		t.Fatalf("expected prime to be added, got %v", f.categories.addedKeys)
	}

	record, err := f.records.GetByUniqueKey(context.Background(), "A-1")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if record.Extra["marque"] != "Renault" {
		t.Fatalf("unexpected marque: %v", record.Extra["marque"])
	}
	if record.Extra["prime"] != 1500.0 {
		t.Fatalf("expected cleaned prime 1500, got %v", record.Extra["prime"])
	}
}

func TestRunFailsOnUnreadableSource(t *testing.T) {
	f := newFixture(rhCategories(), 0)

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.pdf",
		Data:     strings.NewReader("not a table"),
		Actions:  rhActions(),
	})

	if summary.Success || summary.Error == "" {
		t.Fatalf("expected fatal summary, got %+v", summary)
	}
	if summary.InsertedCount+summary.UpdatedCount+summary.ErrorCount != 0 {
		t.Fatalf("fatal failure must report zero counts: %+v", summary)
	}
}

func TestRunFailsOnEmptySheet(t *testing.T) {
	f := newFixture(rhCategories(), 0)

	summary := f.service.Run(context.Background(), RunRequest{
		FileName: "paie.csv",
		Data:     strings.NewReader("ID,Salaire\n"),
		Actions:  rhActions(),
	})

	if summary.Success || summary.Error == "" {
		t.Fatalf("expected fatal summary for empty sheet, got %+v", summary)
	}
}
