package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/records"
	"github.com/tmasson/registre/internal/repository"
)

// DefaultBatchSize is the number of rows committed per transaction when the
// configuration does not say otherwise.
const DefaultBatchSize = 100

// Service drives one import run: read source, resolve mapping, normalize
// rows, upsert in batched transactions, aggregate counts.
type Service struct {
	categories repository.CategoryRepository
	importLogs repository.ImportLogRepository
	engine     *records.Service
	batchSize  int
}

// NewService creates the import orchestrator.
func NewService(
	categories repository.CategoryRepository,
	importLogs repository.ImportLogRepository,
	engine *records.Service,
	batchSize int,
) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Service{
		categories: categories,
		importLogs: importLogs,
		engine:     engine,
		batchSize:  batchSize,
	}
}

// RunRequest describes one import. Either Data (a CSV/XLSX payload) or Table
// (pre-fetched rows, e.g. a remote query result) supplies the source.
type RunRequest struct {
	FileName     string
	Data         io.Reader
	Table        *Table
	Actions      map[string]domain.ColumnAction
	ActingUserID uuid.UUID
}

// Summary is the result shape the UI layer consumes. It always satisfies
// insertedCount + updatedCount + errorCount == rows attempted; structural
// failures abort with the top-level Error and zero counts instead.
type Summary struct {
	Success       bool     `json:"success"`
	InsertedCount int      `json:"insertedCount"`
	UpdatedCount  int      `json:"updatedCount"`
	ErrorCount    int      `json:"errorCount"`
	Errors        []string `json:"errors"`
	Error         string   `json:"error,omitempty"`
}

func fatalSummary(err error) Summary {
	return Summary{Errors: []string{}, Error: err.Error()}
}

// Run executes the whole pipeline. It never returns an error: every failure
// mode is folded into the Summary so one bad row, batch or file cannot
// escape as an exception past this boundary.
func (s *Service) Run(ctx context.Context, req RunRequest) Summary {
	table, err := s.resolveTable(req)
	if err != nil {
		return fatalSummary(err)
	}
	if len(table.Rows) == 0 {
		return fatalSummary(errors.New("no data rows found in source"))
	}

	existing, err := s.categories.List(ctx)
	if err != nil {
		return fatalSummary(fmt.Errorf("failed to load categories: %w", err))
	}

	plan, validationErrs := ResolveMapping(table.Headers, req.Actions, existing)
	if len(validationErrs) > 0 {
		return Summary{
			Errors: validationErrs,
			Error:  "mapping validation failed",
		}
	}

	if err := s.applyFieldCreation(ctx, plan); err != nil {
		return fatalSummary(err)
	}

	summary := Summary{Success: true, Errors: []string{}}
	valid := make([]NormalizedRecord, 0, len(table.Rows))

	for idx, row := range table.Rows {
		rowNumber := idx + 2 // 1-based, counting the header row
		normalized, err := NormalizeRow(row, table.Headers, plan)
		if err != nil {
			summary.ErrorCount++
			message := fmt.Sprintf("row %d: %v", rowNumber, err)
			summary.Errors = append(summary.Errors, message)
			s.logRowError(ctx, req.FileName, rowNumber, err)
			continue
		}
		normalized.RowNumber = rowNumber
		valid = append(valid, normalized)
	}

	for start := 0; start < len(valid); start += s.batchSize {
		end := start + s.batchSize
		if end > len(valid) {
			end = len(valid)
		}
		s.runBatch(ctx, req, valid[start:end], &summary)
	}

	return summary
}

// runBatch commits one batch in one transaction. Row-level failures detected
// inside the batch (conflicts, missing records) are counted and processing
// continues; a transaction-level failure voids the whole batch, counts every
// row as errored under one shared message, and the run moves on to the next
// batch. Failed batches are never retried: forward progress over completeness.
func (s *Service) runBatch(ctx context.Context, req RunRequest, batch []NormalizedRecord, summary *Summary) {
	var inserted, updated int
	var rowErrors []string

	err := s.engine.Runner().WithTx(ctx, func(tx pgx.Tx) error {
		st := s.engine.Stores(tx)

		for _, row := range batch {
			input := records.UpsertInput{
				UniqueKey: row.UniqueKey,
				Extra:     row.Extra,
			}

			existing, lookupErr := st.Records.GetByUniqueKey(ctx, row.UniqueKey)
			switch {
			case lookupErr == nil:
				id := existing.ID
				input.ID = &id
			case errors.Is(lookupErr, domain.ErrNotFound):
				// create path
			default:
				return fmt.Errorf("row %d: %w", row.RowNumber, lookupErr)
			}

			result, upsertErr := s.engine.UpsertWith(ctx, st, input, records.UpsertOptions{
				ActingUserID: req.ActingUserID,
				Import:       true,
				FileName:     req.FileName,
			})
			if upsertErr != nil {
				if errors.Is(upsertErr, records.ErrDuplicateKey) || errors.Is(upsertErr, domain.ErrNotFound) {
					rowErrors = append(rowErrors, fmt.Sprintf("row %d: %v", row.RowNumber, upsertErr))
					s.logRowError(ctx, req.FileName, row.RowNumber, upsertErr)
					continue
				}
				return fmt.Errorf("row %d: %w", row.RowNumber, upsertErr)
			}

			if result.Created {
				inserted++
			} else {
				updated++
			}
		}
		return nil
	})

	if err != nil {
		// The transaction rolled back: none of the batch applied, so every
		// row counts as errored exactly once under the shared message.
		summary.ErrorCount += len(batch)
		message := fmt.Sprintf("batch of %d rows failed: %v", len(batch), err)
		summary.Errors = append(summary.Errors, message)
		s.logRowError(ctx, req.FileName, 0, errors.New(message))
		return
	}

	summary.InsertedCount += inserted
	summary.UpdatedCount += updated
	summary.ErrorCount += len(rowErrors)
	summary.Errors = append(summary.Errors, rowErrors...)
}

// applyFieldCreation materializes the plan's category and field creations.
// Both store operations are idempotent, so re-running a mapping after a
// partial failure is safe.
func (s *Service) applyFieldCreation(ctx context.Context, plan domain.MappingPlan) error {
	for _, draft := range plan.NewCategories {
		fields := make([]domain.FieldDefinition, len(draft.Fields))
		for i, fieldDraft := range draft.Fields {
			fields[i] = fieldDraft.Definition(i + 1)
		}
		if _, err := s.categories.EnsureCategory(ctx, draft.Name, fields); err != nil {
			return fmt.Errorf("failed to create category %q: %w", draft.Name, err)
		}
	}

	for _, entry := range plan.Columns {
		if entry.Kind != domain.PlanCreateInExistingCateg {
			continue
		}
		if _, err := s.categories.AddField(ctx, entry.CategoryID, entry.Draft.Definition(0)); err != nil {
			return fmt.Errorf("failed to create field %q: %w", entry.Draft.Key, err)
		}
	}
	return nil
}

func (s *Service) resolveTable(req RunRequest) (Table, error) {
	if req.Table != nil {
		return *req.Table, nil
	}
	if req.Data == nil {
		return Table{}, errors.New("no source provided")
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read upload: %w", err)
	}
	return ParseFile(req.FileName, payload)
}

func (s *Service) logRowError(ctx context.Context, fileName string, rowNumber int, err error) {
	if s.importLogs == nil || err == nil {
		return
	}
	entry := domain.ImportLogEntry{
		FileName:  fileName,
		Message:   err.Error(),
		CreatedAt: time.Now(),
	}
	if rowNumber > 0 {
		entry.RowNumber = &rowNumber
	}
	if logErr := s.importLogs.Record(ctx, entry); logErr != nil {
		// Observability writes never fail an import.
		_ = logErr
	}
}
