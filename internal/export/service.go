package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/tmasson/registre/internal/domain"
	"github.com/tmasson/registre/internal/repository"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Result is one rendered export file.
type Result struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Service renders the current record set to a downloadable file. Exports are
// synchronous: the data volumes of a single registry fit in memory, so there
// is no job queue or on-disk spool.
type Service struct {
	records    repository.RecordRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
}

// NewService wires the exporter to its read stores.
func NewService(records repository.RecordRepository, categories repository.CategoryRepository, users repository.UserRepository) *Service {
	return &Service{records: records, categories: categories, users: users}
}

// Export renders all records, optionally restricted to one category, in the
// requested format. Column order is the unique key, the owner, then the
// category's field definitions in display order; fields present on records
// but absent from every definition are appended alphabetically so no stored
// value is silently dropped.
func (s *Service) Export(ctx context.Context, categoryID *uuid.UUID, format Format) (Result, error) {
	records, err := s.records.List(ctx, categoryID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list records: %w", err)
	}

	columns, err := s.buildColumns(ctx, categoryID, records)
	if err != nil {
		return Result{}, err
	}

	userNames, err := s.userNames(ctx)
	if err != nil {
		return Result{}, err
	}

	rows := make([][]string, 0, len(records)+1)
	rows = append(rows, headerRow(columns))
	for _, record := range records {
		rows = append(rows, recordRow(record, columns, userNames))
	}

	switch format {
	case FormatCSV:
		return renderCSV(rows)
	case FormatXLSX:
		return renderXLSX(rows)
	default:
		return Result{}, fmt.Errorf("unsupported export format %q", format)
	}
}

// column pairs a header label with the field key it reads from.
type column struct {
	Key   string
	Label string
}

func (s *Service) buildColumns(ctx context.Context, categoryID *uuid.UUID, records []domain.Record) ([]column, error) {
	defined := map[string]bool{}
	var columns []column

	if categoryID != nil {
		category, err := s.categories.GetByID(ctx, *categoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to load category: %w", err)
		}
		for _, field := range category.Fields {
			if !field.Visible {
				continue
			}
			defined[field.Key] = true
			columns = append(columns, column{Key: field.Key, Label: field.Label})
		}
	} else {
		categories, err := s.categories.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		for _, category := range categories {
			for _, field := range category.Fields {
				if !field.Visible || defined[field.Key] {
					continue
				}
				defined[field.Key] = true
				columns = append(columns, column{Key: field.Key, Label: field.Label})
			}
		}
	}

	extra := map[string]bool{}
	for _, record := range records {
		for key := range record.Extra {
			if !defined[key] && !extra[key] {
				extra[key] = true
			}
		}
	}
	orphans := make([]string, 0, len(extra))
	for key := range extra {
		orphans = append(orphans, key)
	}
	sort.Strings(orphans)
	for _, key := range orphans {
		columns = append(columns, column{Key: key, Label: key})
	}

	return columns, nil
}

func (s *Service) userNames(ctx context.Context) (map[uuid.UUID]string, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Name
	}
	return names, nil
}

func headerRow(columns []column) []string {
	row := []string{domain.UniqueKeyField, "assigne_a"}
	for _, col := range columns {
		row = append(row, col.Label)
	}
	return row
}

func recordRow(record domain.Record, columns []column, userNames map[uuid.UUID]string) []string {
	owner := ""
	if record.OwnerID != nil {
		if name, ok := userNames[*record.OwnerID]; ok {
			owner = name
		} else {
			owner = record.OwnerID.String()
		}
	}

	row := []string{record.UniqueKey, owner}
	for _, col := range columns {
		value := ""
		if text := domain.StringifyValue(record.Extra[col.Key]); text != nil {
			value = *text
		}
		row = append(row, value)
	}
	return row
}

func renderCSV(rows [][]string) (Result, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return Result{}, fmt.Errorf("failed to write csv: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return Result{}, fmt.Errorf("failed to flush csv: %w", err)
	}
	return Result{
		FileName:    "registre.csv",
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

func renderXLSX(rows [][]string) (Result, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Registre"
	f.SetSheetName("Sheet1", sheet)

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return Result{}, fmt.Errorf("failed to address cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return Result{}, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return Result{}, fmt.Errorf("failed to write xlsx: %w", err)
	}
	return Result{
		FileName:    "registre.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        buf.Bytes(),
	}, nil
}

// ParseFormat maps a query-string value to a Format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}
