package importer

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when an uploaded file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Table is the shape every tabular source reduces to: one header row and
// zero or more data rows. Cells are untyped because sources differ: files
// yield strings, an Oracle query yields numbers, dates and NULLs. Short rows
// are padded with nils to header length.
type Table struct {
	Headers []string
	Rows    [][]any
}

// ParseFile reads a CSV or XLSX payload into a Table. The whole source is
// materialized up front; there is no streaming from the source into the
// pipeline.
func ParseFile(fileName string, payload []byte) (Table, error) {
	if len(payload) == 0 {
		return Table{}, errors.New("file is empty")
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload)
	case ".xlsx":
		return parseExcel(payload)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// TableFromRows builds a Table from pre-fetched rows, e.g. the result set of
// a remote query. The first row is the header row.
func TableFromRows(headers []string, rows [][]any) (Table, error) {
	return assembleTable(headers, rows)
}

func parseCSV(payload []byte) (Table, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read csv: %w", err)
	}

	return tableFromStringRows(records)
}

func parseExcel(payload []byte) (Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return Table{}, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return tableFromStringRows(rows)
}

func tableFromStringRows(records [][]string) (Table, error) {
	var headers []string
	var rows [][]any

	for _, record := range records {
		if rowBlank(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, value := range record {
				headers[i] = strings.TrimSpace(value)
			}
			continue
		}
		cells := make([]any, len(record))
		for i, value := range record {
			cells[i] = value
		}
		rows = append(rows, cells)
	}

	return assembleTable(headers, rows)
}

func assembleTable(headers []string, rows [][]any) (Table, error) {
	if len(headers) == 0 {
		return Table{}, errors.New("no header row detected")
	}

	padded := make([][]any, 0, len(rows))
	for _, row := range rows {
		padded = append(padded, padCells(row, len(headers)))
	}

	return Table{Headers: headers, Rows: padded}, nil
}

func padCells(row []any, length int) []any {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]any, length)
	copy(padded, row)
	return padded
}

func rowBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
