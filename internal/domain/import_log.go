package domain

import "time"

// ImportLogEntry captures one row-level issue recorded during an import run.
// Entries are append-only and written outside the batch transaction so a
// rolled-back batch keeps its error trail.
type ImportLogEntry struct {
	ID        int64     `json:"id"`
	FileName  string    `json:"file_name"`
	RowNumber *int      `json:"row_number,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
