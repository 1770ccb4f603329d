package core

// upload.go parses CSV uploads and feeds them to the bulk upsert.
//
// The first row is the header; header names are matched to schema fields
// exactly. Every data row is validated against the request schema before
// anything touches the database, and the first invalid row aborts the import.

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/restfab/internal/logging"
	"github.com/JonMunkholm/restfab/internal/schema"
)

// ImportMode selects how CSV rows are written.
type ImportMode string

const (
	// ImportMerge updates rows that already exist by unique key.
	ImportMerge ImportMode = "merge"
	// ImportInsert inserts every row; duplicates fail the import.
	ImportInsert ImportMode = "insert"
)

// ParseImportMode converts a query value into an ImportMode.
// The empty string selects ImportMerge.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportMerge:
		return ImportMerge, nil
	case ImportInsert:
		return ImportInsert, nil
	}
	return "", fmt.Errorf("unknown import mode %q: want %q or %q", s, ImportMerge, ImportInsert)
}

// Preparer transforms validated rows before they are written. It runs in the
// import's transaction and may query the table through a.
type Preparer func(ctx context.Context, db DBTX, rows []schema.Values, a *Accessor) ([]schema.Values, error)

// RowError reports the first CSV row that failed validation.
type RowError struct {
	Line   int               // 1-based line number in the file, header is line 1
	Row    map[string]string // Raw cells keyed by header
	Errors schema.ValidationErrors
}

func (e *RowError) Error() string {
	return fmt.Sprintf("csv line %d: %v", e.Line, e.Errors)
}

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("empty file: no header row")

// ParseCSV reads a CSV stream and validates every data row against s.
//
// The reader should already be wrapped with WrapUpload. A *RowError is
// returned for the first invalid row; malformed CSV and encoding problems are
// returned as plain errors.
func ParseCSV(r io.Reader, s *schema.Schema) ([]schema.Values, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if errors.Is(err, ErrInvalidEncoding) {
		return nil, ErrInvalidEncoding
	}
	if err != nil {
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	var rows []schema.Values
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, ErrInvalidEncoding) {
				return nil, ErrInvalidEncoding
			}
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlank(record) {
			continue
		}

		cells := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				cells[h] = record[i]
			}
		}

		v, err := s.ValidateStrings(cells)
		if err != nil {
			ve, ok := schema.AsValidationErrors(err)
			if !ok {
				return nil, err
			}
			return nil, &RowError{Line: line, Row: cells, Errors: ve}
		}
		rows = append(rows, v)
	}
	return rows, nil
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Import writes validated rows through a, running prep first when set.
// Each call is logged with its own import ID.
func Import(ctx context.Context, db DBTX, a *Accessor, rows []schema.Values, mode ImportMode, prep Preparer) (UpsertResult, error) {
	importID := uuid.New()
	logger := logging.WithFields(ctx,
		"import_id", importID.String(),
		"table", a.Model().Table,
		"mode", string(mode),
	)
	start := time.Now()

	if prep != nil {
		prepared, err := prep(ctx, db, rows, a)
		if err != nil {
			logger.Error("csv import prepare failed", "error", err)
			return UpsertResult{}, fmt.Errorf("prepare import: %w", err)
		}
		rows = prepared
	}

	result, err := a.BulkUpsert(ctx, db, rows, UpsertOptions{SimpleInsert: mode == ImportInsert})
	if err != nil {
		logger.Error("csv import failed", "rows", len(rows), "error", err)
		return result, err
	}

	logger.Info("csv import completed",
		"total", result.Total,
		"inserted", result.Inserted,
		"updated", result.Updated,
		"duration", time.Since(start),
	)
	return result, nil
}
