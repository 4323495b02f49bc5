package auth

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

type ImportUsersReport struct {
	TotalRows   int              `json:"total_rows"`
	SuccessRows int              `json:"success_rows"`
	FailedRows  int              `json:"failed_rows"`
	Errors      []ImportRowError `json:"errors"`
}

type ImportRowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportUsersCSV creates one account per row. Columns: username, password,
// full_name and an optional role. Bad rows are reported and skipped.
func (s *Service) ImportUsersCSV(ctx context.Context, r io.Reader) (*ImportUsersReport, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if n := normalizeHeader(h); n != "" {
			index[n] = i
		}
	}
	for _, col := range []string{"username", "password", "full_name"} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	report := &ImportUsersReport{Errors: make([]ImportRowError, 0)}
	rowNo := 1
	for {
		rowNo++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		report.TotalRows++
		if err != nil {
			report.fail(rowNo, fmt.Sprintf("csv parse error: %v", err))
			continue
		}
		if isRowEmpty(rec) {
			continue
		}

		_, err = s.CreateUser(ctx, CreateUserInput{
			Username: cell(rec, index, "username"),
			Password: cell(rec, index, "password"),
			FullName: cell(rec, index, "full_name"),
			Role:     cell(rec, index, "role"),
		})
		switch {
		case err == nil:
			report.SuccessRows++
		case errors.Is(err, ErrInvalidUser):
			report.fail(rowNo, "username, full_name, a valid role and a password of at least 8 characters are required")
		case errors.Is(err, ErrUsernameTaken):
			report.fail(rowNo, "username already taken")
		default:
			return report, fmt.Errorf("row %d: %w", rowNo, err)
		}
	}
	return report, nil
}

func (r *ImportUsersReport) fail(row int, msg string) {
	r.FailedRows++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Error: msg})
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.ReplaceAll(h, "-", "_")
	return strings.ReplaceAll(h, " ", "_")
}

func cell(rec []string, idx map[string]int, key string) string {
	i, ok := idx[key]
	if !ok || i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func isRowEmpty(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
