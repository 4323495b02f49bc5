package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ParseExcel reads the first sheet. Each row is one option; a row with an
// empty question cell continues the question above it.
//
//	question | option | is_correct
func ParseExcel(r io.Reader) ([]Entry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel sheet is empty")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return nil, errors.New("no data rows found")
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		header[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range []string{"question", "option", "is_correct"} {
		if _, ok := header[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	var entries []Entry
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		question := get("question")
		option := get("option")
		if question == "" && option == "" {
			continue
		}
		if question != "" && (len(entries) == 0 || entries[len(entries)-1].Question != question) {
			entries = append(entries, Entry{Question: question})
		}
		if len(entries) == 0 {
			return nil, fmt.Errorf("row %d: option without a question", i+1)
		}
		last := &entries[len(entries)-1]
		last.Options = append(last.Options, EntryOption{Text: option, Correct: parseBoolLoose(get("is_correct"))})
	}
	return entries, nil
}

// HistoryRow is one exported attempt line.
type HistoryRow struct {
	AttemptID      int64
	Date           string
	Status         string
	TotalQuestions int
	CorrectAnswers int
}

// WriteHistoryExcel renders attempt history as a spreadsheet.
func WriteHistoryExcel(w io.Writer, rows []HistoryRow) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	headers := []string{"attempt_id", "date", "status", "total_questions", "correct_answers"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, it := range rows {
		values := []any{it.AttemptID, it.Date, it.Status, it.TotalQuestions, it.CorrectAnswers}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "A", "E", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return fmt.Errorf("write excel: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func parseBoolLoose(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "1", "true", "yes", "y", "x":
		return true
	case "", "0", "false", "no", "n":
		return false
	default:
		if n, err := strconv.Atoi(v); err == nil {
			return n != 0
		}
		return false
	}
}
