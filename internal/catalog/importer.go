package catalog

import (
	"context"
	"fmt"
	"strings"

	"prepquiz/internal/db"
)

type Importer struct {
	conn *db.Conn
}

func NewImporter(conn *db.Conn) *Importer {
	return &Importer{conn: conn}
}

// Import validates the entries and inserts them in one transaction.
// It returns the new question ids in input order.
func (im *Importer) Import(ctx context.Context, entries []Entry) ([]int64, error) {
	if err := Validate(entries); err != nil {
		return nil, err
	}

	tx, err := im.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin import tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d := im.conn.Dialect
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		var qid int64
		err := tx.QueryRowContext(ctx, d.Rebind(`
			INSERT INTO quiz_questions (question_text)
			VALUES (?)
			RETURNING id
		`), strings.TrimSpace(e.Question)).Scan(&qid)
		if err != nil {
			return nil, fmt.Errorf("insert question: %w", err)
		}
		for _, o := range e.Options {
			if _, err := tx.ExecContext(ctx, d.Rebind(`
				INSERT INTO quiz_answer_options (question_id, option_text, is_correct)
				VALUES (?, ?, ?)
			`), qid, strings.TrimSpace(o.Text), o.Correct); err != nil {
				return nil, fmt.Errorf("insert option: %w", err)
			}
		}
		ids = append(ids, qid)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}
	return ids, nil
}
