package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"prepquiz/internal/db"
	"prepquiz/internal/quiz"
)

// SQLStore implements quiz.Store on PostgreSQL or SQLite.
type SQLStore struct {
	conn *db.Conn
}

var _ quiz.Store = (*SQLStore)(nil)

func New(conn *db.Conn) *SQLStore {
	return &SQLStore{conn: conn}
}

type queryable interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *SQLStore) QuestionIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id FROM quiz_questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query question ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question ids: %w", err)
	}
	return ids, nil
}

func (s *SQLStore) QuestionsByID(ctx context.Context, ids []int64) ([]quiz.Question, error) {
	if len(ids) == 0 {
		return []quiz.Question{}, nil
	}
	d := s.conn.Dialect
	rows, err := s.conn.QueryContext(ctx, d.Rebind(`
		SELECT id, question_text
		FROM quiz_questions
		WHERE id IN (`+placeholders(len(ids))+`)
	`), int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	byID := make(map[int64]quiz.Question, len(ids))
	for rows.Next() {
		var q quiz.Question
		if err := rows.Scan(&q.ID, &q.Text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		byID[q.ID] = q
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	rows.Close()

	options, err := loadOptions(ctx, s.conn, d, ids)
	if err != nil {
		return nil, err
	}

	out := make([]quiz.Question, 0, len(ids))
	for _, id := range ids {
		q, ok := byID[id]
		if !ok {
			return nil, quiz.ErrQuestionNotFound
		}
		q.Options = options[id]
		out = append(out, q)
	}
	return out, nil
}

func (s *SQLStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx, s.conn.Dialect.Rebind(`
		SELECT COUNT(*) FROM users WHERE id = ?
	`), userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) FindAttempt(ctx context.Context, attemptID int64) (quiz.Attempt, error) {
	return findAttempt(ctx, s.conn, s.conn.Dialect, attemptID, false)
}

func (s *SQLStore) CountAnswers(ctx context.Context, attemptID int64) (quiz.AnswerCounts, error) {
	return countAnswers(ctx, s.conn, s.conn.Dialect, attemptID)
}

func (s *SQLStore) FindAttemptsByUser(ctx context.Context, userID int64) ([]quiz.AttemptStats, error) {
	rows, err := s.conn.QueryContext(ctx, s.conn.Dialect.Rebind(`
		SELECT
			t.id,
			t.user_id,
			t.created_at,
			t.status,
			COUNT(a.id),
			COUNT(a.selected_option_id),
			COALESCE(SUM(CASE WHEN o.is_correct THEN 1 ELSE 0 END), 0)
		FROM quiz_attempts t
		LEFT JOIN quiz_attempt_answers a ON a.attempt_id = t.id
		LEFT JOIN quiz_answer_options o ON o.id = a.selected_option_id
		WHERE t.user_id = ?
		GROUP BY t.id, t.user_id, t.created_at, t.status
		ORDER BY t.created_at DESC, t.id DESC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("query attempts by user: %w", err)
	}
	defer rows.Close()

	out := make([]quiz.AttemptStats, 0)
	for rows.Next() {
		var a quiz.AttemptStats
		var status string
		if err := rows.Scan(&a.ID, &a.UserID, &a.CreatedAt, &status, &a.Total, &a.Submitted, &a.Correct); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Status = quiz.Status(status)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListAnsweredRows(ctx context.Context, attemptID int64) ([]quiz.AnsweredRow, error) {
	d := s.conn.Dialect
	rows, err := s.conn.QueryContext(ctx, d.Rebind(`
		SELECT
			a.id,
			q.id,
			q.question_text,
			a.selected_option_id,
			so.is_correct,
			co.id
		FROM quiz_attempt_answers a
		JOIN quiz_questions q ON q.id = a.question_id
		LEFT JOIN quiz_answer_options so ON so.id = a.selected_option_id
		LEFT JOIN quiz_answer_options co
			ON co.question_id = a.question_id
			AND co.is_correct = TRUE
			AND a.selected_option_id IS NOT NULL
		WHERE a.attempt_id = ?
		ORDER BY a.id
	`), attemptID)
	if err != nil {
		return nil, fmt.Errorf("query attempt answers: %w", err)
	}

	var out []quiz.AnsweredRow
	var questionIDs []int64
	for rows.Next() {
		var (
			row       quiz.AnsweredRow
			selected  sql.NullInt64
			isCorrect sql.NullBool
			correctID sql.NullInt64
		)
		if err := rows.Scan(&row.AnswerID, &row.Question.ID, &row.Question.Text, &selected, &isCorrect, &correctID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan attempt answer: %w", err)
		}
		if selected.Valid {
			row.SelectedOptionID = &selected.Int64
			if isCorrect.Valid {
				row.SelectedCorrect = &isCorrect.Bool
			}
			if correctID.Valid {
				row.CorrectOptionID = &correctID.Int64
			}
		}
		out = append(out, row)
		questionIDs = append(questionIDs, row.Question.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate attempt answers: %w", err)
	}
	rows.Close()

	options, err := loadOptions(ctx, s.conn, d, questionIDs)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Question.Options = options[out[i].Question.ID]
	}
	return out, nil
}

func (s *SQLStore) InTx(ctx context.Context, fn func(tx quiz.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, dialect: s.conn.Dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx      *sql.Tx
	dialect db.Dialect
}

func (t *sqlTx) SaveAttempt(ctx context.Context, userID int64, createdAt time.Time) (quiz.Attempt, error) {
	a := quiz.Attempt{UserID: userID, CreatedAt: createdAt, Status: quiz.StatusInProgress}
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`
		INSERT INTO quiz_attempts (user_id, created_at, status)
		VALUES (?, ?, ?)
		RETURNING id
	`), userID, createdAt, string(quiz.StatusInProgress)).Scan(&a.ID)
	if err != nil {
		return quiz.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

func (t *sqlTx) SaveAttemptAnswers(ctx context.Context, attemptID int64, questionIDs []int64) error {
	stmt, err := t.tx.PrepareContext(ctx, t.dialect.Rebind(`
		INSERT INTO quiz_attempt_answers (attempt_id, question_id)
		VALUES (?, ?)
	`))
	if err != nil {
		return fmt.Errorf("prepare attempt answer insert: %w", err)
	}
	defer stmt.Close()

	for _, qid := range questionIDs {
		if _, err := stmt.ExecContext(ctx, attemptID, qid); err != nil {
			return fmt.Errorf("insert attempt answer: %w", err)
		}
	}
	return nil
}

func (t *sqlTx) LockAttempt(ctx context.Context, attemptID int64) (quiz.Attempt, error) {
	return findAttempt(ctx, t.tx, t.dialect, attemptID, true)
}

func (t *sqlTx) FindOption(ctx context.Context, optionID int64) (quiz.Option, error) {
	var o quiz.Option
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`
		SELECT id, question_id, option_text, is_correct
		FROM quiz_answer_options
		WHERE id = ?
	`), optionID).Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Option{}, quiz.ErrAnswerOptionNotFound
		}
		return quiz.Option{}, fmt.Errorf("query option: %w", err)
	}
	return o, nil
}

func (t *sqlTx) FindCorrectOption(ctx context.Context, questionID int64) (quiz.Option, error) {
	var o quiz.Option
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`
		SELECT id, question_id, option_text, is_correct
		FROM quiz_answer_options
		WHERE question_id = ? AND is_correct = TRUE
		ORDER BY id
		LIMIT 1
	`), questionID).Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Option{}, quiz.ErrCorrectAnswerNotFound
		}
		return quiz.Option{}, fmt.Errorf("query correct option: %w", err)
	}
	return o, nil
}

func (t *sqlTx) FindAttemptAnswer(ctx context.Context, attemptID, questionID int64) (quiz.AttemptAnswer, error) {
	var a quiz.AttemptAnswer
	var selected sql.NullInt64
	err := t.tx.QueryRowContext(ctx, t.dialect.Rebind(`
		SELECT id, attempt_id, question_id, selected_option_id
		FROM quiz_attempt_answers
		WHERE attempt_id = ? AND question_id = ?
	`), attemptID, questionID).Scan(&a.ID, &a.AttemptID, &a.QuestionID, &selected)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.AttemptAnswer{}, quiz.ErrAttemptAnswerNotFound
		}
		return quiz.AttemptAnswer{}, fmt.Errorf("query attempt answer: %w", err)
	}
	if selected.Valid {
		a.SelectedOptionID = &selected.Int64
	}
	return a, nil
}

func (t *sqlTx) SelectOption(ctx context.Context, answerID, optionID int64, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, t.dialect.Rebind(`
		UPDATE quiz_attempt_answers
		SET selected_option_id = ?, answered_at = ?
		WHERE id = ? AND selected_option_id IS NULL
	`), optionID, at, answerID)
	if err != nil {
		return fmt.Errorf("update attempt answer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attempt answer rows affected: %w", err)
	}
	if affected == 0 {
		return quiz.ErrQuestionAlreadyAnswered
	}
	return nil
}

func (t *sqlTx) CountAnswers(ctx context.Context, attemptID int64) (quiz.AnswerCounts, error) {
	return countAnswers(ctx, t.tx, t.dialect, attemptID)
}

func (t *sqlTx) MarkCompleted(ctx context.Context, attemptID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, t.dialect.Rebind(`
		UPDATE quiz_attempts
		SET status = ?
		WHERE id = ? AND status = ?
	`), string(quiz.StatusCompleted), attemptID, string(quiz.StatusInProgress))
	if err != nil {
		return false, fmt.Errorf("complete attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete attempt rows affected: %w", err)
	}
	return affected == 1, nil
}

func findAttempt(ctx context.Context, q queryable, d db.Dialect, attemptID int64, forUpdate bool) (quiz.Attempt, error) {
	query := `
		SELECT id, user_id, created_at, status
		FROM quiz_attempts
		WHERE id = ?
	`
	if forUpdate {
		query += d.ForUpdate()
	}

	var a quiz.Attempt
	var status string
	if err := q.QueryRowContext(ctx, d.Rebind(query), attemptID).Scan(&a.ID, &a.UserID, &a.CreatedAt, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quiz.Attempt{}, quiz.ErrAttemptNotFound
		}
		return quiz.Attempt{}, fmt.Errorf("query attempt: %w", err)
	}
	a.Status = quiz.Status(status)
	return a, nil
}

func countAnswers(ctx context.Context, q queryable, d db.Dialect, attemptID int64) (quiz.AnswerCounts, error) {
	var c quiz.AnswerCounts
	err := q.QueryRowContext(ctx, d.Rebind(`
		SELECT
			COUNT(*),
			COUNT(a.selected_option_id),
			COALESCE(SUM(CASE WHEN o.is_correct THEN 1 ELSE 0 END), 0)
		FROM quiz_attempt_answers a
		LEFT JOIN quiz_answer_options o ON o.id = a.selected_option_id
		WHERE a.attempt_id = ?
	`), attemptID).Scan(&c.Total, &c.Submitted, &c.Correct)
	if err != nil {
		return quiz.AnswerCounts{}, fmt.Errorf("count attempt answers: %w", err)
	}
	return c, nil
}

func loadOptions(ctx context.Context, q queryable, d db.Dialect, questionIDs []int64) (map[int64][]quiz.Option, error) {
	out := make(map[int64][]quiz.Option, len(questionIDs))
	if len(questionIDs) == 0 {
		return out, nil
	}
	rows, err := q.QueryContext(ctx, d.Rebind(`
		SELECT id, question_id, option_text, is_correct
		FROM quiz_answer_options
		WHERE question_id IN (`+placeholders(len(questionIDs))+`)
		ORDER BY question_id, id
	`), int64Args(questionIDs)...)
	if err != nil {
		return nil, fmt.Errorf("query options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o quiz.Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.Text, &o.IsCorrect); err != nil {
			return nil, fmt.Errorf("scan option: %w", err)
		}
		out[o.QuestionID] = append(out[o.QuestionID], o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate options: %w", err)
	}
	return out, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
