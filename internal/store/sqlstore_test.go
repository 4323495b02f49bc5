package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"prepquiz/internal/catalog"
	"prepquiz/internal/db"
	"prepquiz/internal/quiz"
)

type fixture struct {
	conn      *db.Conn
	store     *SQLStore
	svc       *quiz.Service
	userID    int64
	questions []int64
	// correct and wrong hold one option id per question, index-aligned with questions.
	correct []int64
	wrong   []int64
}

func newSQLiteFixture(t *testing.T, questionCount int) *fixture {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "quiz.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.Migrate(ctx, conn); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return seedFixture(t, conn, questionCount, "sqlite_user")
}

func seedFixture(t *testing.T, conn *db.Conn, questionCount int, username string) *fixture {
	t.Helper()
	ctx := context.Background()

	entries := make([]catalog.Entry, 0, questionCount)
	for i := 0; i < questionCount; i++ {
		entries = append(entries, catalog.Entry{
			Question: "Preparedness question",
			Options: []catalog.EntryOption{
				{Text: "right", Correct: true},
				{Text: "wrong a"},
				{Text: "wrong b"},
				{Text: "wrong c"},
			},
		})
	}
	ids, err := catalog.NewImporter(conn).Import(ctx, entries)
	if err != nil {
		t.Fatalf("import catalog: %v", err)
	}

	f := &fixture{conn: conn, store: New(conn), questions: ids}
	for _, qid := range ids {
		var correct, wrong int64
		err := conn.QueryRowContext(ctx, conn.Dialect.Rebind(`
			SELECT
				MIN(CASE WHEN is_correct THEN id END),
				MIN(CASE WHEN NOT is_correct THEN id END)
			FROM quiz_answer_options
			WHERE question_id = ?
		`), qid).Scan(&correct, &wrong)
		if err != nil {
			t.Fatalf("load option ids: %v", err)
		}
		f.correct = append(f.correct, correct)
		f.wrong = append(f.wrong, wrong)
	}

	err = conn.QueryRowContext(ctx, conn.Dialect.Rebind(`
		INSERT INTO users (username, password_hash, full_name, role, is_active, created_at)
		VALUES (?, 'x', 'Test User', 'member', TRUE, ?)
		RETURNING id
	`), username, time.Now().UTC()).Scan(&f.userID)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}

	f.svc = quiz.NewService(f.store, quiz.ServiceConfig{Rand: rand.New(rand.NewPCG(3, 4))})
	return f
}

func (f *fixture) optionsFor(qid int64) (correct, wrong int64) {
	for i, id := range f.questions {
		if id == qid {
			return f.correct[i], f.wrong[i]
		}
	}
	return 0, 0
}

func TestStartQuizPersistsSlots(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 5)

	started, err := f.svc.StartQuiz(ctx, f.userID, 3)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}
	seen := map[int64]bool{}
	for _, q := range started.Questions {
		if seen[q.ID] {
			t.Fatalf("duplicate question %d", q.ID)
		}
		seen[q.ID] = true
		if len(q.Options) != 4 {
			t.Fatalf("expected 4 options, got %d", len(q.Options))
		}
	}

	counts, err := f.store.CountAnswers(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("CountAnswers failed: %v", err)
	}
	if counts.Total != 3 || counts.Submitted != 0 || counts.Correct != 0 {
		t.Fatalf("unexpected counts: %+v", counts)
	}

	attempt, err := f.store.FindAttempt(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if attempt.Status != quiz.StatusInProgress || attempt.UserID != f.userID {
		t.Fatalf("unexpected attempt: %+v", attempt)
	}
}

func TestStartQuizLimitCreatesNothing(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 2)

	for _, n := range []int{0, 3} {
		if _, err := f.svc.StartQuiz(ctx, f.userID, n); !errors.Is(err, quiz.ErrQuestionLimitExceeded) {
			t.Fatalf("n=%d: expected limit exceeded, got %v", n, err)
		}
	}
	if _, err := f.svc.StartQuiz(ctx, f.userID+100, 1); !errors.Is(err, quiz.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	var n int
	if err := f.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_attempts`).Scan(&n); err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no attempts, got %d", n)
	}
}

func TestAttemptLifecycleSQLite(t *testing.T) {
	runAttemptLifecycle(t, newSQLiteFixture(t, 3))
}

func runAttemptLifecycle(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	started, err := f.svc.StartQuiz(ctx, f.userID, 3)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}
	q1, q2, q3 := started.Questions[0].ID, started.Questions[1].ID, started.Questions[2].ID

	c1, w1 := f.optionsFor(q1)
	res, err := f.svc.SubmitAnswer(ctx, started.AttemptID, q1, w1)
	if err != nil {
		t.Fatalf("SubmitAnswer q1 failed: %v", err)
	}
	if res.Correct || res.CorrectOptionID != c1 {
		t.Fatalf("unexpected q1 result: %+v", res)
	}
	assertResult(t, f, started.AttemptID, 3, 0, quiz.StatusInProgress)

	c2, _ := f.optionsFor(q2)
	if res, err = f.svc.SubmitAnswer(ctx, started.AttemptID, q2, c2); err != nil || !res.Correct {
		t.Fatalf("SubmitAnswer q2: %+v %v", res, err)
	}
	assertResult(t, f, started.AttemptID, 3, 1, quiz.StatusInProgress)

	if _, err := f.svc.SubmitAnswer(ctx, started.AttemptID, q2, w1); !errors.Is(err, quiz.ErrQuestionAlreadyAnswered) {
		t.Fatalf("expected already answered, got %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, started.AttemptID, q3, c1); !errors.Is(err, quiz.ErrInvalidAnswerForQuestion) {
		t.Fatalf("expected invalid answer, got %v", err)
	}
	if _, err := f.svc.SubmitAnswer(ctx, started.AttemptID, q3, 999999); !errors.Is(err, quiz.ErrAnswerOptionNotFound) {
		t.Fatalf("expected option not found, got %v", err)
	}

	detail, err := f.svc.GetAttempt(ctx, started.AttemptID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	for _, item := range detail.Questions {
		if item.Question.ID == q3 && (item.SelectedOptionID != nil || item.IsCorrect != nil || item.CorrectOptionID != nil) {
			t.Fatalf("unanswered row leaks answer: %+v", item)
		}
		if item.Question.ID == q1 {
			if item.SelectedOptionID == nil || *item.SelectedOptionID != w1 || item.IsCorrect == nil || *item.IsCorrect || item.CorrectOptionID == nil || *item.CorrectOptionID != c1 {
				t.Fatalf("unexpected q1 detail: %+v", item)
			}
		}
	}
	if detail.Questions[0].Question.ID != q1 || detail.Questions[2].Question.ID != q3 {
		t.Fatalf("rows should keep sampling order")
	}

	c3, _ := f.optionsFor(q3)
	if res, err = f.svc.SubmitAnswer(ctx, started.AttemptID, q3, c3); err != nil || !res.Correct {
		t.Fatalf("SubmitAnswer q3: %+v %v", res, err)
	}
	assertResult(t, f, started.AttemptID, 3, 2, quiz.StatusCompleted)

	history, err := f.svc.GetHistory(ctx, f.userID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 1 || history[0].AttemptID != started.AttemptID || history[0].CorrectAnswers != 2 || history[0].Status != quiz.StatusCompleted {
		t.Fatalf("unexpected history: %+v", history)
	}
	if history[0].Date != time.Now().UTC().Format(time.DateOnly) {
		t.Fatalf("unexpected history date %s", history[0].Date)
	}
}

func TestSubmitAnswerQuestionNotSampled(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 4)

	started, err := f.svc.StartQuiz(ctx, f.userID, 2)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}
	sampled := map[int64]bool{}
	for _, q := range started.Questions {
		sampled[q.ID] = true
	}
	for i, qid := range f.questions {
		if sampled[qid] {
			continue
		}
		if _, err := f.svc.SubmitAnswer(ctx, started.AttemptID, qid, f.correct[i]); !errors.Is(err, quiz.ErrAttemptAnswerNotFound) {
			t.Fatalf("expected attempt answer not found, got %v", err)
		}
	}
}

func TestHistoryOrderSQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 2)
	clock := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := quiz.NewService(f.store, quiz.ServiceConfig{Now: func() time.Time { return clock }})

	first, err := svc.StartQuiz(ctx, f.userID, 1)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}
	clock = clock.Add(48 * time.Hour)
	second, err := svc.StartQuiz(ctx, f.userID, 2)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}

	history, err := svc.GetHistory(ctx, f.userID)
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history) != 2 || history[0].AttemptID != second.AttemptID || history[1].AttemptID != first.AttemptID {
		t.Fatalf("unexpected order: %+v", history)
	}
	if history[0].Date != "2026-01-03" || history[1].Date != "2026-01-01" {
		t.Fatalf("unexpected dates: %+v", history)
	}
	if history[0].TotalQuestions != 2 || history[1].TotalQuestions != 1 {
		t.Fatalf("unexpected totals: %+v", history)
	}

	detail, err := svc.GetAttempt(ctx, first.AttemptID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	if !detail.AttemptTime.Equal(time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected attempt time %s", detail.AttemptTime)
	}
}

func TestConcurrentSubmissionsSQLite(t *testing.T) {
	runConcurrentSubmissions(t, newSQLiteFixture(t, 4))
}

func runConcurrentSubmissions(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()

	started, err := f.svc.StartQuiz(ctx, f.userID, 4)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}

	const perQuestion = 3
	var wg sync.WaitGroup
	errs := make(chan error, len(started.Questions)*perQuestion)
	for _, q := range started.Questions {
		correct, _ := f.optionsFor(q.ID)
		for i := 0; i < perQuestion; i++ {
			wg.Add(1)
			go func(qid, opt int64) {
				defer wg.Done()
				_, err := f.svc.SubmitAnswer(ctx, started.AttemptID, qid, opt)
				errs <- err
			}(q.ID, correct)
		}
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, quiz.ErrQuestionAlreadyAnswered):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != len(started.Questions) {
		t.Fatalf("expected exactly one success per question, got %d", ok)
	}
	assertResult(t, f, started.AttemptID, 4, 4, quiz.StatusCompleted)
}

func TestLookupsMissSQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 1)

	if _, err := f.store.FindAttempt(ctx, 12345); !errors.Is(err, quiz.ErrAttemptNotFound) {
		t.Fatalf("expected attempt not found, got %v", err)
	}
	if _, err := f.store.QuestionsByID(ctx, []int64{f.questions[0], 98765}); !errors.Is(err, quiz.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	exists, err := f.store.UserExists(ctx, f.userID)
	if err != nil || !exists {
		t.Fatalf("expected user to exist: %v", err)
	}
	err = f.store.InTx(ctx, func(tx quiz.Tx) error {
		_, err := tx.FindCorrectOption(ctx, 98765)
		return err
	})
	if !errors.Is(err, quiz.ErrCorrectAnswerNotFound) {
		t.Fatalf("expected correct answer not found, got %v", err)
	}
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t, 1)
	started, err := f.svc.StartQuiz(ctx, f.userID, 1)
	if err != nil {
		t.Fatalf("StartQuiz failed: %v", err)
	}

	var flips []bool
	for i := 0; i < 2; i++ {
		err := f.store.InTx(ctx, func(tx quiz.Tx) error {
			flipped, err := tx.MarkCompleted(ctx, started.AttemptID)
			flips = append(flips, flipped)
			return err
		})
		if err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}
	if !flips[0] || flips[1] {
		t.Fatalf("expected only the first call to transition, got %v", flips)
	}
}

func assertResult(t *testing.T, f *fixture, attemptID int64, total, correct int, status quiz.Status) {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.GetResult(ctx, attemptID)
	if err != nil {
		t.Fatalf("GetResult failed: %v", err)
	}
	if res.TotalQuestions != total || res.CorrectAnswers != correct {
		t.Fatalf("expected {%d,%d}, got %+v", total, correct, res)
	}
	attempt, err := f.store.FindAttempt(ctx, attemptID)
	if err != nil {
		t.Fatalf("FindAttempt failed: %v", err)
	}
	if attempt.Status != status {
		t.Fatalf("expected status %s, got %s", status, attempt.Status)
	}
}
