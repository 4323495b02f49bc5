package quiz

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used by the service tests.
type memStore struct {
	mu sync.Mutex

	questions map[int64]Question
	options   map[int64]Option
	users     map[int64]bool
	attempts  map[int64]*Attempt
	answers   []*AttemptAnswer
	nextID    int64

	completions int
	failNextTx  error
}

func newMemStore() *memStore {
	return &memStore{
		questions: map[int64]Question{},
		options:   map[int64]Option{},
		users:     map[int64]bool{},
		attempts:  map[int64]*Attempt{},
		nextID:    1000,
	}
}

// addQuestion registers a question whose option ids are qid*10+i; the
// option at index correct is the right one.
func (m *memStore) addQuestion(qid int64, optionCount, correct int) {
	q := Question{ID: qid, Text: "question"}
	for i := 0; i < optionCount; i++ {
		o := Option{ID: qid*10 + int64(i), QuestionID: qid, Text: "option", IsCorrect: i == correct}
		m.options[o.ID] = o
		q.Options = append(q.Options, o)
	}
	m.questions[qid] = q
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CountQuestions(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.questions), nil
}

func (m *memStore) QuestionIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.questions))
	for id := range m.questions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memStore) QuestionsByID(ctx context.Context, ids []int64) ([]Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		q, ok := m.questions[id]
		if !ok {
			return nil, ErrQuestionNotFound
		}
		out = append(out, q)
	}
	return out, nil
}

func (m *memStore) UserExists(ctx context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID], nil
}

func (m *memStore) FindAttempt(ctx context.Context, attemptID int64) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAttempt(attemptID)
}

func (m *memStore) findAttempt(attemptID int64) (Attempt, error) {
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	return *a, nil
}

func (m *memStore) CountAnswers(ctx context.Context, attemptID int64) (AnswerCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countAnswers(attemptID), nil
}

func (m *memStore) countAnswers(attemptID int64) AnswerCounts {
	var c AnswerCounts
	for _, a := range m.answers {
		if a.AttemptID != attemptID {
			continue
		}
		c.Total++
		if a.SelectedOptionID != nil {
			c.Submitted++
			if m.options[*a.SelectedOptionID].IsCorrect {
				c.Correct++
			}
		}
	}
	return c
}

func (m *memStore) FindAttemptsByUser(ctx context.Context, userID int64) ([]AttemptStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]AttemptStats, 0)
	for _, a := range m.attempts {
		if a.UserID == userID {
			out = append(out, AttemptStats{Attempt: *a, AnswerCounts: m.countAnswers(a.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) ListAnsweredRows(ctx context.Context, attemptID int64) ([]AnsweredRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AnsweredRow
	for _, a := range m.answers {
		if a.AttemptID != attemptID {
			continue
		}
		row := AnsweredRow{AnswerID: a.ID, Question: m.questions[a.QuestionID]}
		if a.SelectedOptionID != nil {
			sel := *a.SelectedOptionID
			isCorrect := m.options[sel].IsCorrect
			row.SelectedOptionID = &sel
			row.SelectedCorrect = &isCorrect
			for _, o := range m.questions[a.QuestionID].Options {
				if o.IsCorrect {
					cid := o.ID
					row.CorrectOptionID = &cid
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNextTx; err != nil {
		m.failNextTx = nil
		return err
	}
	return fn(memTx{m: m})
}

type memTx struct {
	m *memStore
}

func (t memTx) SaveAttempt(ctx context.Context, userID int64, createdAt time.Time) (Attempt, error) {
	a := &Attempt{ID: t.m.id(), UserID: userID, CreatedAt: createdAt, Status: StatusInProgress}
	t.m.attempts[a.ID] = a
	return *a, nil
}

func (t memTx) SaveAttemptAnswers(ctx context.Context, attemptID int64, questionIDs []int64) error {
	for _, qid := range questionIDs {
		t.m.answers = append(t.m.answers, &AttemptAnswer{ID: t.m.id(), AttemptID: attemptID, QuestionID: qid})
	}
	return nil
}

func (t memTx) LockAttempt(ctx context.Context, attemptID int64) (Attempt, error) {
	return t.m.findAttempt(attemptID)
}

func (t memTx) FindOption(ctx context.Context, optionID int64) (Option, error) {
	o, ok := t.m.options[optionID]
	if !ok {
		return Option{}, ErrAnswerOptionNotFound
	}
	return o, nil
}

func (t memTx) FindCorrectOption(ctx context.Context, questionID int64) (Option, error) {
	for _, o := range t.m.questions[questionID].Options {
		if o.IsCorrect {
			return o, nil
		}
	}
	return Option{}, ErrCorrectAnswerNotFound
}

func (t memTx) FindAttemptAnswer(ctx context.Context, attemptID, questionID int64) (AttemptAnswer, error) {
	for _, a := range t.m.answers {
		if a.AttemptID == attemptID && a.QuestionID == questionID {
			return *a, nil
		}
	}
	return AttemptAnswer{}, ErrAttemptAnswerNotFound
}

func (t memTx) SelectOption(ctx context.Context, answerID, optionID int64, at time.Time) error {
	for _, a := range t.m.answers {
		if a.ID != answerID {
			continue
		}
		if a.SelectedOptionID != nil {
			return ErrQuestionAlreadyAnswered
		}
		sel := optionID
		a.SelectedOptionID = &sel
		return nil
	}
	return ErrAttemptAnswerNotFound
}

func (t memTx) CountAnswers(ctx context.Context, attemptID int64) (AnswerCounts, error) {
	return t.m.countAnswers(attemptID), nil
}

func (t memTx) MarkCompleted(ctx context.Context, attemptID int64) (bool, error) {
	a, ok := t.m.attempts[attemptID]
	if !ok || a.Status == StatusCompleted {
		return false, nil
	}
	a.Status = StatusCompleted
	t.m.completions++
	return true, nil
}
