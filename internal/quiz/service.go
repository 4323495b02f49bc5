package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

const (
	EventAttemptStarted   = "quiz_attempts_started"
	EventAnswerSubmitted  = "quiz_answers_submitted"
	EventAttemptCompleted = "quiz_attempts_completed"
)

// EventRecorder counts engine events for metrics.
type EventRecorder interface {
	RecordEvent(name string)
}

type Service struct {
	store    Store
	rnd      Rand
	now      func() time.Time
	location *time.Location
	events   EventRecorder
}

type ServiceConfig struct {
	Rand   Rand
	Now    func() time.Time
	Events EventRecorder
	// Location decides the calendar date shown in history. Defaults to UTC.
	Location *time.Location
}

func NewService(store Store, cfg ServiceConfig) *Service {
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		store:    store,
		rnd:      cfg.Rand,
		now:      cfg.Now,
		location: cfg.Location,
		events:   cfg.Events,
	}
}

func (s *Service) StartQuiz(ctx context.Context, userID int64, numberOfQuestions int) (*QuizStarted, error) {
	available, err := s.store.CountQuestions(ctx)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if numberOfQuestions > available || numberOfQuestions <= 0 {
		return nil, &LimitError{Requested: numberOfQuestions, Available: available}
	}

	exists, err := s.store.UserExists(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	ids, err := s.store.QuestionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list question ids: %w", err)
	}
	if numberOfQuestions > len(ids) {
		return nil, &LimitError{Requested: numberOfQuestions, Available: len(ids)}
	}
	picked := sampleIDs(s.rnd, ids, numberOfQuestions)

	questions, err := s.store.QuestionsByID(ctx, picked)
	if err != nil {
		return nil, err
	}

	var attempt Attempt
	err = s.store.InTx(ctx, func(tx Tx) error {
		a, err := tx.SaveAttempt(ctx, userID, s.now().UTC())
		if err != nil {
			return err
		}
		if err := tx.SaveAttemptAnswers(ctx, a.ID, picked); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(EventAttemptStarted)
	log.Printf("quiz attempt started attempt_id=%d user_id=%d questions=%d", attempt.ID, userID, len(picked))

	out := &QuizStarted{AttemptID: attempt.ID, Questions: make([]PublicQuestion, 0, len(questions))}
	for _, q := range questions {
		out.Questions = append(out.Questions, q.Public())
	}
	return out, nil
}

func (s *Service) SubmitAnswer(ctx context.Context, attemptID, questionID, selectedOptionID int64) (*AnswerResult, error) {
	var (
		result    AnswerResult
		completed bool
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		selected, err := tx.FindOption(ctx, selectedOptionID)
		if err != nil {
			return err
		}

		if _, err := tx.LockAttempt(ctx, attemptID); err != nil {
			if errors.Is(err, ErrAttemptNotFound) {
				return ErrAttemptAnswerNotFound
			}
			return err
		}

		row, err := tx.FindAttemptAnswer(ctx, attemptID, questionID)
		if err != nil {
			return err
		}
		if row.SelectedOptionID != nil {
			return ErrQuestionAlreadyAnswered
		}
		if selected.QuestionID != questionID {
			return ErrInvalidAnswerForQuestion
		}

		correct, err := tx.FindCorrectOption(ctx, questionID)
		if err != nil {
			return err
		}

		if err := tx.SelectOption(ctx, row.ID, selected.ID, s.now().UTC()); err != nil {
			return err
		}

		completed, err = completeIfAnswered(ctx, tx, attemptID)
		if err != nil {
			return err
		}

		result = AnswerResult{
			QuestionID:       questionID,
			SelectedOptionID: selected.ID,
			Correct:          selected.IsCorrect,
			CorrectOptionID:  correct.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.record(EventAnswerSubmitted)
	if completed {
		s.record(EventAttemptCompleted)
		log.Printf("quiz attempt completed attempt_id=%d", attemptID)
	}
	return &result, nil
}

// completeIfAnswered flips the attempt to COMPLETED once every slot has a
// selection. Calling it again on a completed attempt changes nothing.
func completeIfAnswered(ctx context.Context, tx Tx, attemptID int64) (bool, error) {
	counts, err := tx.CountAnswers(ctx, attemptID)
	if err != nil {
		return false, err
	}
	if counts.Total == 0 || counts.Submitted < counts.Total {
		return false, nil
	}
	return tx.MarkCompleted(ctx, attemptID)
}

func (s *Service) GetResult(ctx context.Context, attemptID int64) (*Result, error) {
	if _, err := s.store.FindAttempt(ctx, attemptID); err != nil {
		return nil, err
	}
	counts, err := s.store.CountAnswers(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	return &Result{TotalQuestions: counts.Total, CorrectAnswers: counts.Correct}, nil
}

func (s *Service) GetHistory(ctx context.Context, userID int64) ([]AttemptSummary, error) {
	attempts, err := s.store.FindAttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, AttemptSummary{
			AttemptID:      a.ID,
			Date:           a.CreatedAt.In(s.location).Format(time.DateOnly),
			TotalQuestions: a.Total,
			CorrectAnswers: a.Correct,
			Status:         a.Status,
		})
	}
	return out, nil
}

func (s *Service) GetAttempt(ctx context.Context, attemptID int64) (*AttemptDetail, error) {
	attempt, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListAnsweredRows(ctx, attemptID)
	if err != nil {
		return nil, err
	}

	out := &AttemptDetail{
		AttemptID:   attempt.ID,
		AttemptTime: attempt.CreatedAt,
		Status:      attempt.Status,
		Questions:   make([]AttemptQuestion, 0, len(rows)),
	}
	for _, row := range rows {
		item := AttemptQuestion{Question: row.Question.Public()}
		if row.SelectedOptionID != nil {
			item.SelectedOptionID = row.SelectedOptionID
			item.IsCorrect = row.SelectedCorrect
			item.CorrectOptionID = row.CorrectOptionID
		}
		out.Questions = append(out.Questions, item)
	}
	return out, nil
}

// GetAttemptOwner returns the id of the user who started the attempt.
func (s *Service) GetAttemptOwner(ctx context.Context, attemptID int64) (int64, error) {
	attempt, err := s.store.FindAttempt(ctx, attemptID)
	if err != nil {
		return 0, err
	}
	return attempt.UserID, nil
}

func (s *Service) QuestionCount(ctx context.Context) (int, error) {
	n, err := s.store.CountQuestions(ctx)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Service) record(event string) {
	if s.events != nil {
		s.events.RecordEvent(event)
	}
}
