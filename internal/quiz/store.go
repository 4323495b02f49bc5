package quiz

import (
	"context"
	"time"
)

// Catalog is the read-only question bank.
type Catalog interface {
	CountQuestions(ctx context.Context) (int, error)
	QuestionIDs(ctx context.Context) ([]int64, error)
	// QuestionsByID returns the questions with their options, in the order of ids.
	QuestionsByID(ctx context.Context, ids []int64) ([]Question, error)
}

type Users interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// Store is the durable attempt storage. Lookups that miss return the
// matching not-found sentinel.
type Store interface {
	Catalog
	Users

	FindAttempt(ctx context.Context, attemptID int64) (Attempt, error)
	CountAnswers(ctx context.Context, attemptID int64) (AnswerCounts, error)
	// FindAttemptsByUser lists newest first.
	FindAttemptsByUser(ctx context.Context, userID int64) ([]AttemptStats, error)
	ListAnsweredRows(ctx context.Context, attemptID int64) ([]AnsweredRow, error)

	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side, valid only inside Store.InTx.
type Tx interface {
	SaveAttempt(ctx context.Context, userID int64, createdAt time.Time) (Attempt, error)
	SaveAttemptAnswers(ctx context.Context, attemptID int64, questionIDs []int64) error

	// LockAttempt serializes writers of one attempt until the transaction ends.
	LockAttempt(ctx context.Context, attemptID int64) (Attempt, error)
	FindOption(ctx context.Context, optionID int64) (Option, error)
	FindCorrectOption(ctx context.Context, questionID int64) (Option, error)
	FindAttemptAnswer(ctx context.Context, attemptID, questionID int64) (AttemptAnswer, error)
	// SelectOption sets the selection only while it is still null and
	// returns ErrQuestionAlreadyAnswered otherwise.
	SelectOption(ctx context.Context, answerID, optionID int64, at time.Time) error
	CountAnswers(ctx context.Context, attemptID int64) (AnswerCounts, error)
	// MarkCompleted reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, attemptID int64) (bool, error)
}
