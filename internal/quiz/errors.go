package quiz

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindLimitExceeded Kind = "limit_exceeded"
	KindConflict      Kind = "conflict"
	KindInvalidInput  Kind = "invalid_input"
	KindDataIntegrity Kind = "data_integrity"
)

// Error is a domain failure with a stable code callers can branch on.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

var (
	ErrUserNotFound             = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrAttemptNotFound          = &Error{Kind: KindNotFound, Code: "quiz_attempt_not_found", Message: "quiz attempt not found"}
	ErrAttemptAnswerNotFound    = &Error{Kind: KindNotFound, Code: "quiz_attempt_answer_not_found", Message: "question is not part of this attempt"}
	ErrQuestionNotFound         = &Error{Kind: KindNotFound, Code: "question_not_found", Message: "question not found"}
	ErrAnswerOptionNotFound     = &Error{Kind: KindNotFound, Code: "answer_option_not_found", Message: "answer option not found"}
	ErrQuestionLimitExceeded    = &Error{Kind: KindLimitExceeded, Code: "quiz_question_limit_exceeded", Message: "requested number of questions is out of range"}
	ErrQuestionAlreadyAnswered  = &Error{Kind: KindConflict, Code: "question_already_answered", Message: "question already answered"}
	ErrInvalidAnswerForQuestion = &Error{Kind: KindInvalidInput, Code: "invalid_answer_for_question", Message: "answer option does not belong to question"}
	ErrCorrectAnswerNotFound    = &Error{Kind: KindDataIntegrity, Code: "correct_answer_not_found", Message: "question has no correct answer option"}
)

// LimitError reports an out-of-range question count.
type LimitError struct {
	Requested int
	Available int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("requested %d questions, catalog has %d", e.Requested, e.Available)
}

func (e *LimitError) Is(target error) bool {
	return target == ErrQuestionLimitExceeded
}

// AsError extracts the domain error from err, if any.
func AsError(err error) (*Error, bool) {
	var lim *LimitError
	if errors.As(err, &lim) {
		return &Error{Kind: KindLimitExceeded, Code: ErrQuestionLimitExceeded.Code, Message: lim.Error()}, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
