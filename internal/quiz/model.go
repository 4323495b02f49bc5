package quiz

import "time"

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Question is a catalog entry. Options always carry the correctness flag;
// it is stripped before anything leaves the service.
type Question struct {
	ID      int64
	Text    string
	Options []Option
}

type Option struct {
	ID         int64
	QuestionID int64
	Text       string
	IsCorrect  bool
}

type Attempt struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	Status    Status
}

type AttemptAnswer struct {
	ID               int64
	AttemptID        int64
	QuestionID       int64
	SelectedOptionID *int64
}

// AnswerCounts are the three counting primitives over an attempt's answer rows.
type AnswerCounts struct {
	Total     int
	Submitted int
	Correct   int
}

// AnsweredRow is one answer slot joined with what it takes to render it.
// CorrectOptionID is only populated by the store when a selection exists.
type AnsweredRow struct {
	AnswerID         int64
	Question         Question
	SelectedOptionID *int64
	SelectedCorrect  *bool
	CorrectOptionID  *int64
}

// AttemptStats is an attempt with its counters, as listed in a user's history.
type AttemptStats struct {
	Attempt
	AnswerCounts
}

type PublicOption struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type PublicQuestion struct {
	ID      int64          `json:"id"`
	Text    string         `json:"text"`
	Options []PublicOption `json:"options"`
}

type QuizStarted struct {
	AttemptID int64            `json:"attemptId"`
	Questions []PublicQuestion `json:"questions"`
}

type AnswerResult struct {
	QuestionID       int64 `json:"questionId"`
	SelectedOptionID int64 `json:"selectedOptionId"`
	Correct          bool  `json:"correct"`
	CorrectOptionID  int64 `json:"correctOptionId"`
}

type Result struct {
	TotalQuestions int `json:"totalQuestions"`
	CorrectAnswers int `json:"correctAnswers"`
}

type AttemptSummary struct {
	AttemptID      int64  `json:"attemptId"`
	Date           string `json:"date"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectAnswers int    `json:"correctAnswers"`
	Status         Status `json:"status"`
}

type AttemptQuestion struct {
	Question         PublicQuestion `json:"question"`
	SelectedOptionID *int64         `json:"selectedOptionId"`
	IsCorrect        *bool          `json:"isCorrect"`
	CorrectOptionID  *int64         `json:"correctOptionId"`
}

type AttemptDetail struct {
	AttemptID   int64             `json:"attemptId"`
	AttemptTime time.Time         `json:"attemptTime"`
	Status      Status            `json:"status"`
	Questions   []AttemptQuestion `json:"questions"`
}

func (q Question) Public() PublicQuestion {
	out := PublicQuestion{ID: q.ID, Text: q.Text, Options: make([]PublicOption, 0, len(q.Options))}
	for _, o := range q.Options {
		out.Options = append(out.Options, PublicOption{ID: o.ID, Text: o.Text})
	}
	return out
}
