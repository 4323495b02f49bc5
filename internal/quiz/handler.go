package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"prepquiz/internal/app/apiresp"
	"prepquiz/internal/auth"

	"github.com/go-chi/chi/v5"
)

var errAttemptForbidden = errors.New("attempt forbidden")

type Handler struct {
	svc quizService
}

type quizService interface {
	StartQuiz(ctx context.Context, userID int64, numberOfQuestions int) (*QuizStarted, error)
	SubmitAnswer(ctx context.Context, attemptID, questionID, selectedOptionID int64) (*AnswerResult, error)
	GetResult(ctx context.Context, attemptID int64) (*Result, error)
	GetHistory(ctx context.Context, userID int64) ([]AttemptSummary, error)
	GetAttempt(ctx context.Context, attemptID int64) (*AttemptDetail, error)
	GetAttemptOwner(ctx context.Context, attemptID int64) (int64, error)
	QuestionCount(ctx context.Context) (int, error)
}

type response struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type startQuizRequest struct {
	UserID            int64 `json:"userId"`
	NumberOfQuestions int   `json:"numberOfQuestions"`
}

type submitAnswerRequest struct {
	QuestionID       int64  `json:"questionId"`
	SelectedOptionID *int64 `json:"selectedOptionId"`
	// selectedAnswerId is the name older clients send.
	SelectedAnswerID *int64 `json:"selectedAnswerId"`
}

func NewHandler(svc quizService) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	var req startQuizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	if req.UserID <= 0 {
		req.UserID = user.ID
	}
	if req.UserID != user.ID && !user.IsAdmin() {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}

	started, err := h.svc.StartQuiz(r.Context(), req.UserID, req.NumberOfQuestions)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, response{OK: true, Data: started})
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}

	var req submitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid request body"})
		return
	}
	selected := req.SelectedOptionID
	if selected == nil {
		selected = req.SelectedAnswerID
	}
	if req.QuestionID <= 0 || selected == nil || *selected <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "questionId and selectedOptionId are required"})
		return
	}

	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		writeAccessError(w, r, err)
		return
	}

	result, err := h.svc.SubmitAnswer(r.Context(), attemptID, req.QuestionID, *selected)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: result})
}

func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}
	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		writeAccessError(w, r, err)
		return
	}

	result, err := h.svc.GetResult(r.Context(), attemptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: result})
}

func (h *Handler) GetAttempt(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	attemptID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || attemptID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid attempt id"})
		return
	}
	if err := h.authorizeAttemptAccess(r, user, attemptID); err != nil {
		writeAccessError(w, r, err)
		return
	}

	detail, err := h.svc.GetAttempt(r.Context(), attemptID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: detail})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r.Context())
	if !ok {
		writeJSON(w, r, http.StatusUnauthorized, response{OK: false, Error: "unauthorized"})
		return
	}

	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, response{OK: false, Error: "invalid user id"})
		return
	}
	if userID != user.ID && !user.IsAdmin() {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}

	history, err := h.svc.GetHistory(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: history})
}

func (h *Handler) QuestionCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.QuestionCount(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, response{OK: true, Data: map[string]int{"count": n}})
}

func (h *Handler) authorizeAttemptAccess(r *http.Request, user *auth.User, attemptID int64) error {
	if user.IsAdmin() {
		return nil
	}

	ownerID, err := h.svc.GetAttemptOwner(r.Context(), attemptID)
	if err != nil {
		return err
	}
	if ownerID != user.ID {
		return errAttemptForbidden
	}
	return nil
}

func writeAccessError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errAttemptForbidden) {
		writeJSON(w, r, http.StatusForbidden, response{OK: false, Error: "forbidden"})
		return
	}
	writeServiceError(w, r, err)
}

// writeServiceError maps each domain error kind to one HTTP status and keeps
// the domain code in the envelope so clients can tell the cases apart.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := AsError(err)
	if !ok {
		log.Printf("quiz request failed: %v", err)
		writeJSON(w, r, http.StatusInternalServerError, response{OK: false, Error: "internal error"})
		return
	}
	apiresp.WriteErrorCode(w, r, statusForKind(e.Kind), e.Code, e.Message)
}

func statusForKind(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindLimitExceeded, KindInvalidInput:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload response) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
