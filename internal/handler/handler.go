// Package handler exposes the assessment services over a JSON API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/pavelanni/assessor/internal/assessment"
	"github.com/pavelanni/assessor/internal/i18n"
	"github.com/pavelanni/assessor/internal/model"
	"github.com/pavelanni/assessor/internal/store"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	services map[model.Kind]*assessment.Service
	health   Pinger
}

// New creates a Handler serving one route tree per service kind.
func New(health Pinger, services ...*assessment.Service) *Handler {
	h := &Handler{services: make(map[model.Kind]*assessment.Service), health: health}
	for _, s := range services {
		h.services[s.Kind()] = s
	}
	return h
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api/{kind}", func(r chi.Router) {
		r.Use(i18n.Middleware, h.withService)
		r.Post("/submit", h.handleSubmit)
		r.Post("/grade", h.handleGrade)
		r.Get("/results", h.handleListResults)
		r.Get("/results/{id}", h.handleGetResult)
		r.Get("/results/{id}/suggestions", h.handleSuggestions)
		r.Get("/results/{id}/events", h.handleGradeEvents)
		r.Get("/tests/{id}", h.handleGetTest)
	})
}

type serviceKey struct{}

func (h *Handler) withService(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")
		svc, ok := h.services[model.Kind(kind)]
		if !ok {
			writeError(w, http.StatusNotFound, "invalid_kind",
				i18n.Td(r.Context(), "InvalidKind", map[string]any{"Kind": kind}))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), serviceKey{}, svc)))
	})
}

func service(r *http.Request) *assessment.Service {
	return r.Context().Value(serviceKey{}).(*assessment.Service)
}

// SubmitRequest is the body of POST /api/{kind}/submit.
type SubmitRequest struct {
	TestID    int64           `json:"testId" validate:"required,gt=0"`
	StudentID string          `json:"studentId" validate:"required"`
	Answers   model.AnswerMap `json:"answers"`
}

// SubmitResponse is returned by a successful submission.
type SubmitResponse struct {
	ID               int64        `json:"id"`
	Reference        string       `json:"reference,omitempty"`
	Attempt          int          `json:"attempt"`
	Score            float64      `json:"score"`
	TotalPoints      float64      `json:"totalPoints"`
	Percentage       float64      `json:"percentage"`
	Status           model.Status `json:"status"`
	RecommendedLevel *model.Level `json:"recommendedLevel"`
}

// GradeRequest is the body of POST /api/{kind}/grade.
type GradeRequest struct {
	ResultID        int64              `json:"resultId" validate:"required,gt=0"`
	EssayMarks      map[string]float64 `json:"essayMarks" validate:"omitempty,dive,gte=0"`
	OralReviewMarks *float64           `json:"oralReviewMarks" validate:"omitempty,gte=0"`
	Feedback        *model.Feedback    `json:"feedback"`
}

// GradeResponse is returned by a successful grading pass.
type GradeResponse struct {
	ID               int64        `json:"id"`
	Score            float64      `json:"score"`
	Status           model.Status `json:"status"`
	RecommendedLevel *model.Level `json:"recommendedLevel"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, err := service(r).Submit(r.Context(), assessment.SubmitInput{
		TestID:    req.TestID,
		StudentID: req.StudentID,
		Answers:   req.Answers,
	})
	if err != nil {
		writeServiceError(w, r, err, "TestNotFound")
		return
	}
	writeJSON(w, http.StatusCreated, SubmitResponse{
		ID:               rec.ID,
		Reference:        rec.Reference,
		Attempt:          rec.Attempt,
		Score:            rec.Score,
		TotalPoints:      rec.TotalPoints,
		Percentage:       rec.Percentage,
		Status:           rec.Status,
		RecommendedLevel: rec.RecommendedLevel,
	})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	rec, err := service(r).Grade(r.Context(), assessment.GradeInput{
		ResultID:        req.ResultID,
		EssayMarks:      req.EssayMarks,
		OralReviewMarks: req.OralReviewMarks,
		Feedback:        req.Feedback,
	})
	if err != nil {
		writeServiceError(w, r, err, "ResultNotFound")
		return
	}
	writeJSON(w, http.StatusOK, GradeResponse{
		ID:               rec.ID,
		Score:            rec.Score,
		Status:           rec.Status,
		RecommendedLevel: rec.RecommendedLevel,
	})
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := service(r).Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "ResultNotFound")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	f := store.ResultFilter{
		StudentID: r.URL.Query().Get("studentId"),
		Status:    model.Status(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("testId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", i18n.T(r.Context(), "InvalidRequest"))
			return
		}
		f.TestID = id
	}
	recs, err := service(r).List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err, "ResultNotFound")
		return
	}
	if recs == nil {
		recs = []model.ResultRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	suggestions, err := service(r).Suggest(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "ResultNotFound")
		return
	}
	if suggestions == nil {
		suggestions = []model.EssaySuggestion{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) handleGradeEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	events, err := service(r).Events(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "ResultNotFound")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleGetTest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	test, err := service(r).Test(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "TestNotFound")
		return
	}
	test.Questions = test.Questions.Redacted()
	writeJSON(w, http.StatusOK, test)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", i18n.T(r.Context(), "InvalidRequest"))
		return 0, false
	}
	return id, true
}

// decodeRequest reads and validates a JSON body, writing a 400 on failure.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", i18n.T(r.Context(), "InvalidRequest"))
		return false
	}
	if err := model.Validator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "invalid_request", i18n.T(r.Context(), "InvalidRequest"))
			return false
		}
		details := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			details = append(details, i18n.Td(r.Context(), "InvalidField", map[string]any{
				"Field": fe.Namespace(),
				"Rule":  fe.Tag(),
			}))
		}
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:   "invalid_request",
			Message: i18n.T(r.Context(), "InvalidRequest"),
			Details: details,
		})
		return false
	}
	return true
}

// writeServiceError maps service errors to status codes. notFoundMsg names
// the message shown for ErrNotFound.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFoundMsg string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, assessment.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", i18n.T(ctx, notFoundMsg))
	case errors.Is(err, assessment.ErrAlreadySubmitted):
		writeError(w, http.StatusBadRequest, "already_submitted", i18n.T(ctx, "AlreadySubmitted"))
	case errors.Is(err, assessment.ErrMalformedDefinition):
		slog.Error("malformed test definition", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusUnprocessableEntity, "malformed_definition", i18n.T(ctx, "MalformedDefinition"))
	case errors.Is(err, assessment.ErrSuggestionsDisabled):
		writeError(w, http.StatusNotImplemented, "suggestions_disabled", i18n.T(ctx, "SuggestionsDisabled"))
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", i18n.T(ctx, "InternalError"))
	}
}

type errorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
