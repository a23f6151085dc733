package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/session"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Sessions   *session.Manager
	Mentor     *mentor.Service
	Inflight   *mentor.Inflight // optional; a private registry is created when nil
	AdminToken string           // empty disables the admin routes
	Now        func() time.Time // optional; defaults to time.Now
}

// NewHandler returns the front desk REST API.
func NewHandler(deps Deps) http.Handler {
	if deps.Inflight == nil {
		deps.Inflight = mentor.NewInflight()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))
	r.Get("/scenarios", handleScenarios)

	r.Post("/sessions", handleStartShift(deps))
	r.Get("/sessions/{id}", handleGetSession(deps))
	r.Post("/sessions/{id}/navigate", handleNavigate(deps))
	r.Put("/sessions/{id}/logbook", handleEditLogbook(deps))
	r.Post("/sessions/{id}/handover", handleHandover(deps))
	r.Post("/sessions/{id}/survey", handleSubmitSurvey(deps))

	r.Get("/sessions/{id}/guidance", handleGuidance(deps))
	r.Get("/sessions/{id}/theory", handleTheory(deps))
	r.Get("/sessions/{id}/briefing", handleBriefing(deps))
	r.Post("/sessions/{id}/feedback", handleFeedback(deps))
	r.Post("/sessions/{id}/report", handleReport(deps))

	r.Get("/sessions/{id}/report.doc", handleReportDoc(deps))
	r.Get("/sessions/{id}/scenarios/{scenario}/transcript.pdf", handleTranscript(deps))

	r.Group(func(r chi.Router) {
		if deps.AdminToken == "" {
			r.Use(adminDisabled)
		} else {
			r.Use(BearerAuth(deps.AdminToken))
		}
		r.Get("/admin/surveys.csv", handleSurveysCSV(deps))
	})

	return r
}

type healthResponse struct {
	Status       string `json:"status"`
	ActiveShifts int    `json:"active_shifts"`
	Error        string `json:"error,omitempty"`
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", ActiveShifts: deps.Sessions.Active()}
		if err := deps.Sessions.Ping(); err != nil {
			slog.Warn("health check: storage unreachable", "error", err)
			resp.Status, resp.Error = "degraded", "storage unreachable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenario.List())
}

func adminDisabled(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusForbidden, "permission_error", "admin routes are disabled: set FRONTDESK_ADMIN_TOKEN")
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// sessionError maps session errors to HTTP status codes.
func sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		httpError(w, http.StatusNotFound, "not_found", "no active shift for this student: POST /sessions first")
	case errors.Is(err, session.ErrInvalidInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

// discarded reports whether the mentor result computed under ctx must be
// dropped. A superseded call answers 409; a caller that went away gets nothing
// and the session is left untouched.
func discarded(ctx context.Context, w http.ResponseWriter, r *http.Request) bool {
	if mentor.Superseded(ctx) {
		httpError(w, http.StatusConflict, "superseded", "request superseded by a newer one for the same scenario")
		return true
	}
	if err := r.Context().Err(); err != nil {
		slog.Debug("caller gone, dropping mentor result", "path", r.URL.Path, "error", err)
		return true
	}
	return false
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
