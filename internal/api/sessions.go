package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/session"
)

type startShiftRequest struct {
	StudentID string `json:"student_id"`
}

type navigateRequest struct {
	Scenario string `json:"scenario"`
}

type logbookRequest struct {
	Content string `json:"content"`
}

// textResponse is returned by the guidance, theory and feedback routes.
type textResponse struct {
	Scenario scenario.ID `json:"scenario"`
	Text     string      `json:"text"`
	Degraded bool        `json:"degraded"`
}

type reportResponse struct {
	Report   mentor.RubricFeedback `json:"report"`
	Degraded bool                  `json:"degraded"`
}

func handleStartShift(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startShiftRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, err := deps.Sessions.StartShift(req.StudentID)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func handleGetSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleNavigate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req navigateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		to, err := scenario.Parse(req.Scenario)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		s, err := deps.Sessions.Dispatch(chi.URLParam(r, "id"), session.Navigate{To: to})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleEditLogbook(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logbookRequest
		if !decodeBody(w, r, &req) {
			return
		}
		s, err := deps.Sessions.Dispatch(chi.URLParam(r, "id"), session.EditLogbook{Content: req.Content})
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleHandover(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Handover(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleSubmitSurvey(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sv session.Survey
		if !decodeBody(w, r, &sv) {
			return
		}
		s, err := deps.Sessions.SubmitSurvey(chi.URLParam(r, "id"), sv)
		if err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func handleGuidance(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		ctx, done := deps.Inflight.Begin(r.Context(), mentor.Key{Student: s.StudentID, Scenario: s.View, Kind: mentor.KindGuidance})
		defer done()

		res := deps.Mentor.Guidance(ctx, s.View, s.Notes())
		if discarded(ctx, w, r) {
			return
		}
		writeJSON(w, http.StatusOK, textResponse{Scenario: s.View, Text: res.Value, Degraded: res.Degraded})
	}
}

func handleTheory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		ctx, done := deps.Inflight.Begin(r.Context(), mentor.Key{Student: s.StudentID, Scenario: s.View, Kind: mentor.KindTheory})
		defer done()

		res := deps.Mentor.Theory(ctx, s.View)
		if discarded(ctx, w, r) {
			return
		}
		writeJSON(w, http.StatusOK, textResponse{Scenario: s.View, Text: res.Value, Degraded: res.Degraded})
	}
}

// handleBriefing returns guidance and theory for the current view in one call.
// It supersedes any pending guidance or theory call for the same scenario.
func handleBriefing(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		gctx, gdone := deps.Inflight.Begin(r.Context(), mentor.Key{Student: s.StudentID, Scenario: s.View, Kind: mentor.KindGuidance})
		defer gdone()
		ctx, tdone := deps.Inflight.Begin(gctx, mentor.Key{Student: s.StudentID, Scenario: s.View, Kind: mentor.KindTheory})
		defer tdone()

		b := deps.Mentor.Briefing(ctx, s.View, s.Notes())
		if discarded(ctx, w, r) {
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// handleFeedback evaluates the notes of the current view. The result is stored
// only when the notes have not changed while the call was running.
func handleFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		view, notes := s.View, s.Notes()
		ctx, done := deps.Inflight.Begin(r.Context(), mentor.Key{Student: s.StudentID, Scenario: view, Kind: mentor.KindFeedback})
		defer done()

		res := deps.Mentor.Feedback(ctx, view, notes)
		if discarded(ctx, w, r) {
			return
		}
		if _, err := deps.Sessions.Dispatch(s.StudentID, session.RecordFeedback{Scenario: view, Notes: notes, Text: res.Value}); err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, textResponse{Scenario: view, Text: res.Value, Degraded: res.Degraded})
	}
}

func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		ctx, done := deps.Inflight.Begin(r.Context(), mentor.Key{Student: s.StudentID, Scenario: scenario.Handover, Kind: mentor.KindReport})
		defer done()

		res := deps.Mentor.Report(ctx, s.Logbook)
		if discarded(ctx, w, r) {
			return
		}
		if _, err := deps.Sessions.Dispatch(s.StudentID, session.SetReport{Report: res.Value}); err != nil {
			sessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reportResponse{Report: res.Value, Degraded: res.Degraded})
	}
}
