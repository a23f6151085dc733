package api

import (
	"bytes"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/frontdesk/internal/export"
	"github.com/kalambet/frontdesk/internal/scenario"
)

func handleReportDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}
		if s.Report == nil {
			httpError(w, http.StatusConflict, "report_not_ready", "no report generated yet: POST /sessions/%s/report first", s.StudentID)
			return
		}

		var buf bytes.Buffer
		err = export.WriteReportDoc(&buf, export.Report{
			StudentID: s.StudentID,
			Date:      deps.Now(),
			Logbook:   s.Logbook,
			Feedback:  *s.Report,
			Survey:    s.Survey,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render report: %v", err)
			return
		}
		attachment(w, export.DocContentType, export.ReportFilename(s.StudentID))
		w.Write(buf.Bytes())
	}
}

func handleTranscript(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := scenario.Parse(chi.URLParam(r, "scenario"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		s, err := deps.Sessions.Snapshot(chi.URLParam(r, "id"))
		if err != nil {
			sessionError(w, err)
			return
		}

		var buf bytes.Buffer
		err = export.WriteTranscriptPDF(&buf, export.Transcript{
			StudentID: s.StudentID,
			Scenario:  id,
			Notes:     s.Logbook[id],
			Feedback:  s.Feedback[id],
			Date:      deps.Now(),
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to render transcript: %v", err)
			return
		}
		attachment(w, export.PDFContentType, export.TranscriptFilename(s.StudentID, id))
		w.Write(buf.Bytes())
	}
}

func handleSurveysCSV(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := deps.Sessions.SavedSurveys()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list surveys: %v", err)
			return
		}

		var buf bytes.Buffer
		if err := export.WriteSurveysCSV(&buf, recs); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to write csv: %v", err)
			return
		}
		slog.Info("survey export", "rows", len(recs))
		attachment(w, export.CSVContentType, export.SurveysFilename)
		w.Write(buf.Bytes())
	}
}
