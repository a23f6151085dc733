package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/kalambet/frontdesk/internal/session"
)

// CSVContentType is served with the survey export.
const CSVContentType = "text/csv; charset=utf-8"

// SurveysFilename is the download name of the survey export.
const SurveysFilename = "survey_responses.csv"

var surveyHeader = []string{
	"student_id",
	"submitted_at",
	"strategic_thinking",
	"epistemic_vigilance",
	"intellectual_autonomy",
	"perceived_usefulness",
	"perceived_ease_of_use",
	"reflection_constraint",
	"student_experience",
}

func scoreStrings(s session.Survey) []string {
	return lo.Map(s.Scores(), func(v int, _ int) string { return strconv.Itoa(v) })
}

// WriteSurveysCSV writes one row per survey with a header row first.
func WriteSurveysCSV(w io.Writer, recs []session.SurveyRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(surveyHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range recs {
		row := make([]string, 0, len(surveyHeader))
		row = append(row, r.StudentID, r.Survey.SubmittedAt.UTC().Format(time.RFC3339))
		row = append(row, scoreStrings(r.Survey)...)
		row = append(row, r.Survey.ReflectionConstraint, r.Survey.StudentExperience)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row for %s: %w", r.StudentID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
