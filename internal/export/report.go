package export

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/session"
)

// DocContentType is served with the assessment report so word processors open it.
const DocContentType = "application/msword"

// ReportFilename returns the download name of the assessment report.
func ReportFilename(studentID string) string {
	return fmt.Sprintf("Assessment_Report_%s.doc", studentID)
}

// Report is the input for the assessment document.
type Report struct {
	StudentID string
	Date      time.Time
	Logbook   scenario.Logbook
	Feedback  mentor.RubricFeedback
	Survey    *session.Survey
}

type logSection struct {
	Title string
	Text  string
}

type outcomeRow struct {
	Label string
	Text  string
}

type surveyRow struct {
	Label  string
	Answer string
}

type reportView struct {
	StudentID string
	Date      string
	Logs      []logSection
	Outcomes  []outcomeRow
	Survey    []surveyRow
}

var reportTmpl = template.Must(template.New("report").Parse(`<html xmlns:o='urn:schemas-microsoft-com:office:office' xmlns:w='urn:schemas-microsoft-com:office:word' xmlns='http://www.w3.org/TR/REC-html40'>
<head><meta charset='utf-8'><title>Assessment Report</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6;">
<h1 style="color: #2c3e50;">Front Desk Operations: Assessment Report</h1>
<p><strong>Student ID:</strong> {{.StudentID}}</p>
<p><strong>Date:</strong> {{.Date}}</p>
<hr/>
<h2 style="color: #2c3e50;">Part 1: Scenario Analysis Logs</h2>
{{range .Logs}}<h3>{{.Title}}</h3>
<p style="white-space: pre-wrap; background: #f8f9fa; padding: 10px;">{{.Text}}</p>
{{end}}<hr/>
<h2 style="color: #2c3e50;">Part 2: Learning Outcome Feedback</h2>
<p><em>Based on assignment rubric. This is qualitative feedback only.</em></p>
<table border="1" cellpadding="10" cellspacing="0" style="border-collapse: collapse; width: 100%;">
{{range .Outcomes}}<tr>
<td style="background: #e2e8f0; font-weight: bold; width: 30%;">{{.Label}}</td>
<td>{{.Text}}</td>
</tr>
{{end}}</table>
{{if .Survey}}<hr/>
<h2 style="color: #2c3e50;">Part 3: Reflection Survey</h2>
<table border="1" cellpadding="10" cellspacing="0" style="border-collapse: collapse; width: 100%;">
{{range .Survey}}<tr>
<td style="background: #e2e8f0; font-weight: bold; width: 30%;">{{.Label}}</td>
<td>{{.Answer}}</td>
</tr>
{{end}}</table>
{{end}}</body>
</html>
`))

var logTitles = []struct {
	id    scenario.ID
	title string
}{
	{scenario.PMS, "PMS Analysis (Lean Operations)"},
	{scenario.Phone, "Social Intelligence (Guest Incident)"},
	{scenario.Folder, "Sustainability Audit (Circular Economy)"},
	{scenario.Tablet, "Technology Integration (Strategy)"},
}

const noEntryRecorded = "No entry recorded."

// WriteReportDoc renders the assessment report as Word-compatible HTML.
// Student text is HTML-escaped.
func WriteReportDoc(w io.Writer, r Report) error {
	v := reportView{
		StudentID: r.StudentID,
		Date:      r.Date.Format("2 January 2006"),
	}
	for _, lt := range logTitles {
		text := r.Logbook[lt.id]
		if text == "" {
			text = noEntryRecorded
		}
		v.Logs = append(v.Logs, logSection{Title: lt.title, Text: text})
	}
	v.Outcomes = []outcomeRow{
		{"LO1 & LO2: Knowledge & Understanding", r.Feedback.LO1_2},
		{"LO3: Subject Specific Skills (Sustainability)", r.Feedback.LO3},
		{"LO4: Strategic Thinking (Tech)", r.Feedback.LO4},
		{"LO5: Social Intelligence (Graduate Attribute)", r.Feedback.LO5},
		{"Transferable Skills (Communication)", r.Feedback.Transferable},
	}
	if r.Survey != nil {
		answers := append(scoreStrings(*r.Survey), r.Survey.ReflectionConstraint, r.Survey.StudentExperience)
		for i, q := range session.Questions {
			v.Survey = append(v.Survey, surveyRow{Label: q.Label, Answer: answers[i]})
		}
	}

	if err := reportTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	return nil
}
