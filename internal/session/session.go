package session

import (
	"errors"
	"maps"

	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/scenario"
)

var (
	// ErrNoSession is returned when a student has not started a shift.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")
)

// Notifications flags the dashboard hotspots the student has not opened yet.
type Notifications struct {
	Phone  bool `json:"phone"`
	Tablet bool `json:"tablet"`
	Folder bool `json:"folder"`
}

func (n Notifications) seen(id scenario.ID) Notifications {
	switch id {
	case scenario.Phone:
		n.Phone = false
	case scenario.Tablet:
		n.Tablet = false
	case scenario.Folder:
		n.Folder = false
	}
	return n
}

// Session is an immutable snapshot of one student's shift. Values returned by the
// Manager are copies; change them only through Reduce.
type Session struct {
	StudentID     string                 `json:"studentId"`
	View          scenario.ID            `json:"view"`
	Logbook       scenario.Logbook       `json:"logbook"`
	ShiftStarted  bool                   `json:"shiftStarted"`
	Notifications Notifications          `json:"notifications"`
	Feedback      map[scenario.ID]string `json:"feedback"`
	Report        *mentor.RubricFeedback `json:"report,omitempty"`
	Survey        *Survey                `json:"survey,omitempty"`
}

// New returns the initial state of a shift for studentID.
func New(studentID string) Session {
	return Session{
		StudentID:     studentID,
		View:          scenario.Dashboard,
		Logbook:       scenario.NewLogbook(),
		ShiftStarted:  true,
		Notifications: Notifications{Phone: true, Tablet: true, Folder: true},
		Feedback:      map[scenario.ID]string{},
	}
}

// Clone returns a deep copy.
func (s Session) Clone() Session {
	out := s
	out.Logbook = s.Logbook.Clone()
	out.Feedback = maps.Clone(s.Feedback)
	if out.Feedback == nil {
		out.Feedback = map[scenario.ID]string{}
	}
	if s.Report != nil {
		r := *s.Report
		out.Report = &r
	}
	if s.Survey != nil {
		sv := *s.Survey
		out.Survey = &sv
	}
	return out
}

// Notes returns the logbook entry for the current view.
func (s Session) Notes() string {
	return s.Logbook[s.View]
}

// Action is a single state change applied by Reduce.
type Action interface {
	action()
}

// Navigate moves the student to another scenario.
type Navigate struct{ To scenario.ID }

// EditLogbook replaces the notes of the current view. Any feedback for that view
// is discarded since it no longer matches the text.
type EditLogbook struct{ Content string }

// RecordFeedback stores feedback for Scenario, provided the logbook entry still
// equals Notes (the text the feedback was produced for).
type RecordFeedback struct {
	Scenario scenario.ID
	Notes    string
	Text     string
}

// SetReport stores the rubric report.
type SetReport struct{ Report mentor.RubricFeedback }

// ClearReport drops the rubric report.
type ClearReport struct{}

// SubmitSurvey stores a validated survey.
type SubmitSurvey struct{ Survey Survey }

func (Navigate) action()       {}
func (EditLogbook) action()    {}
func (RecordFeedback) action() {}
func (SetReport) action()      {}
func (ClearReport) action()    {}
func (SubmitSurvey) action()   {}

// Reduce returns the state that results from applying a to s. s is not modified.
func Reduce(s Session, a Action) Session {
	next := s.Clone()
	switch a := a.(type) {
	case Navigate:
		if !a.To.Valid() {
			return next
		}
		next.View = a.To
		next.Notifications = next.Notifications.seen(a.To)
	case EditLogbook:
		next.Logbook[next.View] = a.Content
		delete(next.Feedback, next.View)
	case RecordFeedback:
		if next.Logbook[a.Scenario] == a.Notes {
			next.Feedback[a.Scenario] = a.Text
		}
	case SetReport:
		r := a.Report
		next.Report = &r
	case ClearReport:
		next.Report = nil
	case SubmitSurvey:
		sv := a.Survey
		next.Survey = &sv
	}
	return next
}
