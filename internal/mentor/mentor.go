package mentor

import "context"

// Request is a single call to the generative model. It is built per call and
// never persisted.
type Request struct {
	Prompt string
	System string
	JSON   bool
}

// Generator sends a Request to a language model and returns the raw text reply.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Kind identifies one of the four AI operations.
type Kind string

const (
	KindGuidance Kind = "guidance"
	KindTheory   Kind = "theory"
	KindFeedback Kind = "feedback"
	KindReport   Kind = "report"
)

// Fallback holds the fixed replies used when a call cannot produce content.
type Fallback struct {
	Empty   string
	Offline string
}

// Fallbacks is the single table of degraded replies for the text operations.
var Fallbacks = map[Kind]Fallback{
	KindGuidance: {
		Empty:   "I'm here to help. What do you observe?",
		Offline: "The Mentor connection is currently offline due to high traffic. Please rely on your course notes.",
	},
	KindTheory: {
		Empty:   "Theory definitions unavailable.",
		Offline: "Could not retrieve theory definitions due to connection limits.",
	},
	KindFeedback: {
		Empty:   "Feedback currently unavailable.",
		Offline: "Could not generate feedback. Please try again in a moment.",
	},
}

// Short-circuit replies that never reach the model.
const (
	WriteMoreReply     = "Please write a more detailed analysis before submitting for evaluation."
	TaskOnlyReply      = "Feedback is available for specific operational tasks."
	MinFeedbackLength  = 10
	MissingCriterion   = "Insufficient data for feedback."
	reportErrorLead    = "Error generating feedback. Please try again later."
	reportErrorDefault = "Error generating feedback."
)

// Result carries the value of an AI operation. Degraded is set when Value came
// from a fallback rather than from the model.
type Result[T any] struct {
	Value    T    `json:"value"`
	Degraded bool `json:"degraded"`
}

// RubricFeedback is the feed-forward advice for each rubric criterion.
type RubricFeedback struct {
	LO1_2        string `json:"LO1_2"`
	LO3          string `json:"LO3"`
	LO4          string `json:"LO4"`
	LO5          string `json:"LO5"`
	Transferable string `json:"Transferable"`
}

// ErrorRubric returns the record used when the report call fails outright.
func ErrorRubric() RubricFeedback {
	return RubricFeedback{
		LO1_2:        reportErrorLead,
		LO3:          reportErrorDefault,
		LO4:          reportErrorDefault,
		LO5:          reportErrorDefault,
		Transferable: reportErrorDefault,
	}
}
