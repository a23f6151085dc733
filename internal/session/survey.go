package session

import (
	"fmt"
	"strings"
	"time"
)

const minReflectionLength = 5

// Survey is the end-of-shift reflection questionnaire.
type Survey struct {
	StrategicThinking    int       `json:"strategicThinking"`
	EpistemicVigilance   int       `json:"epistemicVigilance"`
	IntellectualAutonomy int       `json:"intellectualAutonomy"`
	PerceivedUsefulness  int       `json:"perceivedUsefulness"`
	PerceivedEaseOfUse   int       `json:"perceivedEaseOfUse"`
	ReflectionConstraint string    `json:"reflectionConstraint"`
	StudentExperience    string    `json:"studentExperience"`
	SubmittedAt          time.Time `json:"submittedAt"`
}

// Question describes one survey item.
type Question struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Text  string `json:"text"`
	Scale bool   `json:"likert"`
}

// Questions lists the survey items in presentation order.
var Questions = []Question{
	{"strategicThinking", "1. Strategic Thinking (The Map Check)", "I consciously used the Dashboard to strategize my shift workflow, prioritizing which hotspots to visit based on urgency.", true},
	{"epistemicVigilance", "2. Epistemic Vigilance (The Depth Check)", "When the AI Coach provided feedback, I critically evaluated if the response was contextually accurate, rather than assuming it was correct just because it is 'smart'.", true},
	{"intellectualAutonomy", "3. Intellectual Autonomy (The Pilot Check)", "I felt I was the active manager of the 'Virtual Shift,' consulting the AI only as a secondary resource, rather than relying on it to dictate my decisions.", true},
	{"perceivedUsefulness", "4. Perceived Usefulness (The Value Check)", "The visualizations in the PMS View helped me identify operational bottlenecks much faster than reading standard text-based data.", true},
	{"perceivedEaseOfUse", "5. Perceived Ease of Use (The Friction Check)", "The interface interaction between the Dashboard Hotspots and specific scenario views was intuitive and responsive.", true},
	{"reflectionConstraint", "Reflection: the 2-sentence constraint", "The system enforces a '2-sentence constraint' when sending log entries. Did this force you to be more concise, or did it prevent you from explaining fully? How did you adapt?", false},
	{"studentExperience", "Reflection: learning experience", "Did the combination of the 'Virtual Shift' simulation and AI feedback help you understand theoretical concepts better than traditional methods? Why or why not?", false},
}

// Scores returns the five Likert answers in question order.
func (s Survey) Scores() []int {
	return []int{s.StrategicThinking, s.EpistemicVigilance, s.IntellectualAutonomy, s.PerceivedUsefulness, s.PerceivedEaseOfUse}
}

// Validate checks every Likert answer is within 1..5 and both reflections carry
// more than a few characters of text.
func (s Survey) Validate() error {
	for i, v := range s.Scores() {
		if v < 1 || v > 5 {
			return fmt.Errorf("%w: %s must be between 1 and 5", ErrInvalidInput, Questions[i].Field)
		}
	}
	if len([]rune(strings.TrimSpace(s.ReflectionConstraint))) <= minReflectionLength {
		return fmt.Errorf("%w: reflectionConstraint is too short", ErrInvalidInput)
	}
	if len([]rune(strings.TrimSpace(s.StudentExperience))) <= minReflectionLength {
		return fmt.Errorf("%w: studentExperience is too short", ErrInvalidInput)
	}
	return nil
}
