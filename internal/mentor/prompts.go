package mentor

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/kalambet/frontdesk/internal/scenario"
)

//go:embed rubric.csv
var rubricMatrix string

const systemInstruction = `You are an expert Hospitality Management Mentor.
Your goal is to guide a student who is simulating a Front Desk Manager shift.
You will interpret the specific "Servicescape" or "Operational" context the student is looking at and provide Socratic questioning based on hospitality theory (Lean Operations, Sustainability, Social Intelligence).

Do not give the answer directly. Ask questions that force the student to apply theories like Little's Law, Triple Bottom Line, or the 4Vs of Operations.
Keep responses concise (under 100 words) and encouraging.`

// framing is the per-task scenario setup shown to the mentor.
var framing = map[scenario.ID]string{
	scenario.PMS: `The student is looking at the PMS (Property Management System).
Scenario: A guest complained that check-in took 45 minutes.
The data shows high occupancy but low staff during check-in peaks.
Ask the student to apply "Lesson 9: Muda (Waste) vs Mura (Unevenness)" and "Little's Law" to explain the bottleneck.`,
	scenario.Phone: `The student is answering the Phone.
Scenario: Handling a live complaint about the wait time.
Ask the student to reflect on "Lesson 5: Social Intelligence". How should they empathize without blaming staff?`,
	scenario.Folder: `The student is looking at the Green Folder (Sustainability).
Scenario: Energy costs are up 15%. Single-use plastics are still in use.
Ask the student to review "Lesson 3: Circular Economy" and "Lesson 4: Servicescape" regarding lighting and customer mood.`,
	scenario.Tablet: `The student is looking at the Tablet (Tech Stack).
Scenario: A new "Mobile Key & AI Concierge" integration is available for $50k.
Ask the student to justify this based on "Lesson 2: Service Strategy" (Cost Leadership vs Differentiation) and the "4Vs of Operations" (Visibility).`,
}

var theories = map[scenario.ID]string{
	scenario.PMS:    "Little's Law and Muda (Waste)",
	scenario.Phone:  "Social Intelligence and Emotional Labour",
	scenario.Folder: "The Triple Bottom Line and Circular Economy",
	scenario.Tablet: "4Vs of Operations (Visibility) and Competitive Strategy (Cost vs Differentiation)",
}

var feedbackContext = map[scenario.ID]string{
	scenario.PMS:    "Context: PMS Analysis (Efficiency, Little's Law, Bottlenecks).",
	scenario.Phone:  "Context: Social Intelligence & Guest Interaction.",
	scenario.Folder: "Context: Sustainability & Circular Economy.",
	scenario.Tablet: "Context: Technology Strategy & 4Vs of Operations.",
}

// reportLabels orders the task entries in the combined log.
var reportLabels = []struct {
	id    scenario.ID
	label string
}{
	{scenario.PMS, "PMS Analysis (LO1/LO2)"},
	{scenario.Phone, "Social Intelligence (LO5)"},
	{scenario.Folder, "Sustainability (LO3)"},
	{scenario.Tablet, "Technology (LO4)"},
}

const noEntry = "No entry."

// MentorPrompt builds the Socratic guidance request for a task scenario.
// ok is false for Dashboard and Handover, where guidance is suppressed.
func MentorPrompt(id scenario.ID, notes string) (Request, bool) {
	frame, ok := framing[id]
	if !ok {
		return Request{}, false
	}
	prompt := fmt.Sprintf("%s\nStudent's current notes: \"%s\"", frame, notes)
	return Request{Prompt: prompt, System: systemInstruction}, true
}

// TheoryPrompt builds a three-sentence refresher for the scenario's concept pair.
func TheoryPrompt(id scenario.ID) (Request, bool) {
	pair, ok := theories[id]
	if !ok {
		return Request{}, false
	}
	prompt := fmt.Sprintf(`Explain the following two concepts: %s.
Constraint: Use a maximum of 3 sentences total.
Audience: A hospitality student needing a quick refresher.`, pair)
	return Request{Prompt: prompt}, true
}

// FeedbackPrompt builds the lecturer evaluation request for a log entry.
// When ok is false no call should be made and reply is returned to the student.
func FeedbackPrompt(id scenario.ID, notes string) (req Request, reply string, ok bool) {
	if len([]rune(notes)) < MinFeedbackLength {
		return Request{}, WriteMoreReply, false
	}
	ctxLine, known := feedbackContext[id]
	if !known {
		return Request{}, TaskOnlyReply, false
	}
	prompt := fmt.Sprintf(`Acting as a Senior Hospitality Lecturer, evaluate this student's log entry.

%s
Student Entry: "%s"

Instructions:
1. Check if they have correctly applied the relevant theories for this context.
2. Provide constructive feedback.
3. CONSTRAINT: The response MUST be exactly 2 sentences long.`, ctxLine, notes)
	return Request{Prompt: prompt}, "", true
}

// CombinedLog renders the four task entries labelled by learning outcome.
func CombinedLog(lb scenario.Logbook) string {
	var b strings.Builder
	for _, r := range reportLabels {
		entry := lb[r.id]
		if entry == "" {
			entry = noEntry
		}
		fmt.Fprintf(&b, "%s: %s\n", r.label, entry)
	}
	return b.String()
}

// ReportPrompt builds the rubric-based feed-forward request over the whole logbook.
func ReportPrompt(lb scenario.Logbook) Request {
	prompt := fmt.Sprintf(`You are an expert Hospitality Management Mentor evaluating a student's draft assignment.

Rubric Matrix for Learning Outcomes (LOs):
%s
Student's Current Draft (Work Logs):
%s
Task:
For each of the 5 criteria, provide specific, CONSTRUCTIVE ADVICE on how the student can IMPROVE their current answer to better meet the Learning Outcomes (aiming for the 'Outstanding' or 'Exceptional' level).

Do not just evaluate what they wrote. Focus on what is missing or how they can deepen their theoretical application.

Constraints:
1. Maximum 3 sentences per criterion.
2. Focus on "Feed-forward" (how to improve) rather than just feedback.
3. Return the response as a JSON object with keys: "LO1_2", "LO3", "LO4", "LO5", "Transferable".
4. "Transferable" refers to the quality of their writing/argumentation in the logs provided.`, rubricMatrix, CombinedLog(lb))
	return Request{Prompt: prompt, JSON: true}
}
