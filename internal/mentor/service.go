package mentor

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/frontdesk/internal/retry"
	"github.com/kalambet/frontdesk/internal/scenario"
)

// Service runs the four AI operations. Every method returns a usable value;
// model failures are logged and replaced by the fallback table.
type Service struct {
	gen  Generator
	exec *retry.Executor
}

// NewService creates a Service that calls gen through the rate-limit executor.
func NewService(gen Generator, exec *retry.Executor) *Service {
	if exec == nil {
		exec = retry.New()
	}
	return &Service{gen: gen, exec: exec}
}

// Guidance asks the mentor for Socratic questions about the student's notes.
// Administrative scenarios return an empty value without calling the model.
func (s *Service) Guidance(ctx context.Context, id scenario.ID, notes string) Result[string] {
	req, ok := MentorPrompt(id, notes)
	if !ok {
		return Result[string]{}
	}
	return s.text(ctx, KindGuidance, req)
}

// Theory returns a short refresher on the scenario's two key concepts.
func (s *Service) Theory(ctx context.Context, id scenario.ID) Result[string] {
	req, ok := TheoryPrompt(id)
	if !ok {
		return Result[string]{}
	}
	return s.text(ctx, KindTheory, req)
}

// Feedback evaluates a log entry. Short notes and administrative scenarios get a
// fixed reply and no model call.
func (s *Service) Feedback(ctx context.Context, id scenario.ID, notes string) Result[string] {
	req, reply, ok := FeedbackPrompt(id, notes)
	if !ok {
		return Result[string]{Value: reply}
	}
	return s.text(ctx, KindFeedback, req)
}

// Report produces rubric feed-forward advice for the whole logbook.
func (s *Service) Report(ctx context.Context, lb scenario.Logbook) Result[RubricFeedback] {
	req := ReportPrompt(lb)
	raw, err := s.call(ctx, req)
	if err != nil {
		logFailure(ctx, KindReport, err)
	}
	return NormalizeRubric(raw, err)
}

// Briefing bundles the guidance and theory reminder for one scenario.
type Briefing struct {
	Scenario scenario.ID    `json:"scenario"`
	Guidance Result[string] `json:"guidance"`
	Theory   Result[string] `json:"theory"`
}

// Briefing fetches guidance and theory for id concurrently.
func (s *Service) Briefing(ctx context.Context, id scenario.ID, notes string) Briefing {
	b := Briefing{Scenario: id}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Guidance = s.Guidance(gctx, id, notes)
		return nil
	})
	g.Go(func() error {
		b.Theory = s.Theory(gctx, id)
		return nil
	})
	_ = g.Wait()
	return b
}

func (s *Service) call(ctx context.Context, req Request) (string, error) {
	return retry.Do(ctx, s.exec, func() (string, error) {
		return s.gen.Generate(ctx, req)
	})
}

func (s *Service) text(ctx context.Context, kind Kind, req Request) Result[string] {
	raw, err := s.call(ctx, req)
	if err != nil {
		logFailure(ctx, kind, err)
	}
	return NormalizeText(kind, raw, err)
}

func logFailure(ctx context.Context, kind Kind, err error) {
	switch {
	case Superseded(ctx):
		slog.Debug("mentor call superseded", "kind", kind)
		return
	case ctx.Err() != nil:
		slog.Debug("mentor call cancelled", "kind", kind, "error", ctx.Err())
		return
	}
	slog.Warn("mentor call failed", "kind", kind, "error", err)
}

// NormalizeText maps a raw model reply to the value shown to the student.
func NormalizeText(kind Kind, raw string, err error) Result[string] {
	fb := Fallbacks[kind]
	if err != nil {
		return Result[string]{Value: fb.Offline, Degraded: true}
	}
	if strings.TrimSpace(raw) == "" {
		return Result[string]{Value: fb.Empty, Degraded: true}
	}
	return Result[string]{Value: raw}
}

// NormalizeRubric decodes the report JSON. Missing, empty, or non-string fields get
// the MissingCriterion placeholder; an undecodable body or call error yields ErrorRubric.
func NormalizeRubric(raw string, err error) Result[RubricFeedback] {
	if err != nil {
		return Result[RubricFeedback]{Value: ErrorRubric(), Degraded: true}
	}

	body := StripCodeFences(raw)
	if body == "" {
		body = "{}"
	}
	var fields map[string]any
	if jerr := json.Unmarshal([]byte(body), &fields); jerr != nil {
		slog.Warn("failed to unmarshal rubric feedback", "error", jerr, "response", raw)
		return Result[RubricFeedback]{Value: ErrorRubric(), Degraded: true}
	}

	pick := func(key string) string {
		if v, ok := fields[key].(string); ok && v != "" {
			return v
		}
		return MissingCriterion
	}
	return Result[RubricFeedback]{Value: RubricFeedback{
		LO1_2:        pick("LO1_2"),
		LO3:          pick("LO3"),
		LO4:          pick("LO4"),
		LO5:          pick("LO5"),
		Transferable: pick("Transferable"),
	}}
}

// StripCodeFences removes a surrounding markdown code fence from a model reply.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
