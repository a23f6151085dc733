package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kalambet/frontdesk/internal/export"
	"github.com/kalambet/frontdesk/internal/mentor"
	"github.com/kalambet/frontdesk/internal/retry"
	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/session"
	"github.com/kalambet/frontdesk/internal/storage"
)

// --- mocks ---

type mockGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	calls    []mentor.Request
}

func (m *mockGenerator) Generate(_ context.Context, req mentor.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.response, m.err
}

func (m *mockGenerator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// blockingGenerator holds every call until release is closed or the call's
// context is cancelled.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ mentor.Request) (string, error) {
	g.started <- struct{}{}
	select {
	case <-ctx.Done():
		return "", context.Cause(ctx)
	case <-g.release:
		return "What is the arrival rate?", nil
	}
}

// ctxGenerator answers with response unless the call's context is done.
type ctxGenerator struct{ response string }

func (g *ctxGenerator) Generate(ctx context.Context, _ mentor.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.response, nil
}

type instantTimer struct{ c chan time.Time }

func (t *instantTimer) Start(time.Duration) { t.c <- time.Time{} }
func (t *instantTimer) Stop() {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

// --- helpers ---

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newTestDeps(t *testing.T, gen mentor.Generator) Deps {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	exec := retry.NewWithTimer(func() backoff.Timer { return &instantTimer{c: make(chan time.Time, 1)} })
	return Deps{
		Sessions:   session.NewManager(store),
		Mentor:     mentor.NewService(gen, exec),
		AdminToken: "admin-secret",
		Now:        func() time.Time { return testNow },
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rr.Body.String(), err)
	}
	return v
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]string](t, rr)
	return body["error"]["type"]
}

func startShift(t *testing.T, h http.Handler, studentID string) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/sessions", `{"student_id":"`+studentID+`"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("start shift status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))
	startShift(t, h, "ST-1")

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decode[healthResponse](t, rr)
	if body.Status != "ok" || body.ActiveShifts != 1 {
		t.Errorf("body = %+v, want status=ok with one active shift", body)
	}
}

// unreachableStore is a working store whose health check fails.
type unreachableStore struct{ *storage.Store }

func (unreachableStore) Ping() error { return errors.New("connection refused") }

func TestHealth_StorageDown(t *testing.T) {
	deps := newTestDeps(t, &mockGenerator{})
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	deps.Sessions = session.NewManager(unreachableStore{store})
	h := NewHandler(deps)

	rr := do(t, h, http.MethodGet, "/health", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}
	if body := decode[healthResponse](t, rr); body.Status != "degraded" {
		t.Errorf("body = %+v, want degraded", body)
	}
}

func TestScenarios(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))

	rr := do(t, h, http.MethodGet, "/scenarios", "")
	infos := decode[[]scenario.Info](t, rr)
	if len(infos) != len(scenario.All) {
		t.Fatalf("got %d scenarios, want %d", len(infos), len(scenario.All))
	}
	if infos[0].ID != scenario.Dashboard {
		t.Errorf("first scenario = %s, want DASHBOARD", infos[0].ID)
	}
}

func TestStartShift_Validation(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))

	rr := do(t, h, http.MethodPost, "/sessions", `{"student_id":"   "}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/sessions", `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if got := errorType(t, rr); got != "invalid_request_error" {
		t.Errorf("error type = %q", got)
	}
}

func TestSession_NotStarted(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))

	for _, path := range []string{"/sessions/ST-1", "/sessions/ST-1/guidance", "/sessions/ST-1/report.doc"} {
		rr := do(t, h, http.MethodGet, path, "")
		if rr.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, rr.Code)
		}
	}
}

func TestNavigate(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))
	startShift(t, h, "ST-1")

	rr := do(t, h, http.MethodPost, "/sessions/ST-1/navigate", `{"scenario":"phone"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	s := decode[session.Session](t, rr)
	if s.View != scenario.Phone {
		t.Errorf("view = %s, want PHONE", s.View)
	}
	if s.Notifications.Phone {
		t.Error("phone notification still set after visit")
	}

	rr = do(t, h, http.MethodPost, "/sessions/ST-1/navigate", `{"scenario":"LOBBY"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("unknown scenario status = %d, want 400", rr.Code)
	}
}

func TestShiftFlow(t *testing.T) {
	gen := &mockGenerator{response: "Good use of queuing theory. Quantify the wait."}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-2024")

	do(t, h, http.MethodPost, "/sessions/ST-2024/navigate", `{"scenario":"PMS"}`)
	rr := do(t, h, http.MethodPut, "/sessions/ST-2024/logbook", `{"content":"Arrival rate exceeds service rate at 15:00."}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("logbook status = %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/sessions/ST-2024/feedback", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("feedback status = %d, body = %s", rr.Code, rr.Body.String())
	}
	fb := decode[textResponse](t, rr)
	if fb.Scenario != scenario.PMS || fb.Text != gen.response || fb.Degraded {
		t.Errorf("feedback = %+v", fb)
	}

	s := decode[session.Session](t, do(t, h, http.MethodGet, "/sessions/ST-2024", ""))
	if s.Feedback[scenario.PMS] != gen.response {
		t.Errorf("stored feedback = %q", s.Feedback[scenario.PMS])
	}

	rr = do(t, h, http.MethodPost, "/sessions/ST-2024/handover", "")
	s = decode[session.Session](t, rr)
	if s.View != scenario.Handover || s.Report != nil {
		t.Errorf("after handover view = %s, report = %v", s.View, s.Report)
	}

	gen.mu.Lock()
	gen.response = `{"LO1_2":"Quantify W.","LO4":"Cost the tablet."}`
	gen.mu.Unlock()

	rr = do(t, h, http.MethodPost, "/sessions/ST-2024/report", "")
	rep := decode[reportResponse](t, rr)
	if rep.Report.LO1_2 != "Quantify W." || rep.Report.LO3 != mentor.MissingCriterion || rep.Degraded {
		t.Errorf("report = %+v", rep)
	}

	rr = do(t, h, http.MethodGet, "/sessions/ST-2024/report.doc", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("report.doc status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/msword" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "Assessment_Report_ST-2024.doc") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rr.Body.String(), "Arrival rate exceeds service rate at 15:00.") {
		t.Error("report.doc missing logbook entry")
	}

	rr = do(t, h, http.MethodGet, "/sessions/ST-2024/scenarios/pms/transcript.pdf", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("transcript status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Error("transcript is not a PDF")
	}
}

func TestFeedback_ShortNotesSkipsModel(t *testing.T) {
	gen := &mockGenerator{response: "unused"}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-1")
	do(t, h, http.MethodPost, "/sessions/ST-1/navigate", `{"scenario":"FOLDER"}`)
	do(t, h, http.MethodPut, "/sessions/ST-1/logbook", `{"content":"too short"}`)

	fb := decode[textResponse](t, do(t, h, http.MethodPost, "/sessions/ST-1/feedback", ""))
	if fb.Text != mentor.WriteMoreReply {
		t.Errorf("feedback = %q, want %q", fb.Text, mentor.WriteMoreReply)
	}
	if gen.count() != 0 {
		t.Errorf("model called %d times, want 0", gen.count())
	}
}

func TestGuidance_Degraded(t *testing.T) {
	gen := &mockGenerator{err: errors.New("connection refused")}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-1")
	do(t, h, http.MethodPost, "/sessions/ST-1/navigate", `{"scenario":"TABLET"}`)

	rr := do(t, h, http.MethodGet, "/sessions/ST-1/guidance", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	res := decode[textResponse](t, rr)
	if !res.Degraded || res.Text != mentor.Fallbacks[mentor.KindGuidance].Offline {
		t.Errorf("guidance = %+v", res)
	}
}

func TestBriefing_DashboardHasNoContent(t *testing.T) {
	gen := &mockGenerator{response: "unused"}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-1")

	b := decode[mentor.Briefing](t, do(t, h, http.MethodGet, "/sessions/ST-1/briefing", ""))
	if b.Scenario != scenario.Dashboard || b.Guidance.Value != "" || b.Theory.Value != "" {
		t.Errorf("briefing = %+v", b)
	}
	if gen.count() != 0 {
		t.Errorf("model called %d times on the dashboard", gen.count())
	}
}

func TestGuidance_Superseded(t *testing.T) {
	gen := &blockingGenerator{started: make(chan struct{}, 2), release: make(chan struct{})}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-1")
	do(t, h, http.MethodPost, "/sessions/ST-1/navigate", `{"scenario":"PMS"}`)

	first := make(chan *httptest.ResponseRecorder, 1)
	go func() { first <- do(t, h, http.MethodGet, "/sessions/ST-1/guidance", "") }()
	<-gen.started

	second := make(chan *httptest.ResponseRecorder, 1)
	go func() { second <- do(t, h, http.MethodGet, "/sessions/ST-1/guidance", "") }()
	<-gen.started

	rr := <-first
	if rr.Code != http.StatusConflict {
		t.Fatalf("first status = %d, want 409", rr.Code)
	}
	if got := errorType(t, rr); got != "superseded" {
		t.Errorf("error type = %q", got)
	}

	close(gen.release)
	rr = <-second
	if rr.Code != http.StatusOK {
		t.Fatalf("second status = %d, want 200", rr.Code)
	}
}

func TestCancelledCaller_KeepsStoredResults(t *testing.T) {
	gen := &ctxGenerator{response: "Good use of Little's Law."}
	h := NewHandler(newTestDeps(t, gen))
	startShift(t, h, "ST-7")
	do(t, h, http.MethodPost, "/sessions/ST-7/navigate", `{"scenario":"PMS"}`)
	do(t, h, http.MethodPut, "/sessions/ST-7/logbook", `{"content":"Arrivals at 15:00 exceed two agents' service rate."}`)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	doCancelled := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil).WithContext(cancelled)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	if rr := do(t, h, http.MethodPost, "/sessions/ST-7/feedback", ""); rr.Code != http.StatusOK {
		t.Fatalf("feedback status = %d", rr.Code)
	}
	if rr := doCancelled("/sessions/ST-7/feedback"); rr.Body.Len() != 0 {
		t.Errorf("cancelled feedback wrote %q", rr.Body.String())
	}
	s := decode[session.Session](t, do(t, h, http.MethodGet, "/sessions/ST-7", ""))
	if s.Feedback[scenario.PMS] != gen.response {
		t.Errorf("stored feedback = %q, want %q", s.Feedback[scenario.PMS], gen.response)
	}

	do(t, h, http.MethodPost, "/sessions/ST-7/handover", "")
	gen.response = `{"LO1_2":"a","LO3":"b","LO4":"c","LO5":"d","Transferable":"e"}`
	if rr := do(t, h, http.MethodPost, "/sessions/ST-7/report", ""); rr.Code != http.StatusOK {
		t.Fatalf("report status = %d", rr.Code)
	}
	if rr := doCancelled("/sessions/ST-7/report"); rr.Body.Len() != 0 {
		t.Errorf("cancelled report wrote %q", rr.Body.String())
	}
	s = decode[session.Session](t, do(t, h, http.MethodGet, "/sessions/ST-7", ""))
	if s.Report == nil || s.Report.LO1_2 != "a" || s.Report.Transferable != "e" {
		t.Errorf("stored report = %+v", s.Report)
	}
}

func TestTranscript_FilenameHeader(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))
	startShift(t, h, `Zoë\\1`)

	rr := do(t, h, http.MethodGet, "/sessions/Zo%C3%AB%5C1/scenarios/pms/transcript.pdf", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	disposition, params, err := mime.ParseMediaType(rr.Header().Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("Content-Disposition %q: %v", rr.Header().Get("Content-Disposition"), err)
	}
	want := export.TranscriptFilename(`Zoë\1`, scenario.PMS)
	if disposition != "attachment" || params["filename"] != want {
		t.Errorf("disposition = %q, filename = %q, want %q", disposition, params["filename"], want)
	}
}

func TestReportDoc_NotReady(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))
	startShift(t, h, "ST-1")

	rr := do(t, h, http.MethodGet, "/sessions/ST-1/report.doc", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	if got := errorType(t, rr); got != "report_not_ready" {
		t.Errorf("error type = %q", got)
	}
}

func TestSurvey(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))
	startShift(t, h, "ST-7")

	rr := do(t, h, http.MethodPost, "/sessions/ST-7/survey", `{"strategicThinking":9}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid survey status = %d, want 400", rr.Code)
	}

	body := `{"strategicThinking":4,"epistemicVigilance":5,"intellectualAutonomy":3,"perceivedUsefulness":4,"perceivedEaseOfUse":5,` +
		`"reflectionConstraint":"It made me concise.","studentExperience":"Theory finally clicked."}`
	rr = do(t, h, http.MethodPost, "/sessions/ST-7/survey", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("survey status = %d, body = %s", rr.Code, rr.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/surveys.csv", nil)
	req.Header.Set("Authorization", "Bearer admin-secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("csv status = %d", rr.Code)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "ST-7,") {
		t.Errorf("csv = %q", rr.Body.String())
	}
}

func TestAdmin_Auth(t *testing.T) {
	h := NewHandler(newTestDeps(t, &mockGenerator{}))

	rr := do(t, h, http.MethodGet, "/admin/surveys.csv", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing token status = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/surveys.csv", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong token status = %d, want 401", rr.Code)
	}
}

func TestAdmin_DisabledWithoutToken(t *testing.T) {
	deps := newTestDeps(t, &mockGenerator{})
	deps.AdminToken = ""
	h := NewHandler(deps)

	req := httptest.NewRequest(http.MethodGet, "/admin/surveys.csv", nil)
	req.Header.Set("Authorization", "Bearer ")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rr.Code)
	}
}
