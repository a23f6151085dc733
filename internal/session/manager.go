package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kalambet/frontdesk/internal/scenario"
	"github.com/kalambet/frontdesk/internal/storage"
)

// KeyPrefix namespaces saved sessions in the key-value store.
const KeyPrefix = "front-desk-ops-state-"

// Key returns the storage key for studentID.
func Key(studentID string) string {
	return KeyPrefix + studentID
}

// Store is the key-value persistence the Manager needs.
type Store interface {
	Get(key string) (string, error)
	Put(key, value string) error
	List(prefix string) ([]storage.Record, error)
	Ping() error
}

// record is the persisted form of a session.
type record struct {
	StudentID     string           `json:"studentId"`
	View          scenario.ID      `json:"view"`
	Logbook       scenario.Logbook `json:"logbook"`
	ShiftStarted  bool             `json:"shiftStarted"`
	Notifications *Notifications   `json:"notifications,omitempty"`
	Survey        *Survey          `json:"survey,omitempty"`
}

// Manager owns the live sessions. All mutations go through Dispatch, which
// serialises them per manager.
type Manager struct {
	store Store
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// NewManager creates a Manager persisting to store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

func normalizeID(studentID string) (string, error) {
	id := strings.TrimSpace(studentID)
	if id == "" {
		return "", fmt.Errorf("%w: student ID is required", ErrInvalidInput)
	}
	return id, nil
}

// StartShift begins a shift, restoring the saved logbook when one exists. The
// shift always opens on the dashboard. Unsaved in-memory state is replaced.
func (m *Manager) StartShift(studentID string) (Session, error) {
	id, err := normalizeID(studentID)
	if err != nil {
		return Session{}, err
	}
	s := m.load(id)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	slog.Info("shift started", "student", id)
	return s.Clone(), nil
}

// load reads the saved session for id. Missing or corrupt data yields a fresh session.
func (m *Manager) load(id string) Session {
	fresh := New(id)

	raw, err := m.store.Get(Key(id))
	if errors.Is(err, storage.ErrNotFound) {
		return fresh
	}
	if err != nil {
		slog.Warn("failed to load saved session", "student", id, "error", err)
		return fresh
	}

	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		slog.Warn("saved session is corrupt, starting fresh", "student", id, "error", err)
		return fresh
	}

	s := fresh
	s.Logbook = rec.Logbook.Clone()
	if rec.Notifications != nil {
		s.Notifications = *rec.Notifications
	}
	s.Survey = rec.Survey
	return s
}

// Snapshot returns a copy of the student's current session.
func (m *Manager) Snapshot(studentID string) (Session, error) {
	id := strings.TrimSpace(studentID)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	return s.Clone(), nil
}

// Dispatch applies a to the student's session and returns the new state.
func (m *Manager) Dispatch(studentID string, a Action) (Session, error) {
	if nav, ok := a.(Navigate); ok && !nav.To.Valid() {
		return Session{}, fmt.Errorf("%w: unknown scenario %q", ErrInvalidInput, nav.To)
	}
	id := strings.TrimSpace(studentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	s = Reduce(s, a)
	m.sessions[id] = s
	return s.Clone(), nil
}

// Handover saves the session, then moves it to the handover screen and clears
// any earlier report.
func (m *Manager) Handover(studentID string) (Session, error) {
	id := strings.TrimSpace(studentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	if err := m.persist(s); err != nil {
		return Session{}, err
	}
	s = Reduce(Reduce(s, Navigate{To: scenario.Handover}), ClearReport{})
	m.sessions[id] = s

	slog.Info("shift handed over", "student", id)
	return s.Clone(), nil
}

// SubmitSurvey validates and stores the survey, then saves the session.
func (m *Manager) SubmitSurvey(studentID string, sv Survey) (Session, error) {
	if err := sv.Validate(); err != nil {
		return Session{}, err
	}
	sv.ReflectionConstraint = strings.TrimSpace(sv.ReflectionConstraint)
	sv.StudentExperience = strings.TrimSpace(sv.StudentExperience)
	sv.SubmittedAt = m.now().UTC()
	id := strings.TrimSpace(studentID)

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNoSession
	}
	s = Reduce(s, SubmitSurvey{Survey: sv})
	if err := m.persist(s); err != nil {
		return Session{}, err
	}
	m.sessions[id] = s
	return s.Clone(), nil
}

// persist writes s to the store. The caller holds m.mu.
func (m *Manager) persist(s Session) error {
	n := s.Notifications
	rec := record{
		StudentID:     s.StudentID,
		View:          s.View,
		Logbook:       s.Logbook,
		ShiftStarted:  s.ShiftStarted,
		Notifications: &n,
		Survey:        s.Survey,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := m.store.Put(Key(s.StudentID), string(data)); err != nil {
		return fmt.Errorf("saving session for %s: %w", s.StudentID, err)
	}
	return nil
}

// Saved returns the last persisted state of a student without touching the live
// session. ErrNoSession is returned when nothing was saved.
func (m *Manager) Saved(studentID string) (Session, error) {
	id, err := normalizeID(studentID)
	if err != nil {
		return Session{}, err
	}
	raw, err := m.store.Get(Key(id))
	if errors.Is(err, storage.ErrNotFound) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("loading session for %s: %w", id, err)
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Session{}, fmt.Errorf("decoding session for %s: %w", id, err)
	}
	s := New(id)
	s.Logbook = rec.Logbook.Clone()
	s.Survey = rec.Survey
	return s, nil
}

// SurveyRecord is a stored survey together with its student.
type SurveyRecord struct {
	StudentID string
	Survey    Survey
}

// SavedSurveys returns every persisted survey ordered by student ID. Records that
// cannot be decoded are skipped.
func (m *Manager) SavedSurveys() ([]SurveyRecord, error) {
	recs, err := m.store.List(KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	var out []SurveyRecord
	for _, r := range recs {
		var rec record
		if err := json.Unmarshal([]byte(r.Value), &rec); err != nil {
			slog.Warn("skipping corrupt saved session", "key", r.Key, "error", err)
			continue
		}
		if rec.Survey == nil {
			continue
		}
		out = append(out, SurveyRecord{
			StudentID: strings.TrimPrefix(r.Key, KeyPrefix),
			Survey:    *rec.Survey,
		})
	}
	return out, nil
}

// Ping reports whether the backing store is reachable.
func (m *Manager) Ping() error {
	return m.store.Ping()
}

// Active returns the number of live sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
