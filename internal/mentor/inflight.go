package mentor

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/kalambet/frontdesk/internal/scenario"
)

// ErrSuperseded is the cancellation cause of a call replaced by a newer one.
var ErrSuperseded = errors.New("superseded by a newer request")

// Key identifies an in-flight AI call.
type Key struct {
	Student  string
	Scenario scenario.ID
	Kind     Kind
}

type call struct {
	id     uuid.UUID
	cancel context.CancelCauseFunc
}

// Inflight tracks running AI calls so that a new call for the same key cancels
// the previous one instead of racing it.
type Inflight struct {
	mu    sync.Mutex
	calls map[Key]call
}

// NewInflight creates an empty registry.
func NewInflight() *Inflight {
	return &Inflight{calls: make(map[Key]call)}
}

// Begin registers a call for key and returns its context plus a done func that
// must be called when the call finishes. Any earlier call for key is cancelled
// with ErrSuperseded.
func (f *Inflight) Begin(ctx context.Context, key Key) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	id := uuid.New()

	f.mu.Lock()
	if prev, ok := f.calls[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	f.calls[key] = call{id: id, cancel: cancel}
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		if cur, ok := f.calls[key]; ok && cur.id == id {
			delete(f.calls, key)
		}
		f.mu.Unlock()
		cancel(nil)
	}
}

// Len returns the number of running calls.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Superseded reports whether ctx was cancelled because a newer call replaced it.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
