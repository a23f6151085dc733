package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 3
	// DefaultInitialDelay is the wait before the first retry; each later wait doubles.
	DefaultInitialDelay = time.Second

	backoffFactor = 2
)

// Executor runs operations with bounded exponential backoff on rate-limit errors.
// Any other error is returned immediately and unchanged.
type Executor struct {
	maxRetries   uint64
	initialDelay time.Duration
	newTimer     func() backoff.Timer
	logger       *slog.Logger
}

// New creates an Executor with the fixed policy: 3 retries, 1s initial delay, factor 2.
func New() *Executor {
	return &Executor{
		maxRetries:   DefaultMaxRetries,
		initialDelay: DefaultInitialDelay,
		logger:       slog.Default(),
	}
}

// NewWithTimer creates an Executor whose waits are driven by timers from newTimer
// (used by tests to observe delays without sleeping).
func NewWithTimer(newTimer func() backoff.Timer) *Executor {
	e := New()
	e.newTimer = newTimer
	return e
}

func (e *Executor) policy(ctx context.Context) backoff.BackOffContext {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = e.initialDelay
	exp.Multiplier = backoffFactor
	exp.RandomizationFactor = 0
	exp.MaxInterval = e.initialDelay << e.maxRetries
	exp.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(exp, e.maxRetries), ctx)
}

// Do calls op until it succeeds, fails with a non-rate-limit error, or the retry
// budget is spent. The error of the last attempt is returned as is. Waiting stops
// early when ctx is done.
func Do[T any](ctx context.Context, e *Executor, op func() (T, error)) (T, error) {
	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op()
		if err != nil && !IsRateLimited(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("quota exceeded, retrying", "attempt", attempt, "wait", wait, "error", err)
	}

	var timer backoff.Timer
	if e.newTimer != nil {
		timer = e.newTimer()
	}
	return backoff.RetryNotifyWithTimerAndData(wrapped, e.policy(ctx), notify, timer)
}

// IsRateLimited reports whether err signals HTTP 429 / quota exhaustion. It looks at
// Google API errors, gRPC status codes, errors exposing StatusCode(), and finally at
// the message text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return true
	}

	var aerr *apierror.APIError
	if errors.As(err, &aerr) {
		if aerr.HTTPCode() == http.StatusTooManyRequests {
			return true
		}
		if st := aerr.GRPCStatus(); st != nil && st.Code() == codes.ResourceExhausted {
			return true
		}
	}

	if st, ok := status.FromError(err); ok && st.Code() == codes.ResourceExhausted {
		return true
	}

	var coded interface{ StatusCode() int }
	if errors.As(err, &coded) && coded.StatusCode() == http.StatusTooManyRequests {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
