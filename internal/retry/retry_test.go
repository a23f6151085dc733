package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// recordingTimer fires immediately and remembers every requested wait.
type recordingTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (r *recordingTimer) Start(d time.Duration) {
	r.waits = append(r.waits, d)
	r.c <- time.Time{}
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time { return r.c }

func newRecorder() (*recordingTimer, *Executor) {
	rt := &recordingTimer{c: make(chan time.Time, 1)}
	return rt, NewWithTimer(func() backoff.Timer { return rt })
}

type statusErr int

func (s statusErr) Error() string { return fmt.Sprintf("upstream status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

var errQuota = &googleapi.Error{Code: http.StatusTooManyRequests, Message: "quota"}

func TestDo_SucceedsFirstTry(t *testing.T) {
	rt, e := newRecorder()
	calls := 0
	got, err := Do(context.Background(), e, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Errorf("got %q after %d calls", got, calls)
	}
	if len(rt.waits) != 0 {
		t.Errorf("waits = %v, want none", rt.waits)
	}
}

func TestDo_RetriesRateLimitThenSucceeds(t *testing.T) {
	rt, e := newRecorder()
	calls := 0
	got, err := Do(context.Background(), e, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errQuota
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Errorf("got %d after %d calls", got, calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if fmt.Sprint(rt.waits) != fmt.Sprint(want) {
		t.Errorf("waits = %v, want %v", rt.waits, want)
	}
}

func TestDo_SucceedsOnLastRetry(t *testing.T) {
	rt, e := newRecorder()
	calls := 0
	got, err := Do(context.Background(), e, func() (string, error) {
		calls++
		if calls <= DefaultMaxRetries {
			return "", errQuota
		}
		return "done", nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got != "done" || calls != 4 {
		t.Errorf("got %q after %d calls", got, calls)
	}

	var total time.Duration
	for _, w := range rt.waits {
		total += w
	}
	if total != 7*time.Second {
		t.Errorf("total wait = %v, want 7s (waits %v)", total, rt.waits)
	}
}

func TestDo_ExhaustsRetries(t *testing.T) {
	rt, e := newRecorder()
	calls := 0
	_, err := Do(context.Background(), e, func() (string, error) {
		calls++
		return "", errQuota
	})
	if err != errQuota {
		t.Fatalf("err = %v, want original rate-limit error", err)
	}
	if calls != DefaultMaxRetries+1 {
		t.Errorf("calls = %d, want 4", calls)
	}

	var total time.Duration
	for _, w := range rt.waits {
		total += w
	}
	if total != 7*time.Second {
		t.Errorf("total wait = %v, want 7s (waits %v)", total, rt.waits)
	}
}

func TestDo_DoesNotRetryOtherErrors(t *testing.T) {
	rt, e := newRecorder()
	boom := errors.New("internal server error 500")
	calls := 0
	_, err := Do(context.Background(), e, func() (string, error) {
		calls++
		return "", boom
	})
	if err != boom {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(rt.waits) != 0 {
		t.Errorf("waits = %v, want none", rt.waits)
	}
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New()
	calls := 0
	_, err := Do(ctx, e, func() (string, error) {
		calls++
		return "", errQuota
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestIsRateLimited(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"googleapi 429", errQuota, true},
		{"googleapi 500", &googleapi.Error{Code: 500}, false},
		{"wrapped googleapi", fmt.Errorf("generate: %w", errQuota), true},
		{"grpc resource exhausted", status.Error(codes.ResourceExhausted, "quota"), true},
		{"grpc unavailable", status.Error(codes.Unavailable, "down"), false},
		{"status code 429", statusErr(429), true},
		{"status code 503", statusErr(503), false},
		{"message 429", errors.New("googleapi: Error 429: Too Many Requests"), true},
		{"message resource exhausted", errors.New("rpc error: RESOURCE_EXHAUSTED"), true},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRateLimited(tc.err); got != tc.want {
				t.Errorf("IsRateLimited(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
