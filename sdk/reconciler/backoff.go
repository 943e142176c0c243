package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/jxo-me/ddnsd/config"
	"github.com/jxo-me/ddnsd/core/ddns"
)

// Phase is a state of the retry machine.
type Phase int

const (
	// Attempting is entered before every call.
	Attempting Phase = iota
	// BackingOff waits until the next attempt after a transient failure.
	BackingOff
	// Succeeded ends the machine after a call returned no error.
	Succeeded
	// GaveUp ends the machine on a terminal error, an exhausted budget or shutdown.
	GaveUp
)

func (p Phase) String() string {
	switch p {
	case Attempting:
		return "Attempting"
	case BackingOff:
		return "BackingOff"
	case Succeeded:
		return "Succeeded"
	case GaveUp:
		return "GaveUp"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Transition is one state entered by a Retrier.
type Transition struct {
	Phase   Phase
	Attempt int
	// Until is set for BackingOff.
	Until time.Time
}

func (t Transition) String() string {
	if t.Phase == BackingOff {
		return fmt.Sprintf("%s(%d, until %s)", t.Phase, t.Attempt, t.Until.Format(time.RFC3339Nano))
	}
	return fmt.Sprintf("%s(%d)", t.Phase, t.Attempt)
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backoff returns the wait after failed attempt n, counted from 1:
// base*2^(n-1) capped at max.
func Backoff(policy config.RetryConfig, attempt int) time.Duration {
	if policy.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	d := policy.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d <= 0 || d >= policy.MaxDelay {
			return policy.MaxDelay
		}
	}
	if d > policy.MaxDelay {
		return policy.MaxDelay
	}
	return d
}

// Retrier runs one operation through its retry budget. Only transient
// provider errors are retried; RateLimited waits at least its RetryAfter.
// A Retrier is used for a single operation and is not safe for concurrent use.
type Retrier struct {
	policy      config.RetryConfig
	now         func() time.Time
	sleep       Sleeper
	transitions []Transition
	onBackoff   func(attempt int, wait time.Duration, err error)
}

func NewRetrier(policy config.RetryConfig, now func() time.Time, sleep Sleeper) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, now: now, sleep: sleep}
}

// Transitions returns the states entered so far, in order.
func (r *Retrier) Transitions() []Transition {
	return append([]Transition(nil), r.transitions...)
}

// Do calls op until it succeeds, fails terminally, the attempt budget is
// spent or ctx is done while backing off. It returns the number of attempts
// made and the last error.
func (r *Retrier) Do(ctx context.Context, op func() error) (int, error) {
	for attempt := 1; ; attempt++ {
		r.enter(Attempting, attempt, time.Time{})
		err := op()
		if err == nil {
			r.enter(Succeeded, attempt, time.Time{})
			return attempt, nil
		}

		pe, ok := ddns.AsProviderError(err)
		if !ok || !pe.Transient() || attempt >= r.policy.MaxAttempts {
			r.enter(GaveUp, attempt, time.Time{})
			return attempt, err
		}

		wait := Backoff(r.policy, attempt)
		if pe.RetryAfter > wait {
			wait = pe.RetryAfter
		}
		r.enter(BackingOff, attempt, r.now().Add(wait))
		if r.onBackoff != nil {
			r.onBackoff(attempt, wait, err)
		}
		if r.sleep(ctx, wait) != nil {
			r.enter(GaveUp, attempt, time.Time{})
			return attempt, err
		}
	}
}

func (r *Retrier) enter(phase Phase, attempt int, until time.Time) {
	r.transitions = append(r.transitions, Transition{Phase: phase, Attempt: attempt, Until: until})
}
