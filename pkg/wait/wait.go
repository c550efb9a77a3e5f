// Package wait provides the cancellable polling primitive every health gate of the orchestrator is built on.
package wait

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
)

// ErrTimeout is returned when the wait deadline passed before the condition held.
var ErrTimeout = errors.New("timed out waiting for the condition")

// ConditionFunc reports whether the awaited state has been reached. It is called repeatedly and must honour ctx.
type ConditionFunc func(ctx context.Context) bool

// Backoff describes the sleep between attempts: it starts at Initial, is multiplied by Factor after every failed
// attempt and never exceeds Max. Factor <= 1 keeps a fixed interval.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
}

// Fixed returns a Backoff sleeping the same interval between every attempt.
func Fixed(interval time.Duration) Backoff {
	return Backoff{Initial: interval, Max: interval, Factor: 1}
}

func (b Backoff) next(current time.Duration) time.Duration {
	if b.Factor <= 1 {
		return current
	}
	n := time.Duration(float64(current) * b.Factor)
	if b.Max > 0 && n > b.Max {
		return b.Max
	}
	return n
}

// Options configure a wait. A zero Timeout waits until the context is done, which with a background context
// means forever and has to be asked for explicitly.
type Options struct {
	Backoff Backoff
	Timeout time.Duration
	Clock   clock.Clock
}

// Forever returns options that only stop on context cancellation.
func Forever(backoff Backoff) Options {
	return Options{Backoff: backoff}
}

// WithTimeout returns options giving up after timeout.
func WithTimeout(backoff Backoff, timeout time.Duration) Options {
	return Options{Backoff: backoff, Timeout: timeout}
}

func (o Options) clock() clock.Clock {
	if o.Clock == nil {
		return clock.New()
	}
	return o.Clock
}

// Until evaluates condition until it returns true. The first evaluation happens immediately. It returns ErrTimeout
// when Options.Timeout elapsed and the context error when the parent context was cancelled.
func Until(ctx context.Context, opts Options, condition ConditionFunc) error {
	clk := opts.clock()
	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = clk.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	interval := opts.Backoff.Initial
	for {
		if condition(waitCtx) {
			return nil
		}
		if interval <= 0 {
			interval = time.Second
		}
		timer := clk.Timer(interval)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if err := ctx.Err(); err != nil {
				return err
			}
			return ErrTimeout
		case <-timer.C:
		}
		interval = opts.Backoff.next(interval)
	}
}

// Probe is a named condition, typically the health check of one server.
type Probe struct {
	Name  string
	Check ConditionFunc
}

// UnhealthyError lists the probes that never succeeded.
type UnhealthyError struct {
	Members []string
	Cause   error
}

func (e *UnhealthyError) Error() string {
	return fmt.Sprintf("members never became healthy: [%s]: %v", strings.Join(e.Members, ", "), e.Cause)
}

func (e *UnhealthyError) Unwrap() error {
	return e.Cause
}

// ForAll waits for every probe in parallel and returns once all of them succeeded. If any probe is still failing
// when the wait ends, the returned *UnhealthyError names every such probe.
func ForAll(ctx context.Context, opts Options, probes ...Probe) error {
	var (
		mu      sync.Mutex
		failed  []string
		results *multierror.Error
	)
	var wg sync.WaitGroup
	for _, p := range probes {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			// one member failing does not stop the others from being waited for
			if err := Until(ctx, opts, p.Check); err != nil {
				mu.Lock()
				failed = append(failed, p.Name)
				results = multierror.Append(results, fmt.Errorf("%s: %w", p.Name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(failed) == 0 {
		return nil
	}
	sort.Strings(failed)
	return &UnhealthyError{Members: failed, Cause: results.ErrorOrNil()}
}
