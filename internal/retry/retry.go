package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"time"
)

// ErrHandlerPanic wraps a recovered panic so it is handled as a failed attempt.
var ErrHandlerPanic = errors.New("handler panicked")

// Policy configures retry behavior. The documented contract is a fixed delay
// between attempts (Multiplier 1); a Multiplier above 1 turns on exponential
// backoff capped at MaxDelay.
type Policy struct {
	MaxRetries int           `json:"max_retries"`
	Delay      time.Duration `json:"delay"`
	Multiplier float64       `json:"multiplier"`
	MaxDelay   time.Duration `json:"max_delay"`
}

// DefaultPolicy returns a fixed one-second delay with three retries.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Delay:      1 * time.Second,
		Multiplier: 1.0,
		MaxDelay:   30 * time.Second,
	}
}

func (p Policy) normalize() Policy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Multiplier < 1.0 {
		p.Multiplier = 1.0
	}
	return p
}

// NextDelay returns the wait before the given retry (1 = first retry).
func (p Policy) NextDelay(retry int) time.Duration {
	p = p.normalize()
	if retry <= 1 || p.Multiplier == 1.0 {
		return p.Delay
	}

	delay := float64(p.Delay) * math.Pow(p.Multiplier, float64(retry-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// MaxAttempts is the first attempt plus MaxRetries.
func (p Policy) MaxAttempts() int {
	return p.normalize().MaxRetries + 1
}

// Attempt describes one finished attempt.
type Attempt struct {
	Number    int
	Err       error
	Duration  time.Duration
	NextDelay time.Duration
	Final     bool
}

// Outcome is the terminal result of a retry loop.
type Outcome struct {
	Delivered bool
	Attempts  int
	Err       error
	Abandoned bool
}

// Func is one unit of work. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Observer is notified after each attempt. It runs on the retry goroutine.
type Observer func(Attempt)

// Scheduler runs work under a retry policy. A single Run call executes its
// attempts serially; independent Run calls are safe to use concurrently.
type Scheduler struct {
	policy         Policy
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewScheduler creates a scheduler. attemptTimeout bounds each individual
// attempt; zero means no bound.
func NewScheduler(policy Policy, attemptTimeout time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		policy:         policy.normalize(),
		attemptTimeout: attemptTimeout,
		logger:         logger,
	}
}

func (s *Scheduler) Policy() Policy {
	return s.policy
}

// Run executes fn with the scheduler's policy.
func (s *Scheduler) Run(ctx context.Context, fn Func, observe Observer) Outcome {
	return s.RunPolicy(ctx, s.policy, fn, observe)
}

// RunPolicy executes fn immediately and, on failure, waits the policy delay
// and tries again until it succeeds or MaxRetries extra attempts are spent.
// Cancelling ctx abandons the loop.
func (s *Scheduler) RunPolicy(ctx context.Context, p Policy, fn Func, observe Observer) Outcome {
	p = p.normalize()
	maxAttempts := p.MaxAttempts()

	if err := ctx.Err(); err != nil {
		return Outcome{Err: err, Abandoned: true}
	}

	var lastErr error
	for n := 1; n <= maxAttempts; n++ {
		if n > 1 && !wait(ctx, p.NextDelay(n-1)) {
			return Outcome{Attempts: n - 1, Err: lastErr, Abandoned: true}
		}

		start := time.Now()
		err := s.attempt(ctx, n, fn)
		a := Attempt{Number: n, Err: err, Duration: time.Since(start)}

		if err == nil {
			a.Final = true
			notify(observe, a)
			return Outcome{Delivered: true, Attempts: n}
		}

		lastErr = err
		if n < maxAttempts {
			a.NextDelay = p.NextDelay(n)
		} else {
			a.Final = true
		}
		notify(observe, a)

		if ctx.Err() != nil {
			return Outcome{Attempts: n, Err: lastErr, Abandoned: true}
		}
	}

	return Outcome{Attempts: maxAttempts, Err: lastErr}
}

func (s *Scheduler) attempt(ctx context.Context, n int, fn Func) (err error) {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("recovered panic in retried handler",
				"attempt", n,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()

	return fn(ctx, n)
}

func notify(observe Observer, a Attempt) {
	if observe != nil {
		observe(a)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
