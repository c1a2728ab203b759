// Package trigger delivers "target confirmed deceased" hand-offs from the
// confirmation service to the release orchestrator, either through an
// in-process queue or through Kafka.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// ErrQueueFull is returned when the in-process queue cannot take another
// hand-off. The confirmation stays committed; the admin retry endpoint
// re-runs the release.
var ErrQueueFull = errors.New("release queue full")

// Runner is the orchestrator entry point.
type Runner interface {
	OnConfirmed(ctx context.Context, target id.PersonID) (models.Result, error)
}

const (
	defaultRetryAttempts = 5
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryMax      = 30 * time.Second
)

// Async runs releases on a background goroutine fed by a buffered channel.
// Infrastructure failures are retried in place with progressive backoff.
type Async struct {
	runner Runner
	queue  chan id.PersonID
	logger *slog.Logger
	wg     sync.WaitGroup

	maxAttempts int
	retryBase   time.Duration
	retryMax    time.Duration
}

type AsyncOption func(*Async)

// WithRetry bounds in-place retries of a release that failed on
// infrastructure. attempts counts the first run.
func WithRetry(attempts int, base, ceiling time.Duration) AsyncOption {
	return func(a *Async) {
		if attempts > 0 {
			a.maxAttempts = attempts
		}
		if base > 0 {
			a.retryBase = base
		}
		if ceiling > 0 {
			a.retryMax = ceiling
		}
	}
}

func NewAsync(runner Runner, buffer int, logger *slog.Logger, opts ...AsyncOption) *Async {
	if buffer <= 0 {
		buffer = 64
	}
	a := &Async{
		runner:      runner,
		queue:       make(chan id.PersonID, buffer),
		logger:      logger,
		maxAttempts: defaultRetryAttempts,
		retryBase:   defaultRetryBase,
		retryMax:    defaultRetryMax,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Trigger enqueues without blocking the confirming request.
func (a *Async) Trigger(_ context.Context, target id.PersonID) error {
	select {
	case a.queue <- target:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker. It drains until ctx is cancelled; use Wait to
// block until the in-flight release finishes.
func (a *Async) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case target := <-a.queue:
				a.release(ctx, target)
			}
		}
	}()
}

// release runs one hand-off, retrying infrastructure failures until the
// attempts run out. Partial failures are not retried here; the fan-out is
// idempotent and the admin retry endpoint re-invokes it.
func (a *Async) release(ctx context.Context, target id.PersonID) {
	for attempt := 1; ; attempt++ {
		retry, err := run(ctx, a.runner, target, a.logger)
		if !retry {
			return
		}
		if attempt >= a.maxAttempts {
			a.logger.ErrorContext(ctx, "release retries exhausted, awaiting admin retry",
				"target_person_id", target.String(),
				"attempts", attempt,
				"error", err,
			)
			return
		}
		timer := time.NewTimer(a.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// backoff doubles from retryBase per failed attempt, capped at retryMax.
func (a *Async) backoff(failures int) time.Duration {
	if failures <= 0 {
		return 0
	}
	shift := min(failures-1, 16)
	return min(a.retryBase*time.Duration(1<<shift), a.retryMax)
}

func (a *Async) Wait() {
	a.wg.Wait()
}

// run executes one release and reports whether it should be retried by the
// transport: the Async worker backs off and re-runs, Kafka leaves the record
// uncommitted. Partial failures and missing confirmations are final for the
// transport; the admin retry endpoint resumes them.
func run(ctx context.Context, runner Runner, target id.PersonID, logger *slog.Logger) (retry bool, err error) {
	result, err := runner.OnConfirmed(ctx, target)
	switch {
	case err == nil:
		return false, nil
	case dErrors.HasCode(err, dErrors.CodePartialFailure):
		logger.WarnContext(ctx, "release partially failed, awaiting retry",
			"target_person_id", target.String(),
			"shared", result.Shared,
			"failed", result.Failed,
		)
		return false, err
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		logger.ErrorContext(ctx, "release triggered without confirmation",
			"target_person_id", target.String(),
		)
		return false, err
	default:
		logger.ErrorContext(ctx, "release failed",
			"target_person_id", target.String(),
			"error", err,
		)
		return true, err
	}
}
