package trigger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/internal/platform/kafka"
	"heirloom/internal/platform/logger"
	"heirloom/internal/release/models"
	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	"heirloom/pkg/requestcontext"
)

type fakeRunner struct {
	mu      sync.Mutex
	targets []id.PersonID
	err     error
	ran     chan struct{}
}

func newFakeRunner(err error) *fakeRunner {
	return &fakeRunner{err: err, ran: make(chan struct{}, 16)}
}

func (r *fakeRunner) OnConfirmed(_ context.Context, target id.PersonID) (models.Result, error) {
	r.mu.Lock()
	r.targets = append(r.targets, target)
	r.mu.Unlock()
	r.ran <- struct{}{}
	return models.Result{TargetPersonID: target}, r.err
}

type capturedProducer struct {
	topic      string
	key, value []byte
}

func (p *capturedProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestAsync(t *testing.T) {
	t.Run("worker runs queued releases", func(t *testing.T) {
		runner := newFakeRunner(nil)
		async := NewAsync(runner, 4, logger.Discard())
		ctx, cancel := context.WithCancel(context.Background())
		async.Start(ctx)

		target := id.NewPersonID()
		require.NoError(t, async.Trigger(context.Background(), target))
		select {
		case <-runner.ran:
		case <-time.After(time.Second):
			t.Fatal("release did not run")
		}
		cancel()
		async.Wait()
		assert.Equal(t, []id.PersonID{target}, runner.targets)
	})

	t.Run("full queue is reported, not blocked on", func(t *testing.T) {
		async := NewAsync(newFakeRunner(nil), 1, logger.Discard())
		require.NoError(t, async.Trigger(context.Background(), id.NewPersonID()))
		assert.ErrorIs(t, async.Trigger(context.Background(), id.NewPersonID()), ErrQueueFull)
	})
}

// scriptedRunner returns errs in order, then nil.
type scriptedRunner struct {
	mu   sync.Mutex
	errs []error
	runs int
	ran  chan struct{}
}

func (r *scriptedRunner) OnConfirmed(_ context.Context, target id.PersonID) (models.Result, error) {
	r.mu.Lock()
	var err error
	if r.runs < len(r.errs) {
		err = r.errs[r.runs]
	}
	r.runs++
	r.mu.Unlock()
	r.ran <- struct{}{}
	return models.Result{TargetPersonID: target}, err
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func awaitRuns(t *testing.T, ran <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatalf("release ran %d times, want %d", i, n)
		}
	}
}

func TestAsyncRetry(t *testing.T) {
	down := errors.New("content service unreachable")

	tests := []struct {
		name     string
		errs     []error
		wantRuns int
	}{
		{name: "infrastructure failures are retried until success", errs: []error{down, down}, wantRuns: 3},
		{name: "retries stop after the attempt budget", errs: []error{down, down, down, down, down}, wantRuns: 3},
		{name: "partial failure waits for the admin retry", errs: []error{dErrors.New(dErrors.CodePartialFailure, "1 share failed")}, wantRuns: 1},
		{name: "missing confirmation is final", errs: []error{dErrors.New(dErrors.CodeInvariantViolation, "not confirmed")}, wantRuns: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{errs: tt.errs, ran: make(chan struct{}, 16)}
			async := NewAsync(runner, 4, logger.Discard(), WithRetry(3, time.Millisecond, 5*time.Millisecond))
			ctx, cancel := context.WithCancel(context.Background())
			async.Start(ctx)

			require.NoError(t, async.Trigger(context.Background(), id.NewPersonID()))
			awaitRuns(t, runner.ran, tt.wantRuns)
			time.Sleep(50 * time.Millisecond)
			cancel()
			async.Wait()
			assert.Equal(t, tt.wantRuns, runner.count())
		})
	}
}

func TestAsyncBackoff(t *testing.T) {
	async := NewAsync(newFakeRunner(nil), 1, logger.Discard(), WithRetry(0, 250*time.Millisecond, time.Second))
	assert.Zero(t, async.backoff(0))
	assert.Equal(t, 250*time.Millisecond, async.backoff(1))
	assert.Equal(t, 500*time.Millisecond, async.backoff(2))
	assert.Equal(t, time.Second, async.backoff(3))
	assert.Equal(t, time.Second, async.backoff(40))
	assert.Equal(t, defaultRetryAttempts, async.maxAttempts)
}

func TestKafkaTrigger(t *testing.T) {
	producer := &capturedProducer{}
	target := id.NewPersonID()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-7"), now)

	require.NoError(t, NewKafka(producer, "heirloom.release.triggers").Trigger(ctx, target))
	assert.Equal(t, "heirloom.release.triggers", producer.topic)
	assert.Equal(t, target.String(), string(producer.key))

	var event Event
	require.NoError(t, json.Unmarshal(producer.value, &event))
	assert.Equal(t, target, event.TargetPersonID)
	assert.Equal(t, "req-7", event.RequestID)
	assert.True(t, now.Equal(event.RequestedAt))
}

func TestKafkaHandler(t *testing.T) {
	encode := func(t *testing.T, target id.PersonID) *kafka.Message {
		value, err := json.Marshal(Event{TargetPersonID: target, RequestedAt: time.Now()})
		require.NoError(t, err)
		return &kafka.Message{Topic: "heirloom.release.triggers", Value: value}
	}
	partial := &models.PartialFailureError{Failures: []models.ItemFailure{{Recipient: "a@example.com", Err: errors.New("x")}}}

	tests := []struct {
		name      string
		runnerErr error
		wantErr   bool
	}{
		{name: "success commits", runnerErr: nil},
		{name: "partial failure commits", runnerErr: partial},
		{name: "missing confirmation commits", runnerErr: dErrors.New(dErrors.CodeInvariantViolation, "no confirmation")},
		{name: "infrastructure failure is redelivered", runnerErr: errors.New("db down"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newFakeRunner(tt.runnerErr)
			target := id.NewPersonID()
			err := Handler(runner, logger.Discard()).Handle(context.Background(), encode(t, target))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, []id.PersonID{target}, runner.targets)
		})
	}

	t.Run("malformed record is dropped", func(t *testing.T) {
		runner := newFakeRunner(nil)
		err := Handler(runner, logger.Discard()).Handle(context.Background(), &kafka.Message{Value: []byte("not json")})
		assert.NoError(t, err)
		assert.Empty(t, runner.targets)
	})
}
