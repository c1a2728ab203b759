package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heirloom/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	pending []postgres.OutboxEntry
	marked  []uuid.UUID
}

func (f *fakeOutbox) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeOutbox) FetchPending(context.Context, int) ([]postgres.OutboxEntry, error) {
	return f.pending, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.marked = append(f.marked, ids...)
	return nil
}

type fakeProducer struct {
	failAfter int
	sent      []string
}

func (p *fakeProducer) Publish(_ context.Context, _ string, key, _ []byte) error {
	if p.failAfter >= 0 && len(p.sent) >= p.failAfter {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, string(key))
	return nil
}

func entries(n int) []postgres.OutboxEntry {
	out := make([]postgres.OutboxEntry, n)
	for i := range out {
		out[i] = postgres.OutboxEntry{ID: uuid.New(), AggregateID: uuid.NewString(), Payload: []byte(`{}`)}
	}
	return out
}

func TestRelayOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("publishes and marks every entry", func(t *testing.T) {
		outbox := &fakeOutbox{pending: entries(3)}
		producer := &fakeProducer{failAfter: -1}
		n, err := NewRelay(outbox, producer, "audit", 0, logger).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Len(t, outbox.marked, 3)
	})

	t.Run("marks only the prefix published before a failure", func(t *testing.T) {
		outbox := &fakeOutbox{pending: entries(3)}
		producer := &fakeProducer{failAfter: 1}
		n, err := NewRelay(outbox, producer, "audit", 0, logger).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.Len(t, outbox.marked, 1)
		assert.Equal(t, outbox.pending[0].ID, outbox.marked[0])
	})
}
