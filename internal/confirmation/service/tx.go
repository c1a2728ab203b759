package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
)

// TxRunner is the transactional boundary around the deceased transition.
// key identifies the aggregate so in-memory runners can lock per target.
type TxRunner interface {
	RunInTx(ctx context.Context, key id.PersonID, fn func(ctx context.Context) error) error
}

const (
	numConfirmationShards = 128

	defaultTxTimeout = 5 * time.Second
)

// ShardedTx serializes work per target with a fixed set of mutexes. It gives
// in-memory stores the isolation a database transaction would, without
// rollback.
type ShardedTx struct {
	shards  [numConfirmationShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx() *ShardedTx {
	return &ShardedTx{timeout: defaultTxTimeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, key id.PersonID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := &t.shards[shardFor(key)]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(key id.PersonID) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(key[:])
	return h.Sum32() % numConfirmationShards
}
