package main

import (
	"context"
	"database/sql"
	"time"

	id "heirloom/pkg/domain"
	dErrors "heirloom/pkg/domain-errors"
	txcontext "heirloom/pkg/platform/tx"
)

const defaultConfirmationTxTimeout = 5 * time.Second

// confirmationPostgresTx runs the deceased transition in one database
// transaction. Stores join it through the context; the row-level update on
// the person serializes concurrent confirmers, so key is unused.
type confirmationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newConfirmationPostgresTx(db *sql.DB) *confirmationPostgresTx {
	return &confirmationPostgresTx{db: db}
}

func (t *confirmationPostgresTx) RunInTx(ctx context.Context, _ id.PersonID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultConfirmationTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return txcontext.Run(ctx, t.db, fn)
}
