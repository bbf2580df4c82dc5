package tx

import (
	"context"
	"database/sql"
	"time"

	dErrors "medledger/pkg/domain-errors"
)

// Runner executes fn atomically with respect to the backing store. Services
// wrap each mutation and its audit append in one Run call so a failure leaves
// state and trail byte-for-byte unchanged.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Passthrough runs fn directly. Used with the in-memory backend, whose
// mutations cannot fail after validation.
type Passthrough struct{}

func (Passthrough) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const defaultTxTimeout = 5 * time.Second

// SQLRunner wraps fn in a database transaction carried through context, so
// tx-aware stores join it.
type SQLRunner struct {
	DB      *sql.DB
	Timeout time.Duration
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := r.Timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(WithTx(ctx, sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}
