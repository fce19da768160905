package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoropay/accounts-core/internal/domain"
)

// maxTxAttempts is the store's internal retry budget for transactions that
// fail on serialization conflicts. Exhausting it surfaces a single
// domain.ErrTransactionFailed; partial writes are never visible.
const maxTxAttempts = 3

// TxManager turns the store's transaction primitive into the two shapes
// application code needs:
//
//   - RunInTx: callback form. The unit of work receives a context carrying
//     the transaction; every repository call made with that context joins
//     it. Conflicts are retried transparently, so the callback may run more
//     than once and must be side-effect free outside the store.
//   - Begin: blocking form. Returns a handle whose Commit/Rollback park the
//     underlying callback on a channel until the caller decides the
//     outcome. Because the caller's writes cannot be replayed, this form
//     gets no conflict retries.
//
// Nesting flattens: a RunInTx call on a context that already carries a
// transaction joins it instead of opening a second one.
type TxManager struct {
	pool *pgxpool.Pool
}

// NewTxManager creates a TxManager sharing the store's pool.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx executes fn atomically. On success it commits; on error or panic
// it rolls back. Serialization conflicts are retried up to the internal
// budget; past that the error wraps domain.ErrTransactionFailed.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// Join an ambient transaction instead of stacking a second one.
	if InTx(ctx) {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = m.runOnce(ctx, fn)
		if err == nil || !retryableTxError(err) {
			return err
		}
	}
	return fmt.Errorf("commit after %d attempts: %v: %w", maxTxAttempts, err, domain.ErrTransactionFailed)
}

func (m *TxManager) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	// The transaction lives only in the callback's context. All exit paths
	// leave the caller's context untouched, so a stale handle can never
	// leak into later calls on the same execution path.
	txCtx := withTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// errRolledBack is the internal signal a Tx handle feeds the parked
// callback when the caller asks for rollback.
var errRolledBack = errors.New("transaction rolled back by caller")

// Tx is a blocking transaction handle. Use Context() for every repository
// call that should be part of the transaction, then finish with exactly one
// Commit or Rollback. The handle is not safe for concurrent use.
type Tx struct {
	ctx    context.Context
	joined bool

	outcome chan error
	done    chan error
	once    sync.Once
	result  error
}

// Begin opens a transaction and parks the store's callback until Commit or
// Rollback is called. If ctx already carries a transaction, the returned
// handle joins it: its Context() is the ambient one and Commit/Rollback are
// no-ops, leaving the outcome to the outer owner.
func (m *TxManager) Begin(ctx context.Context) (*Tx, error) {
	if InTx(ctx) {
		return &Tx{ctx: ctx, joined: true}, nil
	}

	t := &Tx{
		outcome: make(chan error, 1),
		done:    make(chan error, 1),
	}
	started := make(chan context.Context, 1)

	go func() {
		// Single attempt: the caller's unit of work already ran against
		// this transaction and cannot be replayed on conflict.
		err := m.runOnce(ctx, func(txCtx context.Context) error {
			started <- txCtx
			// Park until the caller signals the outcome. This is the
			// single-resolution handoff that converts the callback shape
			// into begin/commit/rollback.
			select {
			case out := <-t.outcome:
				return out
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		t.done <- err
	}()

	select {
	case txCtx := <-started:
		t.ctx = txCtx
		return t, nil
	case err := <-t.done:
		// Begin itself failed before the callback was entered.
		if err == nil {
			err = errors.New("transaction finished before start")
		}
		return nil, err
	}
}

// Context returns the transaction-bound context. It must not be used after
// Commit or Rollback.
func (t *Tx) Context() context.Context { return t.ctx }

// Commit signals success to the parked callback and waits for the store to
// finalize the write set. A serialization conflict at this point is
// terminal and wraps domain.ErrTransactionFailed.
func (t *Tx) Commit() error {
	if t.joined {
		return nil
	}
	err := t.finish(nil)
	if err != nil && retryableTxError(err) {
		return fmt.Errorf("%v: %w", err, domain.ErrTransactionFailed)
	}
	return err
}

// Rollback signals failure to the parked callback, discarding the write
// set. Safe to call after Commit; later calls return the first outcome.
func (t *Tx) Rollback() error {
	if t.joined {
		return nil
	}
	err := t.finish(errRolledBack)
	if errors.Is(err, errRolledBack) {
		return nil
	}
	return err
}

func (t *Tx) finish(out error) error {
	t.once.Do(func() {
		t.outcome <- out
		t.result = <-t.done
	})
	return t.result
}
