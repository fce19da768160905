package docstore

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the common interface implemented by both *pgxpool.Pool and
// pgx.Tx. Store operations are written against it so the same code path
// serves transactional and standalone writes.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txCtxKey is the transaction-scoped context slot. It is call-scoped, never
// global: a transaction placed here is visible only along one execution
// path and cannot leak into unrelated requests.
type txCtxKey struct{}

// withTx puts a transaction into the context.
func withTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey{}, tx)
}

// txFromCtx returns the active transaction, or nil if none is present.
func txFromCtx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txCtxKey{}).(pgx.Tx)
	return tx
}

// QuerierFromCtx returns the transaction from context if one is active,
// otherwise the pool. Every store operation resolves its querier through
// this, which is how repository calls join an ambient transaction without
// an explicit handle parameter.
func QuerierFromCtx(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx := txFromCtx(ctx); tx != nil {
		return tx
	}
	return pool
}

// InTx reports whether a transaction is active on this execution path.
func InTx(ctx context.Context) bool {
	return txFromCtx(ctx) != nil
}
