package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/avoropay/accounts-core/internal/domain"
)

// pgerrcode values the store translates into domain sentinels.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// mapError converts pgx/pgconn failures into the domain taxonomy, keeping
// the collection, operation, and document identity for diagnostics.
// context.DeadlineExceeded and context.Canceled pass through unmapped.
func mapError(err error, collection, op, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %q %s: %w", collection, id, op, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %q %s: %w", collection, id, op, domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s %q %s: %w", collection, id, op, domain.ErrAlreadyExists)
		case codeSerializationFailure, codeDeadlockDetected:
			// Keep the pg error in the chain so the transaction manager can
			// still recognize the failure as retryable.
			return fmt.Errorf("%s %q %s: %w: %w", collection, id, op, domain.ErrTransactionFailed, err)
		}
	}

	// Store I/O and everything else: wrap with context and propagate.
	return fmt.Errorf("%s %q %s: %w", collection, id, op, err)
}

// retryableTxError reports whether the store may transparently retry the
// transaction callback: serialization failures and deadlocks only.
func retryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}
