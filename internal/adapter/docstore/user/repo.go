// Package user implements the account repository over the document store.
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/avoropay/accounts-core/internal/adapter/docstore"
	"github.com/avoropay/accounts-core/internal/domain"
)

// Collection is the logical partition holding account documents.
const Collection = "users"

// Repo provides account persistence. User IDs are pre-assigned during
// signup (the reserved owner ID), so creation goes through ForceCreate on
// the embedded generic repository.
type Repo struct {
	*docstore.Repository[domain.User, *domain.User]
}

// New creates a user repository.
func New(store *docstore.Store, logger *slog.Logger) *Repo {
	return &Repo{
		Repository: docstore.NewRepository[domain.User, *domain.User](store, Collection, logger),
	}
}

// GetByEmail returns the active account with the given email, if any. The
// email is normalized before lookup. Returns domain.ErrNotFound when no
// account exists; callers in the signup path treat that as availability.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, domain.NewValidationError("email", "must not be empty")
	}

	users, err := r.FindByField(ctx, "email", normalized)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("%s %q: %w", Collection, normalized, domain.ErrNotFound)
	}
	return users[0], nil
}

// EmailExists reports whether an active account already owns the email.
func (r *Repo) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
