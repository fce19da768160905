// Package codedsession implements the one-time-code session repository.
package codedsession

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/avoropay/accounts-core/internal/adapter/docstore"
	"github.com/avoropay/accounts-core/internal/domain"
)

// Collection is the logical partition holding coded-session documents.
const Collection = "codedSessions"

// Repo provides coded-session persistence. Generic CRUD comes from the
// embedded repository; the subject lookup and expiry sweep are specific to
// this collection.
type Repo struct {
	*docstore.Repository[domain.CodedSession, *domain.CodedSession]

	store *docstore.Store
}

// New creates a coded-session repository.
func New(store *docstore.Store, logger *slog.Logger) *Repo {
	return &Repo{
		Repository: docstore.NewRepository[domain.CodedSession, *domain.CodedSession](store, Collection, logger),
		store:      store,
	}
}

// LatestBySubject returns the most recently created session for a subject,
// expired or not; the caller decides whether an expired session is deleted
// or merely ignored. Returns domain.ErrNotFound when the subject has no
// sessions at all.
func (r *Repo) LatestBySubject(ctx context.Context, subject string) (*domain.CodedSession, error) {
	if subject == "" {
		return nil, domain.NewValidationError("subject", "must not be empty")
	}

	sessions, err := r.FindByField(ctx, "subject", subject)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("%s subject %q: %w", Collection, subject, domain.ErrNotFound)
	}

	// A subject holds at most a handful of sessions; sorting here beats
	// teaching the store about ordering.
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions[0], nil
}

// DeleteExpired removes every session past its expiry regardless of
// verification state, bounding storage growth.
func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.store.DeleteDocsWhere(ctx, Collection,
		docstore.FieldInt64Lte("expiresAtEpochSecond", now.UTC().Unix()),
	)
}
