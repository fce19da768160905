// Package reservation implements the email reservation repository.
//
// Reservations live in the userEmails collection where the document ID is
// the normalized email address. That makes the store's create-if-absent
// semantics at the document identity the entire uniqueness guarantee: of
// two concurrent reserve attempts for the same email, exactly one creates
// the document and the other observes domain.ErrAlreadyExists.
package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avoropay/accounts-core/internal/adapter/docstore"
	"github.com/avoropay/accounts-core/internal/domain"
)

// Collection is the logical partition holding reservation documents.
const Collection = "userEmails"

// Repo provides reservation persistence. All single-document decision
// points (reserve, confirm) run inside a store transaction so the
// read-then-write is atomic; when an ambient transaction is active the
// operations join it instead.
type Repo struct {
	store *docstore.Store
	tx    *docstore.TxManager
	log   *slog.Logger
	now   func() time.Time
}

// New creates a reservation repository.
func New(store *docstore.Store, tx *docstore.TxManager, logger *slog.Logger) *Repo {
	return &Repo{
		store: store,
		tx:    tx,
		log:   logger.With("collection", Collection),
		now:   time.Now,
	}
}

// Reserve attempts to claim the reservation's email. An existing
// reservation that still holds the email (CONFIRMED, or PENDING and not
// expired) fails with domain.ErrAlreadyExists; an expired PENDING
// reservation is overwritten.
func (r *Repo) Reserve(ctx context.Context, res *domain.Reservation, actorID string) error {
	if res == nil {
		return domain.NewValidationError("reservation", "must not be nil")
	}
	if err := domain.ValidateActorID(actorID); err != nil {
		return err
	}

	res.Email = domain.NormalizeEmail(res.Email)
	now := r.now().UTC()

	return r.tx.RunInTx(ctx, func(ctx context.Context) error {
		existing, err := r.getForUpdate(ctx, res.Email)
		switch {
		case err == nil:
			if existing.Holds(now) {
				return fmt.Errorf("%s %q reserve: %w", Collection, res.Email, domain.ErrAlreadyExists)
			}
			// Expired PENDING claim: the email is reclaimable.
			r.log.Info("overwriting expired reservation", "email", res.Email)
			res.AuditFields().InitAudit(actorID, now)
			doc, merr := r.marshal(res)
			if merr != nil {
				return merr
			}
			return r.store.PutDoc(ctx, Collection, res.Email, doc)

		case errors.Is(err, domain.ErrNotFound):
			res.AuditFields().InitAudit(actorID, now)
			doc, merr := r.marshal(res)
			if merr != nil {
				return merr
			}
			return r.store.CreateDoc(ctx, Collection, res.Email, doc)

		default:
			return err
		}
	})
}

// Confirm transitions the reservation for email to CONFIRMED, stamping the
// envelope. Idempotent: confirming a CONFIRMED reservation is a no-op.
// Joins an ambient transaction, which is how signup completion makes the
// account create and the confirm atomic.
func (r *Repo) Confirm(ctx context.Context, email, actorID string) (*domain.Reservation, error) {
	if err := domain.ValidateActorID(actorID); err != nil {
		return nil, err
	}
	normalized := domain.NormalizeEmail(email)

	var confirmed *domain.Reservation
	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := r.getForUpdate(ctx, normalized)
		if err != nil {
			return err
		}

		if res.Status == domain.ReservationConfirmed {
			confirmed = res
			return nil
		}

		expected := res.AuditFields().Version
		res.Confirm()
		res.AuditFields().TouchAudit(actorID, r.now().UTC())

		doc, err := r.marshal(res)
		if err != nil {
			return err
		}
		if err := r.store.UpdateDocCAS(ctx, Collection, normalized, doc, expected); err != nil {
			return err
		}
		confirmed = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// FindByEmail returns the reservation for the normalized email, expired or
// not. Returns domain.ErrNotFound when no document exists.
func (r *Repo) FindByEmail(ctx context.Context, email string) (*domain.Reservation, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return nil, domain.NewValidationError("email", "must not be empty")
	}

	doc, err := r.store.GetDoc(ctx, Collection, normalized)
	if err != nil {
		return nil, err
	}
	return r.unmarshal(doc, normalized)
}

// IsEmailAvailable reports whether no reservation currently holds the
// email. It does not consult the accounts collection; the signup service
// layer combines both checks.
func (r *Repo) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	res, err := r.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return !res.Holds(r.now().UTC()), nil
}

// Delete removes the reservation document. Returns true if one existed.
func (r *Repo) Delete(ctx context.Context, email string) (bool, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return false, domain.NewValidationError("email", "must not be empty")
	}
	return r.store.DeleteDoc(ctx, Collection, normalized)
}

// DeleteExpiredPending removes every PENDING reservation past its expiry,
// reclaiming emails abandoned mid-flow. CONFIRMED reservations are never
// swept.
func (r *Repo) DeleteExpiredPending(ctx context.Context) (int64, error) {
	return r.store.DeleteDocsWhere(ctx, Collection,
		docstore.FieldEq("status", string(domain.ReservationPending)),
		docstore.FieldInt64Lte("expiresAtEpochSecond", r.now().UTC().Unix()),
	)
}

// ---------------------------------------------------------------------------
// Internal
// ---------------------------------------------------------------------------

func (r *Repo) getForUpdate(ctx context.Context, email string) (*domain.Reservation, error) {
	doc, err := r.store.GetDocForUpdate(ctx, Collection, email)
	if err != nil {
		return nil, err
	}
	return r.unmarshal(doc, email)
}

func (r *Repo) marshal(res *domain.Reservation) ([]byte, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	doc, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("%s %q: marshal: %w", Collection, res.Email, err)
	}
	return doc, nil
}

func (r *Repo) unmarshal(doc []byte, email string) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := json.Unmarshal(doc, &res); err != nil {
		return nil, fmt.Errorf("%s %q: unmarshal: %w", Collection, email, err)
	}
	res.Email = email
	return &res, nil
}
