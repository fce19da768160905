package signup

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/avoropay/accounts-core/internal/domain"
)

// ReserveEmail claims an email for a new signup and returns the generated
// owner ID that the finished account will carry. Fails with
// domain.ErrAlreadyExists when an account or live reservation already holds
// the email.
func (s *Service) ReserveEmail(ctx context.Context, email, flowType, sessionID string) (string, error) {
	return s.reserve(ctx, email, flowType, sessionID, uuid.NewString())
}

// ReserveEmailWithOwner claims an email on behalf of a known owner, used by
// flows that bring their own account identifier (e.g. linking a verified
// email to an existing account).
func (s *Service) ReserveEmailWithOwner(ctx context.Context, email, flowType, sessionID, ownerID string) error {
	if ownerID == "" {
		return domain.NewValidationError("owner_id", "must not be empty")
	}
	_, err := s.reserve(ctx, email, flowType, sessionID, ownerID)
	return err
}

func (s *Service) reserve(ctx context.Context, email, flowType, sessionID, ownerID string) (string, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return "", domain.NewValidationError("email", "must not be empty")
	}

	// An account owning the email outranks any reservation state.
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return "", fmt.Errorf("email %q taken by existing account: %w", normalized, domain.ErrAlreadyExists)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("check existing account: %w", err)
	}

	res := &domain.Reservation{
		Email:                normalized,
		OwnerID:              ownerID,
		FlowType:             flowType,
		SessionID:            sessionID,
		Status:               domain.ReservationPending,
		ExpiresAtEpochSecond: s.now().Add(s.cfg.ReservationTTL).Unix(),
	}
	if err := s.reservations.Reserve(ctx, res, actorFrom(ctx)); err != nil {
		return "", err
	}

	s.log.Info("email reserved",
		"email", normalized,
		"owner_id", ownerID,
		"flow_type", flowType,
		"expires_at", res.ExpiresAtEpochSecond)

	return ownerID, nil
}

// ConfirmReservation makes the claim on the email permanent. Idempotent.
func (s *Service) ConfirmReservation(ctx context.Context, email string) (*domain.Reservation, error) {
	return s.reservations.Confirm(ctx, email, actorFrom(ctx))
}

// ReleaseReservation frees the email for other signups. Best effort: a
// missing reservation is not an error, and the caller's flow should not fail
// because a cleanup write did; an unreleased PENDING claim expires on its
// own.
func (s *Service) ReleaseReservation(ctx context.Context, email string) {
	existed, err := s.reservations.Delete(ctx, email)
	if err != nil {
		s.log.Warn("failed to release reservation", "email", domain.NormalizeEmail(email), "error", err)
		return
	}
	if existed {
		s.log.Info("reservation released", "email", domain.NormalizeEmail(email))
	}
}

// ReservedOwnerID returns the owner ID attached to a live reservation for
// the email. Expired reservations report domain.ErrNotFound.
func (s *Service) ReservedOwnerID(ctx context.Context, email string) (string, error) {
	res, err := s.reservations.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if !res.Holds(s.now()) {
		return "", fmt.Errorf("reservation for %q expired: %w", domain.NormalizeEmail(email), domain.ErrNotFound)
	}
	return res.OwnerID, nil
}

// IsEmailAvailable reports whether neither an account nor a live reservation
// holds the email.
func (s *Service) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		return false, domain.NewValidationError("email", "must not be empty")
	}

	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, err
	}

	return s.reservations.IsEmailAvailable(ctx, normalized)
}

// CleanupExpiredReservations sweeps PENDING reservations past their expiry
// and reports how many were removed.
func (s *Service) CleanupExpiredReservations(ctx context.Context) (int64, error) {
	deleted, err := s.reservations.DeleteExpiredPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired reservations: %w", err)
	}
	if deleted > 0 {
		s.log.Info("expired reservations removed", "count", deleted)
	}
	return deleted, nil
}
