package signup

import (
	"context"
	"fmt"

	"github.com/avoropay/accounts-core/internal/domain"
	"github.com/avoropay/accounts-core/pkg/ctxutil"
)

// InitiateResult reports what a started signup produced.
type InitiateResult struct {
	OwnerID   string
	SessionID string
}

// Initiate starts a registration: it reserves the email and sends a
// verification code linked to the reserved owner ID. If delivery fails the
// reservation is released so the email is immediately reclaimable.
func (s *Service) Initiate(ctx context.Context, email, flowType, sessionID string) (*InitiateResult, error) {
	ownerID, err := s.ReserveEmail(ctx, email, flowType, sessionID)
	if err != nil {
		return nil, err
	}

	session, err := s.codes.SendRegistrationCode(ctx, domain.ChannelEmail, email, ownerID)
	if err != nil {
		s.ReleaseReservation(ctx, email)
		return nil, fmt.Errorf("send verification code: %w", err)
	}

	s.log.Info("signup initiated",
		"owner_id", ownerID,
		"flow_type", flowType,
		"code_session_id", session.ID,
		"request_id", ctxutil.RequestIDFromCtx(ctx))

	return &InitiateResult{OwnerID: ownerID, SessionID: session.ID}, nil
}

// Complete finishes a registration: it verifies the submitted code, then in
// one transaction creates the account under the reserved owner ID and makes
// the email reservation permanent. Either both writes land or neither does.
func (s *Service) Complete(ctx context.Context, email, code, displayName string) (*domain.User, error) {
	normalized := domain.NormalizeEmail(email)

	session, err := s.codes.Verify(ctx, domain.ChannelEmail, normalized, code)
	if err != nil {
		return nil, err
	}
	if session.Purpose != domain.PurposeRegistration {
		return nil, fmt.Errorf("code session %q is not a registration session: %w",
			session.ID, domain.ErrNotFound)
	}
	if session.OwnerID == "" {
		return nil, fmt.Errorf("code session %q carries no owner link: %w",
			session.ID, domain.ErrNotFound)
	}

	actor := actorFrom(ctx)
	var user *domain.User
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		res, err := s.reservations.Confirm(ctx, normalized, actor)
		if err != nil {
			return err
		}
		if res.OwnerID != session.OwnerID {
			return fmt.Errorf("reservation owner %q does not match session owner %q: %w",
				res.OwnerID, session.OwnerID, domain.ErrConflict)
		}

		user, err = s.users.ForceCreate(ctx, &domain.User{
			ID:          session.OwnerID,
			Email:       normalized,
			DisplayName: displayName,
			SignupFlow:  res.FlowType,
		}, actor)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("complete signup: %w", err)
	}

	s.log.Info("signup completed",
		"user_id", user.ID,
		"email", normalized,
		"request_id", ctxutil.RequestIDFromCtx(ctx))
	return user, nil
}
