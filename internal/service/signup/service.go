// Package signup implements account registration: email reservation,
// verification-code delivery, and atomic account creation on completion.
package signup

import (
	"context"
	"log/slog"
	"time"

	"github.com/avoropay/accounts-core/internal/config"
	"github.com/avoropay/accounts-core/internal/domain"
	"github.com/avoropay/accounts-core/pkg/ctxutil"
)

// systemActor stamps audit envelopes for writes the service performs on its
// own behalf.
const systemActor = "system"

// reservationRepo defines the reservation repository interface needed by the
// service.
type reservationRepo interface {
	Reserve(ctx context.Context, res *domain.Reservation, actorID string) error
	Confirm(ctx context.Context, email, actorID string) (*domain.Reservation, error)
	FindByEmail(ctx context.Context, email string) (*domain.Reservation, error)
	IsEmailAvailable(ctx context.Context, email string) (bool, error)
	Delete(ctx context.Context, email string) (bool, error)
	DeleteExpiredPending(ctx context.Context) (int64, error)
}

// userRepo defines the account repository interface needed by the service.
type userRepo interface {
	ForceCreate(ctx context.Context, u *domain.User, actorID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// txManager runs a function inside a store transaction, joining an ambient
// one when present.
type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// codeSender issues and verifies one-time codes for the signup flow.
type codeSender interface {
	SendRegistrationCode(ctx context.Context, channel domain.CodedSessionChannel, subject, ownerID string) (*domain.CodedSession, error)
	Verify(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) (*domain.CodedSession, error)
}

// Service implements the registration flow.
type Service struct {
	log          *slog.Logger
	reservations reservationRepo
	users        userRepo
	tx           txManager
	codes        codeSender
	cfg          config.SignupConfig

	now func() time.Time
}

// NewService creates a signup service.
func NewService(
	logger *slog.Logger,
	reservations reservationRepo,
	users userRepo,
	tx txManager,
	codes codeSender,
	cfg config.SignupConfig,
) *Service {
	return &Service{
		log:          logger.With("service", "signup"),
		reservations: reservations,
		users:        users,
		tx:           tx,
		codes:        codes,
		cfg:          cfg,
		now:          time.Now,
	}
}

func actorFrom(ctx context.Context) string {
	if id, ok := ctxutil.ActorIDFromCtx(ctx); ok {
		return id
	}
	return systemActor
}
