// Package otp implements the ephemeral coded-session service: issuing,
// rate-limiting, and verifying one-time numeric codes for phone and email
// channels.
package otp

import (
	"context"
	"log/slog"
	"time"

	"github.com/avoropay/accounts-core/internal/config"
	"github.com/avoropay/accounts-core/internal/domain"
	"github.com/avoropay/accounts-core/pkg/ctxutil"
)

// systemActor stamps the audit envelope of sessions the service manages on
// its own behalf.
const systemActor = "system"

// sessionRepo defines the coded-session repository interface needed by the
// service.
type sessionRepo interface {
	Save(ctx context.Context, s *domain.CodedSession, actorID string) (*domain.CodedSession, error)
	LatestBySubject(ctx context.Context, subject string) (*domain.CodedSession, error)
	HardDelete(ctx context.Context, id string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sender delivers a plaintext code over a channel. Implementations live
// outside this core; only the success/failure outcome is inspected.
type Sender interface {
	Send(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) error
}

// Service implements coded-session operations.
type Service struct {
	log      *slog.Logger
	sessions sessionRepo
	sender   Sender
	cfg      config.OTPConfig

	// now is swappable in tests; expiry and cooldown windows are
	// wall-clock based.
	now func() time.Time
}

// NewService creates a coded-session service.
func NewService(logger *slog.Logger, sessions sessionRepo, sender Sender, cfg config.OTPConfig) *Service {
	return &Service{
		log:      logger.With("service", "otp"),
		sessions: sessions,
		sender:   sender,
		cfg:      cfg,
		now:      time.Now,
	}
}

// actorFrom resolves audit attribution: an actor carried on the request
// context wins, otherwise the system actor.
func actorFrom(ctx context.Context) string {
	if id, ok := ctxutil.ActorIDFromCtx(ctx); ok {
		return id
	}
	return systemActor
}

// normalizeSubject canonicalizes the subject for its channel so repeated
// sends and verifications address the same session.
func normalizeSubject(channel domain.CodedSessionChannel, subject string) string {
	if channel == domain.ChannelEmail {
		return domain.NormalizeEmail(subject)
	}
	return domain.NormalizePhone(subject)
}

// maskSubject hides most of a phone number or email in log output.
func maskSubject(subject string) string {
	if len(subject) <= 3 {
		return "***"
	}
	return "***" + subject[len(subject)-3:]
}
