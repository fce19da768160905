package otp

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/avoropay/accounts-core/internal/domain"
)

// SendRegistrationCode issues a signup verification code for the subject. The
// ownerID links the session to the pre-reserved account identifier so that
// completing registration can reuse it.
func (s *Service) SendRegistrationCode(ctx context.Context, channel domain.CodedSessionChannel, subject, ownerID string) (*domain.CodedSession, error) {
	return s.send(ctx, channel, domain.PurposeRegistration, subject, ownerID)
}

// SendAuthenticationCode issues a login verification code for the subject.
func (s *Service) SendAuthenticationCode(ctx context.Context, channel domain.CodedSessionChannel, subject string) (*domain.CodedSession, error) {
	return s.send(ctx, channel, domain.PurposeAuthentication, subject, "")
}

func (s *Service) send(ctx context.Context, channel domain.CodedSessionChannel, purpose domain.CodedSessionPurpose, subject, ownerID string) (*domain.CodedSession, error) {
	subject = normalizeSubject(channel, subject)
	if subject == "" {
		return nil, domain.NewValidationError("subject", "must not be empty")
	}

	if err := s.checkCooldown(ctx, subject); err != nil {
		return nil, err
	}

	code, err := generateCode(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.now()
	session := &domain.CodedSession{
		Subject:              subject,
		Channel:              channel,
		Purpose:              purpose,
		CodeHash:             hashCode(code),
		MaxAttempts:          s.cfg.MaxAttempts,
		OwnerID:              ownerID,
		ExpiresAtEpochSecond: now.Add(s.cfg.TTL).Unix(),
	}

	session, err = s.sessions.Save(ctx, session, actorFrom(ctx))
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	if err := s.sender.Send(ctx, channel, subject, code); err != nil {
		// The code never reached the subject, so the session is useless;
		// remove it so the cooldown does not penalize a retry.
		if _, delErr := s.sessions.HardDelete(ctx, session.ID); delErr != nil {
			s.log.Warn("failed to delete session after send failure",
				"session_id", session.ID, "error", delErr)
		}
		return nil, fmt.Errorf("send code to %s: %w", maskSubject(subject), err)
	}

	s.log.Info("verification code sent",
		"session_id", session.ID,
		"channel", channel,
		"purpose", purpose,
		"subject", maskSubject(subject))

	return session, nil
}

// checkCooldown rejects a send when the latest session for the subject was
// created inside the resend window.
func (s *Service) checkCooldown(ctx context.Context, subject string) error {
	latest, err := s.sessions.LatestBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("check cooldown: %w", err)
	}

	elapsed := s.now().Sub(latest.CreatedAt)
	if elapsed < s.cfg.ResendCooldown {
		s.log.Info("resend rejected by cooldown",
			"subject", maskSubject(subject),
			"retry_in", (s.cfg.ResendCooldown - elapsed).Round(time.Second))
		return fmt.Errorf("resend available in %s: %w",
			(s.cfg.ResendCooldown - elapsed).Round(time.Second), domain.ErrRateLimited)
	}

	return nil
}

// generateCode returns a fixed-length numeric code drawn from crypto/rand.
// Each digit is sampled independently so leading zeroes are as likely as any
// other digit.
func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

// hashCode returns the hex-encoded SHA-256 digest of a plaintext code. Only
// the digest is ever persisted.
func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
