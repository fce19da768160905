package otp

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/avoropay/accounts-core/internal/domain"
)

// Verify checks a submitted code against the latest session for the subject.
// On success the session is consumed and returned so the caller can act on
// its purpose and owner link. Failed attempts are counted; the attempts
// ceiling is enforced before the code is even compared.
func (s *Service) Verify(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) (*domain.CodedSession, error) {
	subject = normalizeSubject(channel, subject)

	session, err := s.sessions.LatestBySubject(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	now := s.now()
	if session.Expired(now) {
		s.discard(ctx, session.ID, "expired")
		return nil, fmt.Errorf("session expired: %w", domain.ErrNotFound)
	}

	if session.AttemptsExhausted() {
		s.discard(ctx, session.ID, "attempts exhausted")
		return nil, domain.ErrAttemptsExceeded
	}

	session.RecordAttempt()

	if subtle.ConstantTimeCompare([]byte(session.CodeHash), []byte(hashCode(code))) != 1 {
		if _, err := s.sessions.Save(ctx, session, actorFrom(ctx)); err != nil {
			return nil, fmt.Errorf("record failed attempt: %w", err)
		}
		s.log.Info("code mismatch",
			"session_id", session.ID,
			"subject", maskSubject(subject),
			"attempts", session.Attempts,
			"max_attempts", session.MaxAttempts)
		return nil, domain.ErrCodeMismatch
	}

	session.Verified = true
	// Single use: the session is gone the moment it verifies.
	s.discard(ctx, session.ID, "verified")

	s.log.Info("code verified",
		"session_id", session.ID,
		"subject", maskSubject(subject),
		"purpose", session.Purpose)

	return session, nil
}

// CleanupExpiredSessions removes every session past its expiry and reports
// how many were deleted.
func (s *Service) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	deleted, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	if deleted > 0 {
		s.log.Info("expired sessions removed", "count", deleted)
	}
	return deleted, nil
}

// discard removes a finished session. Deletion is best effort: the session
// would be swept later anyway, so failure is only logged.
func (s *Service) discard(ctx context.Context, id, reason string) {
	if _, err := s.sessions.HardDelete(ctx, id); err != nil {
		s.log.Warn("failed to delete session", "session_id", id, "reason", reason, "error", err)
	}
}
