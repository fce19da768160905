package otp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avoropay/accounts-core/internal/config"
	"github.com/avoropay/accounts-core/internal/domain"
)

// ---------------------------------------------------------------------------
// Manual mocks (moq-style with func fields)
// ---------------------------------------------------------------------------

type mockSessionRepo struct {
	SaveFunc            func(ctx context.Context, s *domain.CodedSession, actorID string) (*domain.CodedSession, error)
	LatestBySubjectFunc func(ctx context.Context, subject string) (*domain.CodedSession, error)
	HardDeleteFunc      func(ctx context.Context, id string) (bool, error)
	DeleteExpiredFunc   func(ctx context.Context, now time.Time) (int64, error)

	deleted []string
}

func (m *mockSessionRepo) Save(ctx context.Context, s *domain.CodedSession, actorID string) (*domain.CodedSession, error) {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, s, actorID)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.AuditFields().InitAudit(actorID, time.Now())
	return s, nil
}

func (m *mockSessionRepo) LatestBySubject(ctx context.Context, subject string) (*domain.CodedSession, error) {
	if m.LatestBySubjectFunc != nil {
		return m.LatestBySubjectFunc(ctx, subject)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSessionRepo) HardDelete(ctx context.Context, id string) (bool, error) {
	m.deleted = append(m.deleted, id)
	if m.HardDeleteFunc != nil {
		return m.HardDeleteFunc(ctx, id)
	}
	return true, nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx, now)
	}
	return 0, nil
}

type mockSender struct {
	SendFunc func(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) error

	sent []string
}

func (m *mockSender) Send(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) error {
	m.sent = append(m.sent, code)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, channel, subject, code)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func testConfig() config.OTPConfig {
	return config.OTPConfig{
		CodeLength:     6,
		TTL:            5 * time.Minute,
		MaxAttempts:    5,
		ResendCooldown: 60 * time.Second,
	}
}

func newTestService(sessions *mockSessionRepo, sender *mockSender) *Service {
	if sessions == nil {
		sessions = &mockSessionRepo{}
	}
	if sender == nil {
		sender = &mockSender{}
	}
	return NewService(slog.Default(), sessions, sender, testConfig())
}

func digest(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func liveSession(subject, code string) *domain.CodedSession {
	s := &domain.CodedSession{
		ID:                   uuid.NewString(),
		Subject:              subject,
		Channel:              domain.ChannelEmail,
		Purpose:              domain.PurposeRegistration,
		CodeHash:             digest(code),
		MaxAttempts:          5,
		OwnerID:              uuid.NewString(),
		ExpiresAtEpochSecond: time.Now().Add(5 * time.Minute).Unix(),
	}
	s.AuditFields().InitAudit("system", time.Now().Add(-2*time.Minute))
	return s
}

// ---------------------------------------------------------------------------
// Send tests
// ---------------------------------------------------------------------------

func TestSendRegistrationCode_Success(t *testing.T) {
	t.Parallel()

	var saved *domain.CodedSession
	sessions := &mockSessionRepo{
		SaveFunc: func(ctx context.Context, s *domain.CodedSession, actorID string) (*domain.CodedSession, error) {
			s.ID = uuid.NewString()
			s.AuditFields().InitAudit(actorID, time.Now())
			saved = s
			return s, nil
		},
	}
	sender := &mockSender{}
	svc := newTestService(sessions, sender)

	ownerID := uuid.NewString()
	session, err := svc.SendRegistrationCode(context.Background(), domain.ChannelEmail, "User@Example.com", ownerID)

	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "user@example.com", saved.Subject)
	assert.Equal(t, domain.PurposeRegistration, saved.Purpose)
	assert.Equal(t, ownerID, saved.OwnerID)
	assert.Equal(t, 5, saved.MaxAttempts)
	assert.Equal(t, session.ID, saved.ID)

	// The plaintext code went to the sender; only its digest was stored.
	require.Len(t, sender.sent, 1)
	code := sender.sent[0]
	assert.Len(t, code, 6)
	assert.Equal(t, digest(code), saved.CodeHash)
	assert.NotEqual(t, code, saved.CodeHash)
}

func TestSend_CooldownRejectsResend(t *testing.T) {
	t.Parallel()

	subject := "cooldown@example.com"
	recent := liveSession(subject, "123456")
	recent.CreatedAt = time.Now().Add(-10 * time.Second)

	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			return recent, nil
		},
	}
	sender := &mockSender{}
	svc := newTestService(sessions, sender)

	_, err := svc.SendAuthenticationCode(context.Background(), domain.ChannelEmail, subject)

	require.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Empty(t, sender.sent)
}

func TestSend_CooldownElapsedAllowsResend(t *testing.T) {
	t.Parallel()

	subject := "elapsed@example.com"
	old := liveSession(subject, "123456")
	old.CreatedAt = time.Now().Add(-2 * time.Minute)

	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			return old, nil
		},
	}
	sender := &mockSender{}
	svc := newTestService(sessions, sender)

	_, err := svc.SendAuthenticationCode(context.Background(), domain.ChannelEmail, subject)

	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestSend_DeliveryFailureDiscardsSession(t *testing.T) {
	t.Parallel()

	sessions := &mockSessionRepo{}
	sender := &mockSender{
		SendFunc: func(ctx context.Context, channel domain.CodedSessionChannel, subject, code string) error {
			return errors.New("smtp down")
		},
	}
	svc := newTestService(sessions, sender)

	_, err := svc.SendAuthenticationCode(context.Background(), domain.ChannelEmail, "fail@example.com")

	require.Error(t, err)
	assert.Len(t, sessions.deleted, 1, "the undeliverable session must be removed")
}

func TestSend_EmptySubjectRejected(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)

	_, err := svc.SendAuthenticationCode(context.Background(), domain.ChannelEmail, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)
}

// ---------------------------------------------------------------------------
// Verify tests
// ---------------------------------------------------------------------------

func TestVerify_Success(t *testing.T) {
	t.Parallel()

	subject := "ok@example.com"
	session := liveSession(subject, "424242")
	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			assert.Equal(t, subject, s)
			return session, nil
		},
	}
	svc := newTestService(sessions, nil)

	got, err := svc.Verify(context.Background(), domain.ChannelEmail, subject, "424242")

	require.NoError(t, err)
	assert.Equal(t, session.OwnerID, got.OwnerID)
	assert.True(t, got.Verified)
	// Single use: verification consumes the session.
	assert.Equal(t, []string{session.ID}, sessions.deleted)
}

func TestVerify_MismatchCountsAttempt(t *testing.T) {
	t.Parallel()

	subject := "wrong@example.com"
	session := liveSession(subject, "424242")

	var persisted *domain.CodedSession
	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			return session, nil
		},
		SaveFunc: func(ctx context.Context, s *domain.CodedSession, actorID string) (*domain.CodedSession, error) {
			persisted = s
			return s, nil
		},
	}
	svc := newTestService(sessions, nil)

	_, err := svc.Verify(context.Background(), domain.ChannelEmail, subject, "000000")

	require.ErrorIs(t, err, domain.ErrCodeMismatch)
	require.NotNil(t, persisted, "the failed attempt must be persisted")
	assert.Equal(t, 1, persisted.Attempts)
	assert.Empty(t, sessions.deleted, "a mismatch must not consume the session")
}

func TestVerify_CeilingCheckedBeforeCompare(t *testing.T) {
	t.Parallel()

	subject := "locked@example.com"
	session := liveSession(subject, "424242")
	session.Attempts = session.MaxAttempts

	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			return session, nil
		},
	}
	svc := newTestService(sessions, nil)

	// Even the correct code must not pass once the ceiling is reached.
	_, err := svc.Verify(context.Background(), domain.ChannelEmail, subject, "424242")

	require.ErrorIs(t, err, domain.ErrAttemptsExceeded)
	assert.Equal(t, []string{session.ID}, sessions.deleted)
}

func TestVerify_ExpiredSessionDiscarded(t *testing.T) {
	t.Parallel()

	subject := "expired@example.com"
	session := liveSession(subject, "424242")
	session.ExpiresAtEpochSecond = time.Now().Add(-time.Minute).Unix()

	sessions := &mockSessionRepo{
		LatestBySubjectFunc: func(ctx context.Context, s string) (*domain.CodedSession, error) {
			return session, nil
		},
	}
	svc := newTestService(sessions, nil)

	_, err := svc.Verify(context.Background(), domain.ChannelEmail, subject, "424242")

	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, []string{session.ID}, sessions.deleted)
}

func TestVerify_NoSession(t *testing.T) {
	t.Parallel()

	svc := newTestService(nil, nil)

	_, err := svc.Verify(context.Background(), domain.ChannelEmail, "nobody@example.com", "424242")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

// ---------------------------------------------------------------------------
// Cleanup and code generation tests
// ---------------------------------------------------------------------------

func TestCleanupExpiredSessions(t *testing.T) {
	t.Parallel()

	sessions := &mockSessionRepo{
		DeleteExpiredFunc: func(ctx context.Context, now time.Time) (int64, error) {
			return 7, nil
		},
	}
	svc := newTestService(sessions, nil)

	deleted, err := svc.CleanupExpiredSessions(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}

func TestGenerateCode(t *testing.T) {
	t.Parallel()

	for i := 0; i < 32; i++ {
		code, err := generateCode(6)
		require.NoError(t, err)
		require.Len(t, code, 6)
		for _, c := range code {
			assert.True(t, c >= '0' && c <= '9', "code %q contains non-digit %q", code, c)
		}
	}
}
