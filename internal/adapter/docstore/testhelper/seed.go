package testhelper

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avoropay/accounts-core/internal/domain"
)

// uniqueSuffix returns a short unique string for generating non-conflicting test data.
func uniqueSuffix() string {
	return uuid.New().String()[:8]
}

// UniqueEmail returns a normalized email address that will not collide with
// other tests running against the shared database.
func UniqueEmail(prefix string) string {
	return domain.NormalizeEmail(prefix + "-" + uniqueSuffix() + "@example.com")
}

// insertDoc writes a raw document row, bypassing the repository layer so a
// test can arrange exact stored state.
func insertDoc(t *testing.T, pool *pgxpool.Pool, collection, id string, entity any) {
	t.Helper()

	doc, err := json.Marshal(entity)
	if err != nil {
		t.Fatalf("testhelper: marshal %s %q: %v", collection, id, err)
	}
	_, err = pool.Exec(context.Background(),
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)`,
		collection, id, doc,
	)
	if err != nil {
		t.Fatalf("testhelper: insert %s %q: %v", collection, id, err)
	}
}

// SeedUser inserts an active user document with a fresh envelope and returns it.
func SeedUser(t *testing.T, pool *pgxpool.Pool) *domain.User {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &domain.User{
		ID:          uuid.NewString(),
		Email:       UniqueEmail("user"),
		DisplayName: "Test User " + uniqueSuffix(),
		SignupFlow:  "test",
	}
	user.AuditFields().InitAudit("testhelper", now)

	insertDoc(t, pool, "users", user.ID, user)
	return user
}

// SeedReservation inserts a PENDING reservation for a fresh email, expiring
// ttl from now (a negative ttl produces an already-expired reservation).
func SeedReservation(t *testing.T, pool *pgxpool.Pool, ttl time.Duration) *domain.Reservation {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	res := &domain.Reservation{
		Email:                UniqueEmail("reserve"),
		OwnerID:              uuid.NewString(),
		FlowType:             "test",
		SessionID:            uuid.NewString(),
		Status:               domain.ReservationPending,
		ExpiresAtEpochSecond: now.Add(ttl).Unix(),
	}
	res.AuditFields().InitAudit("testhelper", now)

	insertDoc(t, pool, "userEmails", res.Email, res)
	return res
}

// SeedCodedSession inserts a coded session for the subject holding the
// SHA-256 digest in codeHash, expiring ttl from now.
func SeedCodedSession(t *testing.T, pool *pgxpool.Pool, subject, codeHash string, ttl time.Duration) *domain.CodedSession {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	session := &domain.CodedSession{
		ID:                   uuid.NewString(),
		Subject:              subject,
		Channel:              domain.ChannelEmail,
		Purpose:              domain.PurposeRegistration,
		CodeHash:             codeHash,
		MaxAttempts:          5,
		OwnerID:              uuid.NewString(),
		ExpiresAtEpochSecond: now.Add(ttl).Unix(),
	}
	session.AuditFields().InitAudit("testhelper", now)

	insertDoc(t, pool, "codedSessions", session.ID, session)
	return session
}
