package domain

import (
	"strings"
	"time"
)

// Audit is the attribution/version/soft-delete envelope embedded in every
// persisted entity. A record without an initialized envelope must never
// reach the store; repositories enforce this before serialization.
//
// Version increments on every mutation and is used as the expected value
// for compare-and-swap updates, so concurrent lost updates surface as
// ErrConflict instead of silently overwriting.
type Audit struct {
	CreatedBy  string    `json:"createdBy"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedBy string    `json:"modifiedBy"`
	ModifiedAt time.Time `json:"modifiedAt"`
	Version    int64     `json:"version"`
	IsActive   bool      `json:"isActive"`
}

// Initialized reports whether the envelope has been set up by InitAudit.
func (a *Audit) Initialized() bool {
	return a.CreatedBy != "" && !a.CreatedAt.IsZero() && a.Version >= 1
}

// InitAudit initializes the envelope on first persist. It must be called
// exactly once per entity lifetime.
func (a *Audit) InitAudit(actorID string, now time.Time) {
	a.CreatedBy = actorID
	a.CreatedAt = now
	a.ModifiedBy = actorID
	a.ModifiedAt = now
	a.Version = 1
	a.IsActive = true
}

// TouchAudit stamps modification attribution and bumps the version.
func (a *Audit) TouchAudit(actorID string, now time.Time) {
	a.ModifiedBy = actorID
	a.ModifiedAt = now
	a.Version++
}

// MarkDeleted flips the record into the soft-deleted state.
func (a *Audit) MarkDeleted(actorID string, now time.Time) {
	a.IsActive = false
	a.TouchAudit(actorID, now)
}

// MarkRestored reverses a soft delete.
func (a *Audit) MarkRestored(actorID string, now time.Time) {
	a.IsActive = true
	a.TouchAudit(actorID, now)
}

// SoftDeleted reports whether the record is currently soft-deleted.
func (a *Audit) SoftDeleted() bool {
	return a.Initialized() && !a.IsActive
}

// ValidateActorID checks the actor attribution argument common to all
// mutating repository calls.
func ValidateActorID(actorID string) error {
	if strings.TrimSpace(actorID) == "" {
		return NewValidationError("actor_id", "must not be blank")
	}
	return nil
}
