package domain

import "time"

// ReservationStatus is the lifecycle state of an email reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
)

// Reservation is a claim record keyed by a normalized email address. The
// document ID equals the email, so the store's create-if-absent semantics
// at that identity are the entire uniqueness guarantee, with no extra locking.
//
// A PENDING reservation holds the email until it expires or the signup
// completes; CONFIRMED reservations are permanent and never swept.
type Reservation struct {
	Email    string            `json:"email"`
	OwnerID  string            `json:"ownerId"`
	FlowType string            `json:"flowType"`

	// SessionID correlates the reservation with the signup session that
	// created it.
	SessionID string            `json:"sessionId"`
	Status    ReservationStatus `json:"status"`

	// ExpiresAtEpochSecond is stored as epoch seconds so the expiry sweep
	// can compare it with a numeric range predicate.
	ExpiresAtEpochSecond int64 `json:"expiresAtEpochSecond"`

	Audit
}

// DocumentID implements docstore.Entity. The identity is the email itself.
func (r *Reservation) DocumentID() string { return r.Email }

// SetDocumentID implements docstore.Entity.
func (r *Reservation) SetDocumentID(id string) { r.Email = id }

// AuditFields implements docstore.Entity.
func (r *Reservation) AuditFields() *Audit { return &r.Audit }

// Validate checks invariants required before any persist.
func (r *Reservation) Validate() error {
	var errs []FieldError
	if r.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "must not be empty"})
	}
	if r.Email != NormalizeEmail(r.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "must be normalized"})
	}
	if r.OwnerID == "" {
		errs = append(errs, FieldError{Field: "owner_id", Message: "must not be empty"})
	}
	if r.Status != ReservationPending && r.Status != ReservationConfirmed {
		errs = append(errs, FieldError{Field: "status", Message: "unknown status"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Expired reports whether a PENDING reservation has passed its expiry.
// CONFIRMED reservations never expire.
func (r *Reservation) Expired(now time.Time) bool {
	if r.Status == ReservationConfirmed {
		return false
	}
	return now.Unix() >= r.ExpiresAtEpochSecond
}

// Holds reports whether the reservation still blocks the email: it is
// CONFIRMED, or PENDING and not yet expired.
func (r *Reservation) Holds(now time.Time) bool {
	return r.Status == ReservationConfirmed || !r.Expired(now)
}

// Confirm transitions the reservation to CONFIRMED. Idempotent.
func (r *Reservation) Confirm() {
	r.Status = ReservationConfirmed
}
