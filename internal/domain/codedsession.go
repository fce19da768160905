package domain

import "time"

// CodedSessionChannel is the delivery channel for a one-time code.
type CodedSessionChannel string

const (
	ChannelSMS   CodedSessionChannel = "sms"
	ChannelEmail CodedSessionChannel = "email"
)

// CodedSessionPurpose tags what the code proves.
type CodedSessionPurpose string

const (
	PurposeRegistration   CodedSessionPurpose = "registration"
	PurposeAuthentication CodedSessionPurpose = "authentication"
)

// CodedSession is a short-lived one-time-code record. Only a one-way hash
// of the code is ever stored; verification hashes the supplied code and
// compares hashes. A session is single-use: the first successful
// verification deletes it.
type CodedSession struct {
	ID       string              `json:"id"`
	Subject  string              `json:"subject"`
	Channel  CodedSessionChannel `json:"channel"`
	Purpose  CodedSessionPurpose `json:"purpose"`
	CodeHash string              `json:"codeHash"`

	Attempts    int  `json:"attempts"`
	MaxAttempts int  `json:"maxAttempts"`
	Verified    bool `json:"verified"`

	// OwnerID links the session to a pre-generated account identifier
	// during registration flows. Empty for plain authentication codes.
	OwnerID string `json:"ownerId,omitempty"`

	ExpiresAtEpochSecond int64 `json:"expiresAtEpochSecond"`

	Audit
}

// DocumentID implements docstore.Entity.
func (s *CodedSession) DocumentID() string { return s.ID }

// SetDocumentID implements docstore.Entity.
func (s *CodedSession) SetDocumentID(id string) { s.ID = id }

// AuditFields implements docstore.Entity.
func (s *CodedSession) AuditFields() *Audit { return &s.Audit }

// Validate checks invariants required before any persist.
func (s *CodedSession) Validate() error {
	var errs []FieldError
	if s.Subject == "" {
		errs = append(errs, FieldError{Field: "subject", Message: "must not be empty"})
	}
	if s.CodeHash == "" {
		errs = append(errs, FieldError{Field: "code_hash", Message: "must not be empty"})
	}
	if s.MaxAttempts <= 0 {
		errs = append(errs, FieldError{Field: "max_attempts", Message: "must be positive"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}

// Expired reports whether the session has passed its time-to-live.
func (s *CodedSession) Expired(now time.Time) bool {
	return now.Unix() >= s.ExpiresAtEpochSecond
}

// AttemptsExhausted reports whether the verification attempt ceiling has
// been reached. Once true the session is permanently invalid.
func (s *CodedSession) AttemptsExhausted() bool {
	return s.Attempts >= s.MaxAttempts
}

// RecordAttempt increments the monotonically increasing attempt counter.
func (s *CodedSession) RecordAttempt() {
	s.Attempts++
}
