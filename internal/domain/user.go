package domain

// User represents an account record. Its document ID is pre-assigned during
// signup (it equals the owner ID generated at email reservation time), so
// user creation always goes through the force-create path.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	SignupFlow  string `json:"signupFlow"`

	Audit
}

// DocumentID implements docstore.Entity.
func (u *User) DocumentID() string { return u.ID }

// SetDocumentID implements docstore.Entity.
func (u *User) SetDocumentID(id string) { u.ID = id }

// AuditFields implements docstore.Entity.
func (u *User) AuditFields() *Audit { return &u.Audit }

// Validate checks invariants required before any persist.
func (u *User) Validate() error {
	var errs []FieldError
	if u.Email == "" {
		errs = append(errs, FieldError{Field: "email", Message: "must not be empty"})
	}
	if u.Email != NormalizeEmail(u.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "must be normalized"})
	}
	if len(errs) > 0 {
		return NewValidationErrors(errs)
	}
	return nil
}
