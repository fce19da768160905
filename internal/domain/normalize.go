package domain

import "strings"

// NormalizeEmail prepares an email address for storage and comparison:
// trims surrounding whitespace and lower-cases the whole address.
//
// The normalized form is used as the reservation document identity, so it
// must be deterministic: two spellings of the same address have to collide
// at the store level for the uniqueness guarantee to hold.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips spaces, dashes, and parentheses so the same number
// always maps to the same coded-session subject.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range strings.TrimSpace(phone) {
		switch r {
		case ' ', '-', '(', ')':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
