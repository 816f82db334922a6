package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsDuplicateKey reports whether err is a unique-constraint violation.
// The services rely on this as the last line of defence: two concurrent
// confirmations for the same username can both pass the read-check, only
// the unique index decides the race.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") ||
		strings.Contains(s, "unique constraint") ||
		strings.Contains(s, "unique failed") // sqlite wording in tests
}

// DuplicateKeyColumn guesses which unique column a duplicate-key error
// refers to. Returns "email", "username" or "".
func DuplicateKeyColumn(err error) string {
	if err == nil {
		return ""
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "email") {
		return "email"
	}
	if strings.Contains(s, "username") {
		return "username"
	}
	return ""
}
