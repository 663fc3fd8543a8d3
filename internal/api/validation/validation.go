package validation

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// EmailRegex validates email format
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// MinPasswordLength mirrors the signup contract: shorter passwords are
// rejected and no account is created.
const MinPasswordLength = 5

// IsValidEmail checks if the string is a valid email format
func IsValidEmail(email string) bool {
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// IsValidPassword checks the password against the length contract.
func IsValidPassword(password string) (bool, string) {
	if len(password) < MinPasswordLength {
		return false, "Password must be at least 5 characters"
	}
	if len(password) > 128 {
		return false, "Password must be at most 128 characters"
	}
	return true, ""
}

// ParseUUIDList parses a comma-separated id list, as used by the
// tags/ingredients query filters. Empty segments are skipped; any malformed
// id fails the whole list.
func ParseUUIDList(s string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
