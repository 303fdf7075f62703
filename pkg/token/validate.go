package token

import (
	"fmt"
	"regexp"
)

var (
	tokenPattern = regexp.MustCompile(`^TKN_(STU|TCH|PAR|SCH|CLS|ENR|ADM)_([A-Z0-9]{8})$`)
	emailPattern = regexp.MustCompile(`^TKN_(STU|TCH|PAR|SCH|CLS|ENR|ADM)_[a-z0-9]{8}@relay\.[A-Za-z0-9.-]+$`)
	phonePattern = regexp.MustCompile(`^TKN_555_[0-9]{3}_[0-9]{4}$`)
)

// IsValid reports whether s is a well-formed vault token of any type.
func IsValid(s string) bool {
	return tokenPattern.MatchString(s)
}

// IsValidTyped reports whether s is a well-formed vault token of type t.
func IsValidTyped(s string, t Type) bool {
	m := tokenPattern.FindStringSubmatch(s)
	return m != nil && Type(m[1]) == t
}

// Parse extracts the type from a vault token.
func Parse(s string) (Type, error) {
	m := tokenPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("malformed token %q", s)
	}
	return Type(m[1]), nil
}

func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func IsValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
