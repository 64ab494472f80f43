// Package phone canonicalizes raw phone strings into comparable keys.
// Two raw strings that normalize identically refer to the same vendor.
package phone

import (
	"fmt"
	"strings"

	"github.com/tolmol-io/tolmol/pkg/protocol"
)

// minDigits is the minimum digit count a number must carry on its own,
// before any default country code is assumed. An 8-digit fragment must not
// become dialable by prepending the country code.
const minDigits = 10

// DefaultCountryCode is assumed for numbers written in national form.
const DefaultCountryCode = "91"

// Normalizer resolves country-code and trunk-prefix variants of a phone
// number to one canonical +<countrycode><subscriber> form.
type Normalizer struct {
	CountryCode string // without the leading +; defaults to DefaultCountryCode
}

func (n Normalizer) countryCode() string {
	if n.CountryCode != "" {
		return n.CountryCode
	}
	return DefaultCountryCode
}

// Normalize strips whitespace, hyphens, dots and parentheses and resolves
// the number to canonical form. It fails with ErrInvalidPhoneFormat when
// non-digit characters remain or too few digits are left.
func (n Normalizer) Normalize(raw string) (string, error) {
	s := stripSeparators(raw)
	if s == "" {
		return "", fmt.Errorf("phone: empty input: %w", protocol.ErrInvalidPhoneFormat)
	}

	var digits string
	national := false
	switch {
	case strings.HasPrefix(s, "+"):
		digits = s[1:]
	case strings.HasPrefix(s, "00"):
		// International call prefix variant of +.
		digits = s[2:]
	case strings.HasPrefix(s, "0"):
		// National trunk prefix.
		digits = s[1:]
		national = true
	default:
		digits = s
		national = true
	}

	if !allDigits(digits) {
		return "", fmt.Errorf("phone: %q contains non-digit characters: %w", raw, protocol.ErrInvalidPhoneFormat)
	}
	if len(digits) < minDigits {
		return "", fmt.Errorf("phone: %q has only %d digits: %w", raw, len(digits), protocol.ErrInvalidPhoneFormat)
	}
	if national {
		digits = n.countryCode() + digits
	}
	return "+" + digits, nil
}

func stripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '.', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
