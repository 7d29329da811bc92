package password

import (
	"errors"
	"regexp"
	"unicode"
)

var (
	ErrTooShort         = errors.New("password shorter than required minimum")
	ErrTooFewSymbols    = errors.New("password needs more non-alphanumeric characters")
	ErrStrengthMismatch = errors.New("password does not match the strength pattern")
)

// Policy captures the configured complexity requirements. The zero value
// accepts anything.
type Policy struct {
	MinLength          int
	MinNonAlphanumeric int
	// StrengthPattern, when non-nil, must match the whole candidate.
	StrengthPattern *regexp.Regexp
}

// Validate returns the first requirement the candidate misses, nil when it
// passes all of them.
func (p Policy) Validate(s string) error {
	runes := []rune(s)
	if len(runes) < p.MinLength {
		return ErrTooShort
	}
	if p.MinNonAlphanumeric > 0 {
		symbols := 0
		for _, r := range runes {
			if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
				symbols++
			}
		}
		if symbols < p.MinNonAlphanumeric {
			return ErrTooFewSymbols
		}
	}
	if p.StrengthPattern != nil && !p.StrengthPattern.MatchString(s) {
		return ErrStrengthMismatch
	}
	return nil
}
