package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"board/internal/apperr"
)

// bcrypt only looks at the first 72 bytes.
const MaxPasswordBytes = 72

type Policy struct {
	MinLength     int // runes
	MaxLength     int // bytes; zero means MaxPasswordBytes
	RequireLetter bool
	RequireDigit  bool
}

var DefaultPolicy = Policy{MinLength: 8, MaxLength: MaxPasswordBytes, RequireLetter: true, RequireDigit: true}

// Check lists every rule s breaks, in a fixed order.
func (p Policy) Check(s string) (reasons []string) {
	maxLen := p.MaxLength
	if maxLen <= 0 || maxLen > MaxPasswordBytes {
		maxLen = MaxPasswordBytes
	}
	if utf8.RuneCountInString(s) < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if len(s) > maxLen {
		reasons = append(reasons, "too_long")
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if p.RequireLetter && !letter {
		reasons = append(reasons, "missing_letter")
	}
	if p.RequireDigit && !digit {
		reasons = append(reasons, "missing_digit")
	}
	return reasons
}

// Validate returns a ValidationError for the first broken rule.
func (p Policy) Validate(s string) error {
	reasons := p.Check(s)
	if len(reasons) == 0 {
		return nil
	}
	var issue string
	switch reasons[0] {
	case "too_short":
		issue = fmt.Sprintf("must be at least %d characters", p.MinLength)
	case "too_long":
		maxLen := p.MaxLength
		if maxLen <= 0 || maxLen > MaxPasswordBytes {
			maxLen = MaxPasswordBytes
		}
		issue = fmt.Sprintf("must be at most %d bytes", maxLen)
	case "missing_letter":
		issue = "must contain a letter"
	default:
		issue = "must contain a digit"
	}
	return apperr.Validation("password", issue)
}
