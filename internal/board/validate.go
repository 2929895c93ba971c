package board

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"board/internal/apperr"
)

const (
	maxEmail        = 254
	minNickname     = 2
	maxNickname     = 20
	maxTitle        = 100
	maxPostContent  = 10000
	maxComment      = 500
	maxProfileImage = 512
)

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func validateEmail(email string) error {
	if email == "" {
		return apperr.Validation("email", "is required")
	}
	if len(email) > maxEmail {
		return apperr.Validation("email", "is too long")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.Validation("email", "is not a valid address")
	}
	_, domain, _ := strings.Cut(email, "@")
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return apperr.Validation("email", "is not a valid address")
	}
	return nil
}

func validateNickname(nick string) error {
	n := utf8.RuneCountInString(nick)
	if n < minNickname || n > maxNickname {
		return apperr.Validation("nickname", fmt.Sprintf("must be %d to %d characters", minNickname, maxNickname))
	}
	if strings.IndexFunc(nick, unicode.IsSpace) >= 0 {
		return apperr.Validation("nickname", "must not contain spaces")
	}
	return nil
}

// validateText checks a trimmed free-text field against [1, max] runes.
func validateText(field, value string, max int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return apperr.Validation(field, "is required")
	}
	if n > max {
		return apperr.Validation(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return nil
}

func validateProfileImage(img *string) error {
	if img == nil || *img == "" {
		return nil
	}
	if len(*img) > maxProfileImage {
		return apperr.Validation("profile_image", "is too long")
	}
	if strings.ContainsAny(*img, " \t\r\n") {
		return apperr.Validation("profile_image", "must not contain whitespace")
	}
	return nil
}
