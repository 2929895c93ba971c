package repository

import (
	"strings"

	"board/internal/apperr"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

type SortMode string

const (
	SortLatest SortMode = "latest"
	SortOldest SortMode = "oldest"
	SortViews  SortMode = "views"
	SortLikes  SortMode = "likes"
)

// Page is the 1-based page request shared by all paginated queries.
type Page struct {
	Page  int
	Limit int
}

type PostQuery struct {
	Page
	// Search matches title or content, literally and case-insensitively.
	// Case folding is Unicode lowercase on every backend except Postgres,
	// which folds per the database's LC_CTYPE.
	Search string
	UserID int64
	Sort   SortMode
}

type CommentQuery struct {
	Page
	PostID int64
	UserID int64
	Sort   SortMode
}

type UserQuery struct {
	Page
	// Search matches nickname or email. Deleted users are never listed.
	Search string
}

// Validate checks page >= 1 and limit in [1, MaxLimit].
func (p Page) Validate() error {
	if p.Page < 1 {
		return apperr.Validation("page", "must be at least 1")
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return apperr.Validation("limit", "must be between 1 and 100")
	}
	return nil
}

// ParseSort maps a request value to one of allowed; empty means the first.
func ParseSort(raw string, allowed ...SortMode) (SortMode, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" && len(allowed) > 0 {
		return allowed[0], nil
	}
	for _, m := range allowed {
		if string(m) == raw {
			return m, nil
		}
	}
	return "", apperr.Validation("sort", "unsupported sort mode")
}

var PostSorts = []SortMode{SortLatest, SortViews, SortLikes}

var CommentSorts = []SortMode{SortOldest, SortLatest}

// TotalPages is ceil(total/limit), zero only when total is zero.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// EscapeLike escapes the LIKE metacharacters in term for use with ESCAPE '\'.
func EscapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
