package storage

import (
	"slices"
	"strings"
)

func Filter[T any](docs []T, pred func(T) bool) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		if pred == nil || pred(d) {
			out = append(out, d)
		}
	}
	return out
}

// SortBy sorts in place with cmp; equal elements keep their relative order.
func SortBy[T any](docs []T, cmp func(a, b T) int) {
	slices.SortStableFunc(docs, cmp)
}

// Paginate returns the 1-based page of size limit. Out of range pages are empty.
func Paginate[T any](docs []T, page, limit int) []T {
	if page < 1 || limit < 1 {
		return []T{}
	}
	start := (page - 1) * limit
	if start >= len(docs) {
		return []T{}
	}
	end := min(start+limit, len(docs))
	return slices.Clone(docs[start:end])
}

// ContainsFold is a case-insensitive literal substring match. The needle is
// never interpreted as a pattern.
func ContainsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// NextID returns max(existing)+1, or 1 for an empty collection.
func NextID[T any](docs []T, id func(T) int64) int64 {
	var maxID int64
	for _, d := range docs {
		if v := id(d); v > maxID {
			maxID = v
		}
	}
	return maxID + 1
}
