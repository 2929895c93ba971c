// Package ratelimit throttles login attempts with fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
	Hits       int64
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	// Reset forgets the current window for key, e.g. after a successful login.
	Reset(ctx context.Context, key string) error
}

// LoginKey builds the limiter key for one client address and account.
func LoginKey(remoteAddr, email string) string {
	return "login:" + remoteAddr + ":" + strings.ToLower(strings.TrimSpace(email))
}

func windowKey(prefix, key string, now time.Time, window time.Duration) (string, time.Time) {
	start := now.Truncate(window)
	return fmt.Sprintf("%s%s:%d", prefix, strings.ReplaceAll(key, " ", "_"), start.Unix()), start.Add(window)
}

func result(hits, max int64, retry time.Duration) Result {
	r := Result{Allowed: hits <= max, Remaining: max - hits, Hits: hits}
	if r.Remaining < 0 {
		r.Remaining = 0
	}
	if !r.Allowed {
		r.RetryAfter = retry
	}
	return r
}

// Nop never limits.
type Nop struct{}

func (Nop) Allow(context.Context, string) (Result, error) { return Result{Allowed: true}, nil }
func (Nop) Reset(context.Context, string) error           { return nil }
