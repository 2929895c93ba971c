package ratelimit

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory keeps window counters in process. Counters expire with their window.
type Memory struct {
	c      *gocache.Cache
	max    int64
	window time.Duration
	now    func() time.Time

	// mu makes add-then-increment one step.
	mu sync.Mutex
}

func NewMemory(max int, window time.Duration) *Memory {
	return &Memory{
		c:      gocache.New(window, time.Minute),
		max:    int64(max),
		window: window,
		now:    time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	now := m.now().UTC()
	k, end := windowKey("rl:", key, now, m.window)

	m.mu.Lock()
	defer m.mu.Unlock()
	// Add fails once the window has a counter; that is expected.
	_ = m.c.Add(k, int64(0), end.Sub(now))
	hits, err := m.c.IncrementInt64(k, 1)
	if err != nil {
		return Result{}, err
	}
	return result(hits, m.max, end.Sub(now)), nil
}

func (m *Memory) Reset(_ context.Context, key string) error {
	k, _ := windowKey("rl:", key, m.now().UTC(), m.window)
	m.c.Delete(k)
	return nil
}
