// Package storage is the record store shared by every document repository.
//
// Each entity kind lives in its own Collection, persisted as one YAML unit
// through a Backend. Every Collection call runs as read-under-lock, mutate in
// memory, write-under-lock. There is one exclusive lock per collection and it
// is acquired with a bounded wait; running out of time yields
// *apperr.LockTimeoutError instead of blocking. Lock lets a caller hold several
// collections at once for multi-collection units such as cascading deletes.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"board/internal/apperr"
	"board/internal/logger"
)

const DefaultLockTimeout = 5 * time.Second

type Options struct {
	LockTimeout time.Duration
	// Registerer receives the storage collectors. Nil leaves them unregistered.
	Registerer prometheus.Registerer
	Logger     *zap.Logger
}

// Engine owns the backend and the per-collection locks. Create one per
// process (or per test) and open every collection from it.
type Engine struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func NewEngine(backend Backend, opts Options) *Engine {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("storage")
	}
	return &Engine{
		backend: backend,
		timeout: opts.LockTimeout,
		log:     opts.Logger,
		metrics: newMetrics(opts.Registerer),
		locks:   map[string]*semaphore.Weighted{},
	}
}

func (e *Engine) Backend() Backend { return e.backend }

func (e *Engine) semaphoreFor(name string) *semaphore.Weighted {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.locks[name]
	if !ok {
		s = semaphore.NewWeighted(1)
		e.locks[name] = s
	}
	return s
}

// acquire takes the in-process semaphore and then the backend marker for name.
func (e *Engine) acquire(ctx context.Context, name string) (func(), error) {
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	sem := e.semaphoreFor(name)
	if err := sem.Acquire(lctx, 1); err != nil {
		return nil, e.lockFailure(ctx, name, start, err)
	}
	releaseMarker, err := e.backend.Acquire(lctx, name)
	if err != nil {
		sem.Release(1)
		return nil, e.lockFailure(ctx, name, start, err)
	}
	e.metrics.lockWait.WithLabelValues(name).Observe(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseMarker()
			sem.Release(1)
		})
	}, nil
}

func (e *Engine) lockFailure(parent context.Context, name string, start time.Time, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		waited := time.Since(start)
		e.metrics.lockTimeouts.WithLabelValues(name).Inc()
		e.log.Warn("collection lock timeout", logger.Collection(name), logger.Duration(waited))
		return &apperr.LockTimeoutError{Collection: name, Waited: waited}
	}
	return err
}
