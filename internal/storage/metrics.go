package storage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	lockWait     *prometheus.HistogramVec
	lockTimeouts *prometheus.CounterVec
	writes       *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "board_storage_lock_wait_seconds",
			Help:    "Time spent acquiring a collection lock",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"collection"}),
		lockTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_storage_lock_timeouts_total",
			Help: "Collection lock acquisitions that gave up",
		}, []string{"collection"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "board_storage_writes_total",
			Help: "Full collection rewrites",
		}, []string{"collection"}),
	}
	if reg != nil {
		m.lockWait = register(reg, m.lockWait)
		m.lockTimeouts = register(reg, m.lockTimeouts)
		m.writes = register(reg, m.writes)
	}
	return m
}

// register returns the already registered collector when an engine is built
// twice against the same registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
