package monitor

import (
	"time"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/observe"
	"github.com/MrWong99/audiosession/internal/resilience"
	"github.com/MrWong99/audiosession/pkg/session"
)

// Option configures a [Monitor].
type Option func(*Monitor)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(mon *Monitor) {
		if m != nil {
			mon.metrics = m
		}
	}
}

// WithRecordingConfig sets the profile applied by PrepareForRecording.
func WithRecordingConfig(cfg session.CategoryConfig) Option {
	return func(mon *Monitor) {
		mon.recording = cfg
	}
}

// WithEventQueueSize bounds the pollable event queue. Values below one keep
// the default of 64.
func WithEventQueueSize(n int) Option {
	return func(mon *Monitor) {
		if n > 0 {
			mon.queueSize = n
		}
	}
}

// WithQueryBreaker configures the circuit breaker guarding on-demand queries.
func WithQueryBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(mon *Monitor) {
		mon.breakerCfg = cfg
	}
}

// WithClock overrides time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(mon *Monitor) {
		if now != nil {
			mon.now = now
		}
	}
}

// ConfigOptions translates the loaded configuration into options.
func ConfigOptions(cfg *config.Config) []Option {
	return []Option{
		WithRecordingConfig(cfg.Recording.CategoryConfig()),
		WithEventQueueSize(cfg.Monitor.EventQueueSize),
		WithQueryBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:  cfg.Monitor.QueryBreaker.MaxFailures,
			ResetTimeout: cfg.Monitor.QueryBreaker.ResetTimeout,
		}),
	}
}
