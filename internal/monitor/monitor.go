// Package monitor implements the audio-session monitor: the single owner of
// the platform notification subscription and of the cached session snapshot.
//
// A [Monitor] starts in [Stopped]. [Monitor.Start] subscribes to the
// platform's route-change and interruption notifications and seeds the
// cache; every notification then refreshes it. [Monitor.Settings] never
// requires monitoring: while stopped it queries the platform on demand.
//
// Platform failures never escape as panics. Settings folds them into the
// returned snapshot; commands return them and also attach them to the next
// Settings result, so callers without an error channel still see them.
//
// Locking: lifeMu serialises Start and Stop (write lock) against
// notification handlers (read lock), so Stop returns only after in-flight
// handlers finish. cacheMu guards the cached snapshot, written only by the
// refresh path and read by Settings.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/observe"
	"github.com/MrWong99/audiosession/internal/resilience"
	"github.com/MrWong99/audiosession/pkg/session"
)

// State is the monitoring lifecycle state.
type State int32

const (
	Stopped State = iota
	Monitoring
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Monitoring:
		return "monitoring"
	default:
		return "unknown"
	}
}

const defaultQueueSize = 64

// queryTimeout bounds an on-demand platform query shared by concurrent
// Settings callers.
const queryTimeout = 2 * time.Second

// Command names used in logs, spans and metrics.
const (
	cmdPrepare = "prepare_for_recording"
	cmdSpeaker = "toggle_large_speaker"
	cmdSetMode = "set_mode"
)

// Monitor is the audio-session monitor. All methods are safe for concurrent
// use.
type Monitor struct {
	platform   session.Platform
	metrics    *observe.Metrics
	breaker    *resilience.CircuitBreaker
	breakerCfg resilience.CircuitBreakerConfig
	now        func() time.Time
	queueSize  int
	queries    singleflight.Group
	events     *eventQueue

	recMu     sync.RWMutex
	recording session.CategoryConfig

	lifeMu sync.RWMutex
	state  atomic.Int32 // written under lifeMu
	sub    session.Subscription
	gen    uint64

	seq      atomic.Uint64
	cacheMu  sync.RWMutex
	cache    session.Snapshot
	cacheSeq uint64
	cached   bool

	errMu   sync.Mutex
	lastErr error

	lisMu     sync.RWMutex
	listeners map[uint64]func(Event)
	nextLis   uint64
}

// New creates a stopped [Monitor] for p.
func New(p session.Platform, opts ...Option) *Monitor {
	m := &Monitor{
		platform:  p,
		metrics:   observe.DefaultMetrics(),
		now:       time.Now,
		queueSize: defaultQueueSize,
		recording: config.Default().Recording.CategoryConfig(),
		listeners: make(map[uint64]func(Event)),
	}
	for _, opt := range opts {
		opt(m)
	}

	bc := m.breakerCfg
	if bc.Name == "" {
		bc.Name = "platform-query"
	}
	if bc.IsFailure == nil {
		bc.IsFailure = func(err error) bool {
			return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	if bc.OnStateChange == nil {
		name := bc.Name
		bc.OnStateChange = func(from, to resilience.State) {
			slog.Warn("monitor: query breaker changed state", "breaker", name, "from", from, "to", to)
		}
	}
	m.breaker = resilience.NewCircuitBreaker(bc)
	m.events = newEventQueue(m.queueSize)
	return m
}

// Platform returns the platform the monitor owns.
func (m *Monitor) Platform() session.Platform { return m.platform }

// State returns the current lifecycle state.
func (m *Monitor) State() State { return State(m.state.Load()) }

// Subscriptions returns the number of platform subscriptions currently held:
// 1 while monitoring, 0 otherwise.
func (m *Monitor) Subscriptions() int {
	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.sub != nil {
		return 1
	}
	return 0
}

// QueryBreakerState reports the state of the on-demand query breaker.
func (m *Monitor) QueryBreakerState() resilience.State { return m.breaker.State() }

// RecordingConfig returns the profile applied by [Monitor.PrepareForRecording].
func (m *Monitor) RecordingConfig() session.CategoryConfig {
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	return m.recording
}

// SetRecordingConfig replaces the recording profile. It takes effect on the
// next PrepareForRecording call.
func (m *Monitor) SetRecordingConfig(cfg session.CategoryConfig) {
	m.recMu.Lock()
	defer m.recMu.Unlock()
	m.recording = cfg
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

// Start subscribes to platform notifications and seeds the cache. It is a
// no-op while already monitoring. On failure the monitor stays stopped, holds
// no subscription and Start may be retried.
func (m *Monitor) Start(ctx context.Context) (err error) {
	ctx, span := observe.StartSpan(ctx, "monitor.Start")
	defer span.End()

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.State() == Monitoring {
		return nil
	}

	gen := m.gen + 1
	sub, err := m.platform.Subscribe(func(n session.Notification) {
		m.handle(gen, n)
	})
	if err != nil {
		err = fmt.Errorf("monitor: start: %w", asKind(err, session.ErrSubscription))
		m.fail(ctx, span, "start", err)
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if cerr := sub.Cancel(); cerr != nil {
			slog.Warn("monitor: release subscription after failed start", "err", cerr)
		}
	}()

	seed, err := m.queryPlatform(ctx)
	if err != nil {
		err = fmt.Errorf("monitor: start: seed cache: %w", err)
		m.fail(ctx, span, "start", err)
		return err
	}

	committed = true
	m.gen = gen
	m.sub = sub
	m.store(m.seq.Add(1), seed)
	m.state.Store(int32(Monitoring))
	m.metrics.ActiveSubscriptions.Add(ctx, 1)
	span.SetAttributes(observe.SnapshotAttrs(seed)...)

	observe.Logger(ctx).Info("monitor: started",
		"platform", m.platform.Name(),
		"output_route", seed.OutputRoute(),
		"category", seed.Category,
	)
	return nil
}

// Stop cancels the platform subscription and clears the cache. It is a no-op
// while already stopped. Stop returns only after notification handlers that
// were running when it was called have finished; no handler modifies the
// cache afterwards.
func (m *Monitor) Stop() error {
	ctx, span := observe.StartSpan(context.Background(), "monitor.Stop")
	defer span.End()

	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()

	if m.State() == Stopped {
		return nil
	}

	sub := m.sub
	m.sub = nil
	m.state.Store(int32(Stopped))
	m.clearCache()
	m.metrics.ActiveSubscriptions.Add(ctx, -1)

	if err := sub.Cancel(); err != nil {
		err = fmt.Errorf("monitor: stop: %w", asKind(err, session.ErrSubscription))
		m.fail(ctx, span, "stop", err)
		return err
	}
	observe.Logger(ctx).Info("monitor: stopped", "platform", m.platform.Name())
	return nil
}

// ── Settings ────────────────────────────────────────────────────────────────

// Settings returns the best-known session state. While monitoring it is the
// cached snapshot; otherwise the platform is queried. Failures are reported
// inside the snapshot. A command failure recorded since the previous call is
// attached once and then cleared.
func (m *Monitor) Settings(ctx context.Context) session.Snapshot {
	snap, ok := m.cachedSnapshot()
	if !ok {
		snap = m.queryOnDemand(ctx)
	}
	if err := m.takeLastErr(); err != nil {
		snap = attachCommandError(snap, err)
	}
	return snap
}

func attachCommandError(s session.Snapshot, err error) session.Snapshot {
	if !s.HasError() {
		return s.WithError(err)
	}
	s.Err = s.Err + "; " + err.Error()
	return s
}

func (m *Monitor) cachedSnapshot() (session.Snapshot, bool) {
	if m.State() != Monitoring {
		return session.Snapshot{}, false
	}
	m.cacheMu.RLock()
	defer m.cacheMu.RUnlock()
	return m.cache, m.cached
}

func (m *Monitor) queryOnDemand(ctx context.Context) session.Snapshot {
	v, err, _ := m.queries.Do("query", func() (any, error) {
		// Shared by every caller in the flight, so detached from the first one.
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), queryTimeout)
		defer cancel()
		var snap session.Snapshot
		err := m.breaker.Execute(func() error {
			var qerr error
			snap, qerr = m.queryPlatform(qctx)
			return qerr
		})
		return snap, err
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			m.metrics.RecordQuery(ctx, "circuit_open", 0)
			err = fmt.Errorf("%w: %w", session.ErrQueryFailed, err)
		}
		return session.Unavailable(err, m.now())
	}
	return v.(session.Snapshot)
}

// queryPlatform reads the platform state and records metrics. Returned
// errors wrap [session.ErrQueryFailed].
func (m *Monitor) queryPlatform(ctx context.Context) (session.Snapshot, error) {
	start := time.Now()
	snap, err := m.platform.Query(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		m.metrics.RecordQuery(ctx, "error", elapsed)
		observe.Logger(ctx).Warn("monitor: platform query failed", "platform", m.platform.Name(), "err", err)
		return session.Snapshot{}, asKind(err, session.ErrQueryFailed)
	}
	m.metrics.RecordQuery(ctx, "ok", elapsed)
	if snap.Timestamp.IsZero() {
		snap.Timestamp = m.now()
	}
	return snap, nil
}

// store publishes snap unless the cache already holds a later capture.
// Snapshots are ordered by capture time; seq only breaks ties, so a
// notification handled late cannot overwrite a fresher refresh.
func (m *Monitor) store(seq uint64, snap session.Snapshot) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	if m.cached && olderThan(snap.Timestamp, seq, m.cache.Timestamp, m.cacheSeq) {
		return
	}
	m.cache = snap
	m.cacheSeq = seq
	m.cached = true
}

func olderThan(at time.Time, seq uint64, cachedAt time.Time, cachedSeq uint64) bool {
	if !at.Equal(cachedAt) {
		return at.Before(cachedAt)
	}
	return seq < cachedSeq
}

func (m *Monitor) clearCache() {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache = session.Snapshot{}
	m.cached = false
}

// ── Notifications ───────────────────────────────────────────────────────────

// HandleNotification delivers n as if it came from the current subscription,
// for notifications that did not arrive through the platform subscription.
// While stopped the notification is ignored.
func (m *Monitor) HandleNotification(n session.Notification) {
	m.lifeMu.RLock()
	gen := m.gen
	m.lifeMu.RUnlock()
	m.handle(gen, n)
}

func (m *Monitor) handle(gen uint64, n session.Notification) {
	ctx := context.Background()
	kind := n.Kind.String()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("monitor: notification handler panicked", "kind", kind, "panic", r)
		}
	}()

	ev, dropped, ok := m.record(ctx, gen, n)
	if !ok {
		m.metrics.RecordNotification(ctx, kind, "ignored")
		slog.Debug("monitor: ignoring notification outside monitoring", "kind", kind, "reason", n.Reason)
		return
	}

	m.metrics.RecordNotification(ctx, kind, "handled")
	if dropped {
		m.metrics.EventsDropped.Add(ctx, 1)
	}
	slog.Debug("monitor: notification handled",
		"kind", kind,
		"reason", n.Reason,
		"output_route", ev.Settings.OutputRoute(),
		"input_route", ev.Settings.InputRoute(),
	)
	m.dispatch(ev)
}

// record updates the cache from n and queues the resulting event. ok is false
// when n belongs to a cancelled subscription or the monitor is stopped.
func (m *Monitor) record(ctx context.Context, gen uint64, n session.Notification) (ev Event, dropped, ok bool) {
	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.State() != Monitoring || m.gen != gen {
		return Event{}, false, false
	}

	seq := m.seq.Add(1)
	var snap session.Snapshot
	if n.Snapshot != nil {
		snap = n.Snapshot.Clone()
		if snap.Timestamp.IsZero() {
			snap.Timestamp = m.now()
		}
	} else {
		var err error
		if snap, err = m.queryPlatform(ctx); err != nil {
			snap = session.Unavailable(err, m.now())
		}
	}
	m.store(seq, snap)

	ev = Event{
		Type:         n.Kind,
		Reason:       n.Reason,
		Interruption: n.Interruption,
		ShouldResume: n.ShouldResume,
		Settings:     snap,
		Time:         snap.Timestamp,
	}
	return ev, m.events.push(ev), true
}

// refresh re-reads the platform into the cache while monitoring.
func (m *Monitor) refresh(ctx context.Context) {
	m.lifeMu.RLock()
	defer m.lifeMu.RUnlock()
	if m.State() != Monitoring {
		return
	}
	seq := m.seq.Add(1)
	snap, err := m.queryPlatform(ctx)
	if err != nil {
		snap = session.Unavailable(err, m.now())
	}
	m.store(seq, snap)
}

// ── Events ──────────────────────────────────────────────────────────────────

// Poll removes and returns the oldest queued event.
func (m *Monitor) Poll() (Event, bool) { return m.events.pop() }

// PendingEvents returns the number of queued events.
func (m *Monitor) PendingEvents() int { return m.events.len() }

// DroppedEvents returns how many events were discarded because the queue was
// full.
func (m *Monitor) DroppedEvents() uint64 { return m.events.droppedTotal() }

// OnEvent registers fn to be called for every handled notification. fn runs
// on the notification goroutine after the cache was updated and must not
// block for long. The returned function unregisters fn.
func (m *Monitor) OnEvent(fn func(Event)) (unregister func()) {
	m.lisMu.Lock()
	id := m.nextLis
	m.nextLis++
	m.listeners[id] = fn
	m.lisMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.lisMu.Lock()
			delete(m.listeners, id)
			m.lisMu.Unlock()
		})
	}
}

func (m *Monitor) dispatch(ev Event) {
	m.lisMu.RLock()
	fns := make([]func(Event), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.lisMu.RUnlock()

	for _, fn := range fns {
		m.safeCall(fn, ev)
	}
}

func (m *Monitor) safeCall(fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("monitor: event listener panicked", "panic", r, "type", ev.Type.String())
		}
	}()
	fn(ev)
}

// ── Commands ────────────────────────────────────────────────────────────────

// PrepareForRecording applies the recording profile (by default
// playAndRecord / voiceChat with Bluetooth and speaker defaults at 48 kHz and
// 5 ms buffers). The monitoring state is not changed.
func (m *Monitor) PrepareForRecording(ctx context.Context) error {
	cfg := m.RecordingConfig()
	return m.command(ctx, cmdPrepare, func(ctx context.Context) error {
		return m.platform.ApplyCategory(ctx, cfg)
	}, attribute.String("category", string(cfg.Category)), attribute.String("mode", string(cfg.Mode)))
}

// ToggleLargeSpeaker forces (enabled) or releases the loud-speaker output.
// The platform is always asked, even if the requested state is already in
// effect.
func (m *Monitor) ToggleLargeSpeaker(ctx context.Context, enabled bool) error {
	return m.command(ctx, cmdSpeaker, func(ctx context.Context) error {
		return m.platform.OverrideOutputToSpeaker(ctx, enabled)
	}, attribute.Bool("enabled", enabled))
}

// SetMode applies the recording profile with mode replaced.
func (m *Monitor) SetMode(ctx context.Context, mode session.Mode) error {
	cfg := m.RecordingConfig()
	cfg.Mode = mode
	return m.command(ctx, cmdSetMode, func(ctx context.Context) error {
		if !mode.IsValid() {
			return fmt.Errorf("mode %q: %w", mode, session.ErrUnsupported)
		}
		return m.platform.ApplyCategory(ctx, cfg)
	}, attribute.String("mode", string(mode)))
}

func (m *Monitor) command(ctx context.Context, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := observe.StartSpan(ctx, "monitor."+name)
	defer span.End()
	span.SetAttributes(attrs...)

	if err := fn(ctx); err != nil {
		if !errors.Is(err, session.ErrUnsupported) {
			err = asKind(err, session.ErrConfigurationRejected)
		}
		err = fmt.Errorf("monitor: %s: %w", name, err)
		m.metrics.RecordCommand(ctx, name, "rejected")
		m.fail(ctx, span, name, err)
		return err
	}

	m.metrics.RecordCommand(ctx, name, "ok")
	m.clearLastErr()
	m.refresh(ctx)
	observe.Logger(ctx).Debug("monitor: command applied", "command", name)
	return nil
}

// ── Errors ──────────────────────────────────────────────────────────────────

// fail records err for the next Settings call, marks the span and logs.
func (m *Monitor) fail(ctx context.Context, span trace.Span, op string, err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observe.Logger(ctx).Warn("monitor: operation failed",
		"op", op,
		"kind", session.KindOf(err),
		"err", err,
	)
}

func (m *Monitor) takeLastErr() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	err := m.lastErr
	m.lastErr = nil
	return err
}

func (m *Monitor) clearLastErr() {
	m.errMu.Lock()
	m.lastErr = nil
	m.errMu.Unlock()
}

// asKind makes sure err matches sentinel under errors.Is.
func asKind(err, sentinel error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
