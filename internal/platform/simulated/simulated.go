// Package simulated provides an in-memory audio session for targets without
// a native session API (desktop, editor, CI) and for the developer tools.
//
// It models the parts of a mobile audio session the monitor observes: a
// category with options, an external route that can be plugged and
// unplugged, the loud-speaker override, interruptions and media-services
// resets. Every state change is announced to subscribers asynchronously,
// one delivery goroutine per subscription, like a platform callback thread.
package simulated

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/audiosession/pkg/session"
)

// Name is the registry name of the simulated platform.
const Name = "simulated"

// deliveryBuffer bounds the notifications pending per subscription. Further
// notifications are dropped with a warning.
const deliveryBuffer = 32

var (
	speakerPort  = session.Port{Type: session.RouteSpeaker, Name: "Speaker", Channels: 2, BuiltIn: true}
	receiverPort = session.Port{Type: session.RouteReceiver, Name: "Receiver", Channels: 1, BuiltIn: true}
	builtInMic   = session.Port{Type: session.RouteBuiltInMic, Name: "Built-In Microphone", Channels: 1, BuiltIn: true}
)

// Well-known external ports for [Platform.Connect].
var (
	AirPods    = session.Port{Type: session.RouteBluetooth, Name: "AirPods", Channels: 2}
	CarKit     = session.Port{Type: session.RouteBluetoothHFP, Name: "Car Kit", Channels: 1}
	Headphones = session.Port{Type: session.RouteHeadphones, Name: "Headphones", Channels: 2}
	USBAudio   = session.Port{Type: session.RouteUSB, Name: "USB Audio", Channels: 2}
)

// Platform is a simulated [session.Platform]. The zero value is not usable;
// call [New].
type Platform struct {
	now func() time.Time

	mu          sync.Mutex
	category    session.Category
	mode        session.Mode
	options     session.CategoryOptions
	external    *session.Port
	override    bool
	interrupted bool
	hw          session.Hardware
	sampleRate  float64
	ioBuffer    time.Duration
	rejectErr   error
	queryErr    error
	subs        map[uint64]*subscription
	nextID      uint64
	lastCapture time.Time
}

var _ session.Platform = (*Platform)(nil)

// Option configures a [Platform].
type Option func(*Platform)

// WithClock overrides time.Now for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Platform) { p.now = now }
}

// WithExternalRoute starts the platform with port connected.
func WithExternalRoute(port session.Port) Option {
	return func(p *Platform) { p.external = &port }
}

// New returns a simulated session in its launch state: soloAmbient, output
// on the speaker, 48 kHz and a 20 ms I/O buffer.
func New(opts ...Option) *Platform {
	p := &Platform{
		now:        time.Now,
		category:   session.CategorySoloAmbient,
		mode:       session.ModeDefault,
		sampleRate: 48000,
		ioBuffer:   20 * time.Millisecond,
		hw: session.Hardware{
			InputAvailable: true,
			InputGain:      0.5,
			OutputVolume:   0.5,
			InputLatency:   0.0025,
			OutputLatency:  0.005,
		},
		subs: make(map[uint64]*subscription),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements [session.Platform].
func (p *Platform) Name() string { return Name }

// Query implements [session.Platform].
func (p *Platform) Query(ctx context.Context) (session.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return session.Snapshot{}, fmt.Errorf("simulated: query: %w: %w", session.ErrQueryFailed, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.queryErr != nil {
		return session.Snapshot{}, fmt.Errorf("simulated: query: %w: %w", session.ErrQueryFailed, p.queryErr)
	}
	return p.snapshotLocked(), nil
}

// Subscribe implements [session.Platform].
func (p *Platform) Subscribe(h session.Handler) (session.Subscription, error) {
	if h == nil {
		return nil, fmt.Errorf("simulated: subscribe: %w: nil handler", session.ErrSubscription)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	s := &subscription{
		p:       p,
		id:      p.nextID,
		handler: h,
		ch:      make(chan session.Notification, deliveryBuffer),
		done:    make(chan struct{}),
	}
	p.subs[s.id] = s
	go s.deliver()
	return s, nil
}

// ApplyCategory implements [session.Platform].
func (p *Platform) ApplyCategory(ctx context.Context, cfg session.CategoryConfig) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simulated: apply category: %w", err)
	}
	if !cfg.Category.IsValid() {
		return fmt.Errorf("simulated: category %q: %w", cfg.Category, session.ErrConfigurationRejected)
	}
	if !cfg.Mode.IsValid() {
		return fmt.Errorf("simulated: mode %q: %w", cfg.Mode, session.ErrConfigurationRejected)
	}
	if cfg.Options.DefaultToSpeaker && cfg.Category != session.CategoryPlayAndRecord {
		return fmt.Errorf("simulated: defaultToSpeaker needs playAndRecord: %w", session.ErrConfigurationRejected)
	}

	p.mu.Lock()
	if p.rejectErr != nil {
		err := p.rejectErr
		p.mu.Unlock()
		return fmt.Errorf("simulated: apply category: %w: %w", session.ErrConfigurationRejected, err)
	}
	if p.interrupted {
		p.mu.Unlock()
		return fmt.Errorf("simulated: session is interrupted: %w", session.ErrConfigurationRejected)
	}
	p.category = cfg.Category
	p.mode = cfg.Mode
	p.options = cfg.Options
	if cfg.PreferredSampleRate > 0 {
		p.hw.PreferredSampleRate = cfg.PreferredSampleRate
		p.sampleRate = cfg.PreferredSampleRate
	}
	if cfg.PreferredIOBufferDuration > 0 {
		p.hw.PreferredIOBufferDuration = cfg.PreferredIOBufferDuration.Seconds()
		p.ioBuffer = cfg.PreferredIOBufferDuration
	}
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(session.Notification{Kind: session.RouteChange, Reason: session.ReasonCategoryChange, Snapshot: &snap})
	return nil
}

// OverrideOutputToSpeaker implements [session.Platform].
func (p *Platform) OverrideOutputToSpeaker(ctx context.Context, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("simulated: override: %w", err)
	}
	p.mu.Lock()
	if p.rejectErr != nil {
		err := p.rejectErr
		p.mu.Unlock()
		return fmt.Errorf("simulated: override: %w: %w", session.ErrConfigurationRejected, err)
	}
	if enabled && p.category != session.CategoryPlayAndRecord {
		p.mu.Unlock()
		return fmt.Errorf("simulated: speaker override needs playAndRecord, category is %q: %w", p.category, session.ErrConfigurationRejected)
	}
	p.override = enabled
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.notify(session.Notification{Kind: session.RouteChange, Reason: session.ReasonOverride, Snapshot: &snap})
	return nil
}

// ── Simulation controls ─────────────────────────────────────────────────────

// Connect plugs in an external route. It replaces any route already
// connected and releases the speaker override, as a real session does.
func (p *Platform) Connect(port session.Port) {
	p.mu.Lock()
	p.external = &port
	p.override = false
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(session.Notification{Kind: session.RouteChange, Reason: session.ReasonNewDeviceAvailable, Snapshot: &snap})
}

// Disconnect unplugs the external route, if any.
func (p *Platform) Disconnect() {
	p.mu.Lock()
	if p.external == nil {
		p.mu.Unlock()
		return
	}
	p.external = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(session.Notification{Kind: session.RouteChange, Reason: session.ReasonOldDeviceUnavailable, Snapshot: &snap})
}

// Interrupt begins an interruption, as when a phone call arrives.
func (p *Platform) Interrupt() {
	p.mu.Lock()
	p.interrupted = true
	p.hw.OtherAudioPlaying = true
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(session.Notification{Kind: session.Interruption, Interruption: session.InterruptionBegan, Snapshot: &snap})
}

// EndInterruption ends the current interruption. shouldResume is passed to
// subscribers unchanged.
func (p *Platform) EndInterruption(shouldResume bool) {
	p.mu.Lock()
	p.interrupted = false
	p.hw.OtherAudioPlaying = false
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.notify(session.Notification{
		Kind:         session.Interruption,
		Interruption: session.InterruptionEnded,
		ShouldResume: shouldResume,
		Snapshot:     &snap,
	})
}

// ResetMediaServices drops every configuration back to the launch state.
func (p *Platform) ResetMediaServices() {
	p.mu.Lock()
	p.category = session.CategorySoloAmbient
	p.mode = session.ModeDefault
	p.options = session.CategoryOptions{}
	p.override = false
	p.interrupted = false
	p.sampleRate = 48000
	p.ioBuffer = 20 * time.Millisecond
	p.hw.PreferredSampleRate = 0
	p.hw.PreferredIOBufferDuration = 0
	p.mu.Unlock()
	p.notify(session.Notification{Kind: session.MediaServicesReset})
}

// RejectCommands makes ApplyCategory and OverrideOutputToSpeaker fail with
// err until called again with nil.
func (p *Platform) RejectCommands(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectErr = err
}

// FailQueries makes Query fail with err until called again with nil.
func (p *Platform) FailQueries(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queryErr = err
}

// Subscribers returns the number of live subscriptions.
func (p *Platform) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Run cycles through a fixed sequence of route changes every interval until
// ctx is done. The developer tools use it to produce a live event stream.
func (p *Platform) Run(ctx context.Context, interval time.Duration) error {
	steps := []func(){
		func() { p.Connect(AirPods) },
		p.Disconnect,
		func() { p.Connect(Headphones) },
		p.Interrupt,
		func() { p.EndInterruption(true) },
		p.Disconnect,
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			steps[i%len(steps)]()
		}
	}
}

// ── internals ───────────────────────────────────────────────────────────────

func (p *Platform) outputsLocked() []session.Port {
	switch {
	case p.override:
		return []session.Port{speakerPort}
	case p.external != nil:
		return []session.Port{*p.external}
	case p.category == session.CategoryRecord:
		return nil
	case p.category == session.CategoryPlayAndRecord && !p.options.DefaultToSpeaker:
		return []session.Port{receiverPort}
	default:
		return []session.Port{speakerPort}
	}
}

func (p *Platform) inputsLocked() []session.Port {
	if p.category != session.CategoryRecord && p.category != session.CategoryPlayAndRecord {
		return nil
	}
	if p.external != nil && p.external.Type == session.RouteBluetoothHFP && p.options.AllowBluetooth {
		return []session.Port{*p.external}
	}
	if p.external != nil && p.external.Type == session.RouteHeadphones {
		return []session.Port{{Type: session.RouteHeadsetMic, Name: "Headset Microphone", Channels: 1}}
	}
	return []session.Port{builtInMic}
}

func (p *Platform) snapshotLocked() session.Snapshot {
	outputs := p.outputsLocked()
	return session.Snapshot{
		Timestamp: p.captureTimeLocked(),
		Category:  p.category,
		Mode:      p.mode,
		Options:   p.options,
		Routing: session.Routing{
			Inputs:  p.inputsLocked(),
			Outputs: outputs,
		},
		Hardware:           p.hw,
		SampleRate:         p.sampleRate,
		IOBufferDuration:   p.ioBuffer,
		LargeSpeakerActive: len(outputs) > 0 && outputs[0].Type == session.RouteSpeaker,
	}
}

// captureTimeLocked returns p.now(), nudged forward so capture times are
// strictly increasing even on a coarse or fixed clock.
func (p *Platform) captureTimeLocked() time.Time {
	t := p.now()
	if !t.After(p.lastCapture) {
		t = p.lastCapture.Add(time.Nanosecond)
	}
	p.lastCapture = t
	return t
}

func (p *Platform) notify(n session.Notification) {
	p.mu.Lock()
	subs := make([]*subscription, 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s.enqueue(n)
	}
}

type subscription struct {
	p       *Platform
	id      uint64
	handler session.Handler
	ch      chan session.Notification
	done    chan struct{}
	once    sync.Once
}

func (s *subscription) enqueue(n session.Notification) {
	select {
	case <-s.done:
	case s.ch <- n:
	default:
		slog.Warn("simulated: subscriber is slow, dropping notification", "kind", n.Kind.String())
	}
}

func (s *subscription) deliver() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.ch:
			select {
			case <-s.done:
				return
			default:
			}
			s.handler(n)
		}
	}
}

// Cancel implements [session.Subscription]. It does not wait for a handler
// that is already running.
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		close(s.done)
		s.p.mu.Lock()
		delete(s.p.subs, s.id)
		s.p.mu.Unlock()
	})
	return nil
}
