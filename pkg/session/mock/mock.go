// Package mock provides an in-memory mock implementation of the
// [session.Platform] interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts and arguments, tracks which subscriptions
// are still active, and lets tests deliver notifications with [Platform.Emit]
// exactly as a platform callback thread would.
//
// Typical usage:
//
//	p := &mock.Platform{State: session.Snapshot{Category: session.CategoryPlayback}}
//	sub, _ := p.Subscribe(func(n session.Notification) { ... })
//	p.Emit(session.Notification{Kind: session.RouteChange})
//	_ = sub.Cancel()
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/audiosession/pkg/session"
)

// Platform is a mock implementation of [session.Platform].
// Set the exported fields before use; read results through the accessor
// methods, which take the lock.
type Platform struct {
	mu sync.Mutex

	// PlatformName is returned by Name. Defaults to "mock".
	PlatformName string

	// State is the session state returned by Query. ApplyCategory and
	// OverrideOutputToSpeaker update it when they succeed.
	State session.Snapshot

	// QueryErr is returned by Query when non-nil.
	QueryErr error

	// SubscribeErr is returned by Subscribe when non-nil.
	SubscribeErr error

	// CancelErr is returned by Subscription.Cancel when non-nil. The
	// registration is removed regardless.
	CancelErr error

	// ApplyErr is returned by ApplyCategory when non-nil.
	ApplyErr error

	// OverrideErr is returned by OverrideOutputToSpeaker when non-nil.
	OverrideErr error

	// Now is used to timestamp snapshots. Defaults to time.Now.
	Now func() time.Time

	nextID   int
	handlers map[int]session.Handler

	callCountQuery     int
	callCountSubscribe int
	callCountCancel    int
	applyCalls         []session.CategoryConfig
	overrideCalls      []bool
}

var _ session.Platform = (*Platform)(nil)

// Name implements [session.Platform].
func (p *Platform) Name() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PlatformName == "" {
		return "mock"
	}
	return p.PlatformName
}

// Query implements [session.Platform]. Returns a clone of State stamped with
// the current time, or QueryErr.
func (p *Platform) Query(_ context.Context) (session.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCountQuery++
	if p.QueryErr != nil {
		return session.Snapshot{}, p.QueryErr
	}
	s := p.State.Clone()
	s.Timestamp = p.now()
	return s, nil
}

// Subscribe implements [session.Platform].
func (p *Platform) Subscribe(h session.Handler) (session.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCountSubscribe++
	if p.SubscribeErr != nil {
		return nil, p.SubscribeErr
	}
	if p.handlers == nil {
		p.handlers = make(map[int]session.Handler)
	}
	p.nextID++
	id := p.nextID
	p.handlers[id] = h
	return &subscription{p: p, id: id}, nil
}

// ApplyCategory implements [session.Platform].
func (p *Platform) ApplyCategory(_ context.Context, cfg session.CategoryConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyCalls = append(p.applyCalls, cfg)
	if p.ApplyErr != nil {
		return p.ApplyErr
	}
	p.State.Category = cfg.Category
	p.State.Mode = cfg.Mode
	p.State.Options = cfg.Options
	if cfg.PreferredSampleRate > 0 {
		p.State.Hardware.PreferredSampleRate = cfg.PreferredSampleRate
	}
	if cfg.PreferredIOBufferDuration > 0 {
		p.State.Hardware.PreferredIOBufferDuration = cfg.PreferredIOBufferDuration.Seconds()
	}
	return nil
}

// OverrideOutputToSpeaker implements [session.Platform].
func (p *Platform) OverrideOutputToSpeaker(_ context.Context, enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overrideCalls = append(p.overrideCalls, enabled)
	if p.OverrideErr != nil {
		return p.OverrideErr
	}
	p.State.LargeSpeakerActive = enabled
	if enabled {
		p.State.Routing.Outputs = []session.Port{{Type: session.RouteSpeaker, Name: "Speaker", Channels: 2, BuiltIn: true}}
	} else {
		p.State.Routing.Outputs = []session.Port{{Type: session.RouteReceiver, Name: "Receiver", Channels: 1, BuiltIn: true}}
	}
	return nil
}

// Emit delivers n to every active subscription on the calling goroutine and
// returns the number of handlers invoked.
func (p *Platform) Emit(n session.Notification) int {
	p.mu.Lock()
	hs := make([]session.Handler, 0, len(p.handlers))
	for _, h := range p.handlers {
		hs = append(hs, h)
	}
	p.mu.Unlock()

	for _, h := range hs {
		h(n)
	}
	return len(hs)
}

// SetState replaces State under the lock.
func (p *Platform) SetState(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.State = s
}

// SetQueryErr replaces QueryErr under the lock.
func (p *Platform) SetQueryErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.QueryErr = err
}

// ActiveSubscriptions returns the number of registrations not yet cancelled.
func (p *Platform) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handlers)
}

// QueryCalls returns how many times Query was called.
func (p *Platform) QueryCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCountQuery
}

// SubscribeCalls returns how many times Subscribe was called.
func (p *Platform) SubscribeCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCountSubscribe
}

// CancelCalls returns how many times Subscription.Cancel was called.
func (p *Platform) CancelCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCountCancel
}

// ApplyCalls returns a copy of the configs passed to ApplyCategory.
func (p *Platform) ApplyCalls() []session.CategoryConfig {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]session.CategoryConfig(nil), p.applyCalls...)
}

// OverrideCalls returns a copy of the values passed to OverrideOutputToSpeaker.
func (p *Platform) OverrideCalls() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.overrideCalls...)
}

func (p *Platform) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

type subscription struct {
	p    *Platform
	id   int
	once sync.Once
}

func (s *subscription) Cancel() error {
	var err error
	s.once.Do(func() {
		s.p.mu.Lock()
		defer s.p.mu.Unlock()
		s.p.callCountCancel++
		delete(s.p.handlers, s.id)
		err = s.p.CancelErr
	})
	return err
}
