package simulated

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/audiosession/pkg/session"
)

func recordingConfig() session.CategoryConfig {
	return session.CategoryConfig{
		Category: session.CategoryPlayAndRecord,
		Mode:     session.ModeVoiceChat,
		Options: session.CategoryOptions{
			AllowBluetooth:     true,
			AllowBluetoothA2DP: true,
			DefaultToSpeaker:   true,
		},
		PreferredSampleRate:       44100,
		PreferredIOBufferDuration: 5 * time.Millisecond,
	}
}

// collector subscribes to p and collects notifications.
type collector struct {
	mu sync.Mutex
	ns []session.Notification
	ch chan struct{}
}

func subscribe(t *testing.T, p *Platform) (*collector, session.Subscription) {
	t.Helper()
	c := &collector{ch: make(chan struct{}, 64)}
	sub, err := p.Subscribe(func(n session.Notification) {
		c.mu.Lock()
		c.ns = append(c.ns, n)
		c.mu.Unlock()
		c.ch <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	t.Cleanup(func() { _ = sub.Cancel() })
	return c, sub
}

func (c *collector) wait(t *testing.T, n int) []session.Notification {
	t.Helper()
	for range n {
		select {
		case <-c.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification")
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Notification(nil), c.ns...)
}

func TestPlatform_LaunchState(t *testing.T) {
	t.Parallel()
	p := New()
	s, err := p.Query(context.Background())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if s.Category != session.CategorySoloAmbient || s.OutputRoute() != session.RouteSpeaker {
		t.Errorf("launch = %q/%q", s.Category, s.OutputRoute())
	}
	if s.InputRoute() != session.RouteNone {
		t.Errorf("InputRoute = %q, want none for a playback category", s.InputRoute())
	}
	if !s.LargeSpeakerActive {
		t.Error("LargeSpeakerActive = false on speaker output")
	}
}

func TestPlatform_ApplyCategory(t *testing.T) {
	t.Parallel()
	p := New()
	c, _ := subscribe(t, p)

	if err := p.ApplyCategory(context.Background(), recordingConfig()); err != nil {
		t.Fatalf("ApplyCategory: %v", err)
	}
	ns := c.wait(t, 1)
	if ns[0].Reason != session.ReasonCategoryChange || ns[0].Snapshot == nil {
		t.Fatalf("notification = %+v", ns[0])
	}

	s, _ := p.Query(context.Background())
	if s.Category != session.CategoryPlayAndRecord || s.Mode != session.ModeVoiceChat {
		t.Errorf("category/mode = %q/%q", s.Category, s.Mode)
	}
	if s.SampleRate != 44100 || s.IOBufferDuration != 5*time.Millisecond {
		t.Errorf("hardware = %v/%v", s.SampleRate, s.IOBufferDuration)
	}
	if s.InputRoute() != session.RouteBuiltInMic {
		t.Errorf("InputRoute = %q", s.InputRoute())
	}
	if s.OutputRoute() != session.RouteSpeaker {
		t.Errorf("OutputRoute = %q, want speaker with defaultToSpeaker", s.OutputRoute())
	}
}

func TestPlatform_ApplyCategoryRejections(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cfg   session.CategoryConfig
		setup func(*Platform)
	}{
		{"invalid category", session.CategoryConfig{Category: "loud", Mode: session.ModeDefault}, nil},
		{"invalid mode", session.CategoryConfig{Category: session.CategoryPlayback, Mode: "fast"}, nil},
		{"speaker default without record", session.CategoryConfig{
			Category: session.CategoryPlayback,
			Mode:     session.ModeDefault,
			Options:  session.CategoryOptions{DefaultToSpeaker: true},
		}, nil},
		{"rejecting", recordingConfig(), func(p *Platform) { p.RejectCommands(errors.New("busy")) }},
		{"interrupted", recordingConfig(), func(p *Platform) { p.Interrupt() }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := New()
			if tc.setup != nil {
				tc.setup(p)
			}
			err := p.ApplyCategory(context.Background(), tc.cfg)
			if !errors.Is(err, session.ErrConfigurationRejected) {
				t.Errorf("err = %v, want ErrConfigurationRejected", err)
			}
		})
	}
}

func TestPlatform_SpeakerOverride(t *testing.T) {
	t.Parallel()
	p := New()
	cfg := recordingConfig()
	cfg.Options.DefaultToSpeaker = false
	if err := p.ApplyCategory(context.Background(), cfg); err != nil {
		t.Fatalf("ApplyCategory: %v", err)
	}
	s, _ := p.Query(context.Background())
	if s.OutputRoute() != session.RouteReceiver || s.LargeSpeakerActive {
		t.Fatalf("before override = %q/%v", s.OutputRoute(), s.LargeSpeakerActive)
	}

	if err := p.OverrideOutputToSpeaker(context.Background(), true); err != nil {
		t.Fatalf("override: %v", err)
	}
	s, _ = p.Query(context.Background())
	if s.OutputRoute() != session.RouteSpeaker || !s.LargeSpeakerActive {
		t.Errorf("after override = %q/%v", s.OutputRoute(), s.LargeSpeakerActive)
	}

	if err := p.OverrideOutputToSpeaker(context.Background(), false); err != nil {
		t.Fatalf("release: %v", err)
	}
	s, _ = p.Query(context.Background())
	if s.OutputRoute() != session.RouteReceiver {
		t.Errorf("after release = %q", s.OutputRoute())
	}
}

func TestPlatform_SpeakerOverrideNeedsPlayAndRecord(t *testing.T) {
	t.Parallel()
	p := New()
	if err := p.OverrideOutputToSpeaker(context.Background(), true); !errors.Is(err, session.ErrConfigurationRejected) {
		t.Errorf("err = %v, want ErrConfigurationRejected", err)
	}
	if err := p.OverrideOutputToSpeaker(context.Background(), false); err != nil {
		t.Errorf("releasing the override failed: %v", err)
	}
}

func TestPlatform_ConnectDisconnect(t *testing.T) {
	t.Parallel()
	p := New()
	if err := p.ApplyCategory(context.Background(), recordingConfig()); err != nil {
		t.Fatalf("ApplyCategory: %v", err)
	}
	c, _ := subscribe(t, p)

	p.Connect(CarKit)
	p.Disconnect()
	p.Disconnect() // nothing connected: no notification

	ns := c.wait(t, 2)
	if ns[0].Reason != session.ReasonNewDeviceAvailable || ns[0].Snapshot.OutputRoute() != session.RouteBluetoothHFP {
		t.Errorf("connect notification = %+v", ns[0])
	}
	if ns[0].Snapshot.InputRoute() != session.RouteBluetoothHFP {
		t.Errorf("HFP input = %q", ns[0].Snapshot.InputRoute())
	}
	if ns[1].Reason != session.ReasonOldDeviceUnavailable || ns[1].Snapshot.OutputRoute() != session.RouteSpeaker {
		t.Errorf("disconnect notification = %+v", ns[1])
	}

	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ns) != 2 {
		t.Errorf("received %d notifications, want 2", len(c.ns))
	}
}

func TestPlatform_Interruption(t *testing.T) {
	t.Parallel()
	p := New()
	c, _ := subscribe(t, p)

	p.Interrupt()
	p.EndInterruption(true)
	ns := c.wait(t, 2)
	if ns[0].Interruption != session.InterruptionBegan || !ns[0].Snapshot.Hardware.OtherAudioPlaying {
		t.Errorf("began = %+v", ns[0])
	}
	if ns[1].Interruption != session.InterruptionEnded || !ns[1].ShouldResume {
		t.Errorf("ended = %+v", ns[1])
	}
}

func TestPlatform_ResetMediaServices(t *testing.T) {
	t.Parallel()
	p := New()
	_ = p.ApplyCategory(context.Background(), recordingConfig())
	c, _ := subscribe(t, p)

	p.ResetMediaServices()
	ns := c.wait(t, 1)
	if ns[0].Kind != session.MediaServicesReset || ns[0].Snapshot != nil {
		t.Errorf("notification = %+v", ns[0])
	}
	s, _ := p.Query(context.Background())
	if s.Category != session.CategorySoloAmbient {
		t.Errorf("Category = %q after reset", s.Category)
	}
}

func TestPlatform_CancelStopsDelivery(t *testing.T) {
	t.Parallel()
	p := New()
	c, sub := subscribe(t, p)

	if err := sub.Cancel(); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := sub.Cancel(); err != nil {
		t.Fatalf("second Cancel: %v", err)
	}
	if p.Subscribers() != 0 {
		t.Errorf("Subscribers = %d", p.Subscribers())
	}
	p.Connect(AirPods)
	time.Sleep(20 * time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ns) != 0 {
		t.Errorf("received %d notifications after Cancel", len(c.ns))
	}
}

func TestPlatform_CancelDoesNotWaitForHandler(t *testing.T) {
	t.Parallel()
	p := New()
	entered := make(chan struct{})
	release := make(chan struct{})
	sub, err := p.Subscribe(func(session.Notification) {
		close(entered)
		<-release
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	p.Connect(AirPods)
	<-entered

	done := make(chan struct{})
	go func() {
		_ = sub.Cancel()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Cancel waited for the running handler")
	}
	close(release)
}

func TestPlatform_FailQueries(t *testing.T) {
	t.Parallel()
	p := New()
	p.FailQueries(errors.New("daemon restarting"))
	if _, err := p.Query(context.Background()); !errors.Is(err, session.ErrQueryFailed) {
		t.Errorf("err = %v, want ErrQueryFailed", err)
	}
	p.FailQueries(nil)
	if _, err := p.Query(context.Background()); err != nil {
		t.Errorf("Query after recovery: %v", err)
	}
}

func TestPlatform_Run(t *testing.T) {
	t.Parallel()
	p := New()
	c, _ := subscribe(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, 5*time.Millisecond) }()

	ns := c.wait(t, 2)
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run: %v", err)
	}
	if ns[0].Snapshot.OutputRoute() != session.RouteBluetooth {
		t.Errorf("first step route = %q, want bluetooth", ns[0].Snapshot.OutputRoute())
	}
	if ns[1].Reason != session.ReasonOldDeviceUnavailable {
		t.Errorf("second step reason = %q", ns[1].Reason)
	}
}

func TestPlatform_CaptureTimesIncrease(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	p := New(WithClock(func() time.Time { return fixed }))

	var prev time.Time
	for i := range 5 {
		s, err := p.Query(context.Background())
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if i > 0 && !s.Timestamp.After(prev) {
			t.Fatalf("capture %d at %v, not after %v", i, s.Timestamp, prev)
		}
		prev = s.Timestamp
	}
}
