// Package bridge holds the process-wide monitor behind the flat plugin
// surface. Every operation returns plain values: failures are logged and
// reported inside the settings blob, panics are recovered, and nothing is
// returned as an error to the host.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/internal/monitor"
	"github.com/MrWong99/audiosession/internal/platform"
	"github.com/MrWong99/audiosession/internal/platform/simulated"
	"github.com/MrWong99/audiosession/pkg/session"
)

// opTimeout bounds a single platform call made on behalf of the host.
const opTimeout = 2 * time.Second

// Audio mode codes accepted by [Bridge.SetAudioMode].
const (
	AudioModeDefault   = 0
	AudioModeVoiceChat = 1
	AudioModeVideoChat = 2
)

// Bridge adapts a [monitor.Monitor] to the flat host surface.
type Bridge struct {
	mon *monitor.Monitor
	now func() time.Time

	logLevel *slog.LevelVar
	watcher  *config.Watcher
}

// New returns a Bridge for mon.
func New(mon *monitor.Monitor) *Bridge {
	return &Bridge{mon: mon, now: time.Now, logLevel: new(slog.LevelVar)}
}

// Monitor returns the wrapped monitor.
func (b *Bridge) Monitor() *monitor.Monitor { return b.mon }

var (
	shared     *Bridge
	sharedOnce sync.Once
)

// Default returns the process-wide Bridge, building it on first use from the
// environment (see [config.LoadEnv]). A config or backend that fails to load
// is logged and replaced so the host always gets a working monitor.
func Default() *Bridge {
	sharedOnce.Do(func() {
		shared = buildSafe(platform.New)
	})
	return shared
}

// buildSafe is build with a last-resort simulated backend when building
// panics.
func buildSafe(newPlatform func(*config.Config) (session.Platform, error)) (b *Bridge) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audiosession: setup panicked, using simulated backend", "panic", r)
			b = New(monitor.New(simulated.New()))
		}
	}()
	return build(newPlatform)
}

func build(newPlatform func(*config.Config) (session.Platform, error)) *Bridge {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadEnv()
	if err != nil {
		slog.Error("audiosession: invalid configuration, using defaults", "err", err)
		cfg = config.Default()
	}
	level.Set(cfg.LogLevel.SlogLevel())

	p, err := newPlatform(cfg)
	if err != nil {
		slog.Error("audiosession: platform unavailable, using default backend",
			"platform", cfg.Platform, "default", platform.DefaultName(), "err", err)
		if p, err = newPlatform(config.Default()); err != nil {
			slog.Error("audiosession: default platform unavailable, using simulated backend", "err", err)
			p = simulated.New()
		}
	}

	b := New(monitor.New(p, monitor.ConfigOptions(cfg)...))
	b.logLevel = level

	if path := os.Getenv(config.EnvConfigPath); path != "" {
		w, err := config.NewWatcher(path, b.ApplyConfig)
		if err != nil {
			slog.Warn("audiosession: config hot reload disabled", "path", path, "err", err)
		} else {
			b.watcher = w
		}
	}

	slog.Info("audiosession: ready", "platform", p.Name(), "log_level", cfg.LogLevel)
	return b
}

// ApplyConfig applies the hot-reloadable parts of a changed config.
func (b *Bridge) ApplyConfig(_, _ *config.Config, diff config.ConfigDiff) {
	if diff.LogLevelChanged {
		b.logLevel.Set(diff.NewLogLevel.SlogLevel())
		slog.Info("audiosession: log level changed", "level", diff.NewLogLevel)
	}
	if diff.RecordingChanged {
		b.mon.SetRecordingConfig(diff.NewRecording.CategoryConfig())
		slog.Info("audiosession: recording profile changed",
			"category", diff.NewRecording.Category, "mode", diff.NewRecording.Mode)
	}
	if len(diff.RestartRequired) > 0 {
		slog.Warn("audiosession: changes need a restart", "sections", diff.RestartRequired)
	}
}

// GetCurrentSettings returns the current session state as a settings blob.
// The result always carries every required key.
func (b *Bridge) GetCurrentSettings() (blob string) {
	defer b.recoverSettings("GetCurrentSettings", &blob)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	snap := b.mon.Settings(ctx)
	data, err := session.Encode(snap)
	if err != nil {
		return b.unavailable(fmt.Errorf("encode settings: %w", err))
	}
	return string(data)
}

// StartMonitoring begins observing the session. Calling it while already
// monitoring has no effect.
func (b *Bridge) StartMonitoring() {
	defer b.recoverPanic("StartMonitoring")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	// The monitor records the failure for the next settings read.
	_ = b.mon.Start(ctx)
}

// StopMonitoring stops observing the session. Calling it while stopped has no
// effect.
func (b *Bridge) StopMonitoring() {
	defer b.recoverPanic("StopMonitoring")
	_ = b.mon.Stop()
}

// PrepareAudioSessionForRecording applies the recording profile.
func (b *Bridge) PrepareAudioSessionForRecording() {
	defer b.recoverPanic("PrepareAudioSessionForRecording")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = b.mon.PrepareForRecording(ctx)
}

// ToggleLargeSpeaker forces output to the loud speaker when enabled is
// nonzero and releases the override otherwise.
func (b *Bridge) ToggleLargeSpeaker(enabled int) {
	defer b.recoverPanic("ToggleLargeSpeaker")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = b.mon.ToggleLargeSpeaker(ctx, enabled != 0)
}

// SetAudioMode applies the recording profile with the mode selected by code
// (see the AudioMode constants). Unknown codes are reported as unsupported in
// the next settings blob.
func (b *Bridge) SetAudioMode(code int) {
	defer b.recoverPanic("SetAudioMode")

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	_ = b.mon.SetMode(ctx, modeFromCode(code))
}

// PollEvent removes the oldest pending event and returns it as JSON. ok is
// false when no event is pending.
func (b *Bridge) PollEvent() (event string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("audiosession: panic recovered", "op", "PollEvent", "panic", r)
			event, ok = "", false
		}
	}()

	ev, ok := b.mon.Poll()
	if !ok {
		return "", false
	}
	data, err := ev.MarshalJSON()
	if err != nil {
		slog.Warn("audiosession: drop unencodable event", "type", ev.Type, "err", err)
		return "", false
	}
	return string(data), true
}

// Close stops monitoring and config hot reload.
func (b *Bridge) Close() {
	defer b.recoverPanic("Close")
	if b.watcher != nil {
		b.watcher.Stop()
	}
	_ = b.mon.Stop()
}

func modeFromCode(code int) session.Mode {
	switch code {
	case AudioModeDefault:
		return session.ModeDefault
	case AudioModeVoiceChat:
		return session.ModeVoiceChat
	case AudioModeVideoChat:
		return session.ModeVideoChat
	default:
		return session.Mode(fmt.Sprintf("code(%d)", code))
	}
}

func (b *Bridge) recoverPanic(op string) {
	if r := recover(); r != nil {
		slog.Error("audiosession: panic recovered", "op", op, "panic", r)
	}
}

func (b *Bridge) recoverSettings(op string, blob *string) {
	if r := recover(); r != nil {
		slog.Error("audiosession: panic recovered", "op", op, "panic", r)
		*blob = b.unavailable(fmt.Errorf("%s: panic: %v", op, r))
	}
}

// unavailable encodes the snapshot reported when no state could be produced.
func (b *Bridge) unavailable(err error) string {
	data, encErr := session.Encode(session.Unavailable(err, b.now()))
	if encErr != nil {
		return fallbackBlob
	}
	return string(data)
}

// fallbackBlob is used only if encoding itself is broken.
const fallbackBlob = `{"timestamp":"1970-01-01T00:00:00Z","outputRoute":"unknown","inputRoute":"unknown","sampleRate":0,"ioBufferDuration":0,"category":"unknown","largeSpeakerActive":false,"error":"settings unavailable","errorKind":"internal"}`
