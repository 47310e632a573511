package config_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/MrWong99/audiosession/internal/config"
	"github.com/MrWong99/audiosession/pkg/session"
)

func TestLogLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		level config.LogLevel
		valid bool
		slog  slog.Level
	}{
		{config.LogDebug, true, slog.LevelDebug},
		{config.LogInfo, true, slog.LevelInfo},
		{config.LogWarn, true, slog.LevelWarn},
		{config.LogError, true, slog.LevelError},
		{"trace", false, slog.LevelInfo},
		{"", false, slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := tc.level.IsValid(); got != tc.valid {
			t.Errorf("%q.IsValid() = %v, want %v", tc.level, got, tc.valid)
		}
		if got := tc.level.SlogLevel(); got != tc.slog {
			t.Errorf("%q.SlogLevel() = %v, want %v", tc.level, got, tc.slog)
		}
	}
}

func TestRecordingConfig_CategoryConfig(t *testing.T) {
	t.Parallel()
	rec := config.RecordingConfig{
		Category: session.CategoryPlayAndRecord,
		Mode:     session.ModeVoiceChat,
		Options: config.OptionsConfig{
			AllowBluetooth:   true,
			DefaultToSpeaker: true,
			DuckOthers:       true,
		},
		PreferredSampleRate:       48000,
		PreferredIOBufferDuration: 5 * time.Millisecond,
	}
	got := rec.CategoryConfig()
	want := session.CategoryConfig{
		Category: session.CategoryPlayAndRecord,
		Mode:     session.ModeVoiceChat,
		Options: session.CategoryOptions{
			AllowBluetooth:   true,
			DefaultToSpeaker: true,
			DuckOthers:       true,
		},
		PreferredSampleRate:       48000,
		PreferredIOBufferDuration: 5 * time.Millisecond,
	}
	if got != want {
		t.Errorf("CategoryConfig() = %+v, want %+v", got, want)
	}
}

func TestApplyDefaults_KeepsSetValues(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		LogLevel: config.LogError,
		Monitor:  config.MonitorConfig{EventQueueSize: 3},
		Debug:    config.DebugConfig{ListenAddr: ":1"},
	}
	config.ApplyDefaults(cfg)
	if cfg.LogLevel != config.LogError || cfg.Monitor.EventQueueSize != 3 || cfg.Debug.ListenAddr != ":1" {
		t.Errorf("set values overwritten: %+v", cfg)
	}
	if cfg.Monitor.QueryBreaker.MaxFailures != config.DefaultBreakerMaxFailures {
		t.Errorf("MaxFailures = %d", cfg.Monitor.QueryBreaker.MaxFailures)
	}
	if cfg.MQTT.Topic != config.DefaultMQTTTopic {
		t.Errorf("Topic = %q", cfg.MQTT.Topic)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	var gotCfg *config.Config
	r.Register("fake", func(cfg *config.Config) (session.Platform, error) {
		gotCfg = cfg
		return nil, nil
	})
	r.Register("another", func(*config.Config) (session.Platform, error) { return nil, nil })

	cfg := config.Default()
	if _, err := r.Create("fake", cfg); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotCfg != cfg {
		t.Error("factory did not receive the config")
	}
	if _, err := r.Create("missing", cfg); !errors.Is(err, config.ErrPlatformNotRegistered) {
		t.Errorf("err = %v, want ErrPlatformNotRegistered", err)
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "another" || names[1] != "fake" {
		t.Errorf("Names() = %v", names)
	}
}
