package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/MrWong99/audiosession/pkg/session"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by [LoadEnv].
const (
	EnvConfigPath = "AUDIOSESSION_CONFIG"
	EnvLogLevel   = "AUDIOSESSION_LOG_LEVEL"
	EnvPlatform   = "AUDIOSESSION_PLATFORM"
	EnvDebugAddr  = "AUDIOSESSION_DEBUG_ADDR"
	EnvMQTTBroker = "AUDIOSESSION_MQTT_BROKER"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnv builds the configuration used by the embedded library. The file
// named by AUDIOSESSION_CONFIG is loaded when set; otherwise the defaults are
// used. The remaining AUDIOSESSION_* variables override single fields.
func LoadEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v := os.Getenv(EnvPlatform); v != "" {
		cfg.Platform = v
	}
	if v := os.Getenv(EnvDebugAddr); v != "" {
		cfg.Debug.ListenAddr = v
	}
	if v := os.Getenv(EnvMQTTBroker); v != "" {
		cfg.MQTT.Broker = v
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	// Monitor
	if cfg.Monitor.EventQueueSize < 0 {
		errs = append(errs, fmt.Errorf("monitor.event_queue_size %d must not be negative", cfg.Monitor.EventQueueSize))
	}
	if cfg.Monitor.QueryBreaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("monitor.query_breaker.max_failures %d must not be negative", cfg.Monitor.QueryBreaker.MaxFailures))
	}
	if cfg.Monitor.QueryBreaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("monitor.query_breaker.reset_timeout %s must not be negative", cfg.Monitor.QueryBreaker.ResetTimeout))
	}

	// Recording
	rec := cfg.Recording
	if rec.Category != "" && !rec.Category.IsValid() {
		errs = append(errs, fmt.Errorf("recording.category %q is invalid", rec.Category))
	}
	if rec.Mode != "" && !rec.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("recording.mode %q is invalid", rec.Mode))
	}
	if rec.Category != session.CategoryPlayAndRecord && rec.Options.DefaultToSpeaker {
		slog.Warn("recording.options.default_to_speaker only applies to playAndRecord; the platform may reject it",
			"category", rec.Category,
		)
	}
	if rec.PreferredSampleRate < 0 || rec.PreferredSampleRate > 192000 {
		errs = append(errs, fmt.Errorf("recording.preferred_sample_rate %.0f is out of range [0, 192000]", rec.PreferredSampleRate))
	}
	if rec.PreferredIOBufferDuration < 0 || rec.PreferredIOBufferDuration > maxIOBufferDuration {
		errs = append(errs, fmt.Errorf("recording.preferred_io_buffer_duration %s is out of range [0, %s]", rec.PreferredIOBufferDuration, maxIOBufferDuration))
	}

	// MQTT
	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d is invalid; valid values: 0, 1, 2", cfg.MQTT.QoS))
	}
	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		errs = append(errs, errors.New("mqtt.topic is required when mqtt.broker is set"))
	}

	return errors.Join(errs...)
}
