// Package config provides the configuration schema, loader, watcher and
// platform registry for the audio-session monitor.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/audiosession/pkg/session"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l onto an [slog.Level]. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Platform selects the registered session backend by name. Empty selects
	// the default backend for the build target.
	Platform string `yaml:"platform"`

	Monitor   MonitorConfig   `yaml:"monitor"`
	Recording RecordingConfig `yaml:"recording"`
	Debug     DebugConfig     `yaml:"debug"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

// MonitorConfig tunes the session monitor.
type MonitorConfig struct {
	// EventQueueSize bounds the number of undelivered host events. When full,
	// the oldest event is dropped.
	EventQueueSize int `yaml:"event_queue_size"`

	// QueryBreaker guards on-demand platform queries.
	QueryBreaker BreakerConfig `yaml:"query_breaker"`
}

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open before probing.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// RecordingConfig is the session configuration applied by
// PrepareAudioSessionForRecording.
type RecordingConfig struct {
	Category session.Category `yaml:"category"`
	Mode     session.Mode     `yaml:"mode"`
	Options  OptionsConfig    `yaml:"options"`

	// PreferredSampleRate in Hz. Zero keeps the platform default.
	PreferredSampleRate float64 `yaml:"preferred_sample_rate"`

	// PreferredIOBufferDuration. Zero keeps the platform default.
	PreferredIOBufferDuration time.Duration `yaml:"preferred_io_buffer_duration"`
}

// OptionsConfig mirrors [session.CategoryOptions] with YAML names.
type OptionsConfig struct {
	AllowBluetooth     bool `yaml:"allow_bluetooth"`
	AllowBluetoothA2DP bool `yaml:"allow_bluetooth_a2dp"`
	AllowAirPlay       bool `yaml:"allow_airplay"`
	DefaultToSpeaker   bool `yaml:"default_to_speaker"`
	MixWithOthers      bool `yaml:"mix_with_others"`
	DuckOthers         bool `yaml:"duck_others"`
}

// CategoryConfig converts r into the platform command payload.
func (r RecordingConfig) CategoryConfig() session.CategoryConfig {
	return session.CategoryConfig{
		Category: r.Category,
		Mode:     r.Mode,
		Options: session.CategoryOptions{
			AllowBluetooth:     r.Options.AllowBluetooth,
			AllowBluetoothA2DP: r.Options.AllowBluetoothA2DP,
			AllowAirPlay:       r.Options.AllowAirPlay,
			DefaultToSpeaker:   r.Options.DefaultToSpeaker,
			MixWithOthers:      r.Options.MixWithOthers,
			DuckOthers:         r.Options.DuckOthers,
		},
		PreferredSampleRate:       r.PreferredSampleRate,
		PreferredIOBufferDuration: r.PreferredIOBufferDuration,
	}
}

// DebugConfig configures the developer HTTP server of sessionctl.
type DebugConfig struct {
	// ListenAddr is the TCP address to listen on (e.g. "127.0.0.1:8089").
	ListenAddr string `yaml:"listen_addr"`
}

// MQTTConfig configures the optional MQTT event sink. An empty Broker
// disables it.
type MQTTConfig struct {
	// Broker is the broker URL (e.g. "tcp://localhost:1883").
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// Topic is the publish topic. "{type}" is replaced by the event type.
	Topic string `yaml:"topic"`

	// QoS is the MQTT quality of service level (0, 1 or 2).
	QoS int `yaml:"qos"`

	// Retained marks published messages as retained.
	Retained bool `yaml:"retained"`
}

// Defaults used by [ApplyDefaults].
const (
	DefaultEventQueueSize      = 64
	DefaultBreakerMaxFailures  = 5
	DefaultBreakerResetTimeout = 10 * time.Second
	DefaultPreferredSampleRate = 48000
	DefaultPreferredIOBuffer   = 5 * time.Millisecond
	DefaultDebugListenAddr     = "127.0.0.1:8089"
	DefaultMQTTClientID        = "audiosession"
	DefaultMQTTTopic           = "audiosession/{type}"
	DefaultMQTTQoS             = 1
	defaultRecordingCategory   = session.CategoryPlayAndRecord
	defaultRecordingMode       = session.ModeVoiceChat
	defaultLogLevel            = LogInfo
)

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{
		Recording: RecordingConfig{
			Options: OptionsConfig{
				AllowBluetooth:     true,
				AllowBluetoothA2DP: true,
				DefaultToSpeaker:   true,
			},
		},
		MQTT: MQTTConfig{QoS: DefaultMQTTQoS},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields of cfg with their defaults.
// Boolean category options are left as configured.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.Monitor.EventQueueSize == 0 {
		cfg.Monitor.EventQueueSize = DefaultEventQueueSize
	}
	if cfg.Monitor.QueryBreaker.MaxFailures == 0 {
		cfg.Monitor.QueryBreaker.MaxFailures = DefaultBreakerMaxFailures
	}
	if cfg.Monitor.QueryBreaker.ResetTimeout == 0 {
		cfg.Monitor.QueryBreaker.ResetTimeout = DefaultBreakerResetTimeout
	}
	if cfg.Recording.Category == "" {
		cfg.Recording.Category = defaultRecordingCategory
	}
	if cfg.Recording.Mode == "" {
		cfg.Recording.Mode = defaultRecordingMode
	}
	if cfg.Recording.PreferredSampleRate == 0 {
		cfg.Recording.PreferredSampleRate = DefaultPreferredSampleRate
	}
	if cfg.Recording.PreferredIOBufferDuration == 0 {
		cfg.Recording.PreferredIOBufferDuration = DefaultPreferredIOBuffer
	}
	if cfg.Debug.ListenAddr == "" {
		cfg.Debug.ListenAddr = DefaultDebugListenAddr
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = DefaultMQTTClientID
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultMQTTTopic
	}
}

const maxIOBufferDuration = 500 * time.Millisecond
