package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RecordingChanged is true when the profile applied by
	// PrepareAudioSessionForRecording changed. It takes effect on the next
	// prepare call.
	RecordingChanged bool
	NewRecording     RecordingConfig

	// RestartRequired lists the top-level sections whose changes are ignored
	// until the process restarts.
	RestartRequired []string
}

// HasChanges reports whether d carries anything to apply or report.
func (d ConfigDiff) HasChanges() bool {
	return d.LogLevelChanged || d.RecordingChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	if old.Recording != new.Recording {
		d.RecordingChanged = true
		d.NewRecording = new.Recording
	}

	if old.Platform != new.Platform {
		d.RestartRequired = append(d.RestartRequired, "platform")
	}
	if old.Monitor != new.Monitor {
		d.RestartRequired = append(d.RestartRequired, "monitor")
	}
	if old.Debug != new.Debug {
		d.RestartRequired = append(d.RestartRequired, "debug")
	}
	if old.MQTT != new.MQTT {
		d.RestartRequired = append(d.RestartRequired, "mqtt")
	}

	return d
}
