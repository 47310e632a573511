// Package session defines the types and interfaces shared by every audio
// session backend.
//
// The two primary abstractions are:
//
//   - [Platform] is the process-wide audio session of the host OS. It answers
//     state queries, accepts configuration commands, and delivers
//     [Notification] values to subscribers.
//   - [Snapshot] is an immutable, timestamped capture of session attributes
//     (routes, category, sample rate, buffer duration, speaker override).
//
// Snapshots cross the plugin boundary as a compact JSON object produced by
// [Encode] and read back by [DecodeSnapshot] or [ParseSettings].
//
// This package lives under pkg/ because platform adapters outside the module
// (tests, simulators, other mobile OSes) are expected to implement [Platform].
package session

import (
	"context"
	"time"
)

// NotificationKind classifies a notification delivered by a [Platform].
type NotificationKind int

const (
	// RouteChange is delivered when the input or output route changes.
	RouteChange NotificationKind = iota

	// Interruption is delivered when another process takes or releases
	// exclusive control of the audio session.
	Interruption

	// MediaServicesReset is delivered when the platform media daemon restarts
	// and all session configuration has been lost.
	MediaServicesReset
)

// String returns the wire name of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case RouteChange:
		return "routeChange"
	case Interruption:
		return "interruption"
	case MediaServicesReset:
		return "mediaServicesReset"
	default:
		return "unknown"
	}
}

// InterruptionType tells whether an interruption started or finished.
type InterruptionType int

const (
	// InterruptionNone is used for notifications that are not interruptions.
	InterruptionNone InterruptionType = iota
	InterruptionBegan
	InterruptionEnded
)

// String returns the wire name of the interruption type.
func (t InterruptionType) String() string {
	switch t {
	case InterruptionBegan:
		return "began"
	case InterruptionEnded:
		return "ended"
	default:
		return "none"
	}
}

// Common route-change reasons reported by platforms. Platforms may report
// other values; consumers must treat the set as open.
const (
	ReasonUnknown                  = "unknown"
	ReasonNewDeviceAvailable       = "newDeviceAvailable"
	ReasonOldDeviceUnavailable     = "oldDeviceUnavailable"
	ReasonCategoryChange           = "categoryChange"
	ReasonOverride                 = "override"
	ReasonWakeFromSleep            = "wakeFromSleep"
	ReasonNoSuitableRoute          = "noSuitableRouteForCategory"
	ReasonRouteConfigurationChange = "routeConfigurationChange"
	ReasonAppWasSuspended          = "appWasSuspended"
	ReasonBuiltInMicMuted          = "builtInMicMuted"
)

// Notification is a single event delivered by a [Platform] to a [Handler].
type Notification struct {
	// Kind classifies the notification.
	Kind NotificationKind

	// Reason is the platform-provided reason (see the Reason* constants).
	Reason string

	// Interruption is set for [Interruption] notifications.
	Interruption InterruptionType

	// ShouldResume is set on [InterruptionEnded] when the platform suggests
	// resuming playback.
	ShouldResume bool

	// Snapshot optionally carries the session state observed by the platform
	// when the notification fired. When nil, receivers query the platform.
	Snapshot *Snapshot
}

// Handler receives notifications. It is invoked on a platform-owned goroutine
// or thread, never on the goroutine that subscribed.
type Handler func(Notification)

// Subscription is an active registration created by [Platform.Subscribe].
type Subscription interface {
	// Cancel removes the registration. After Cancel returns the platform does
	// not start new handler invocations for this subscription. Cancel must not
	// wait for handler invocations that are already running, because callers
	// may hold locks those handlers need. Calling Cancel twice is a no-op.
	Cancel() error
}

// CategoryConfig is the full set of session parameters applied by
// [Platform.ApplyCategory].
type CategoryConfig struct {
	Category Category
	Mode     Mode
	Options  CategoryOptions

	// PreferredSampleRate in Hz. Zero leaves the platform default.
	PreferredSampleRate float64

	// PreferredIOBufferDuration. Zero leaves the platform default.
	PreferredIOBufferDuration time.Duration
}

// Platform is the process-wide audio session of the host OS.
//
// Implementations must be safe for concurrent use.
type Platform interface {
	// Name identifies the backend in logs (e.g. "avaudiosession", "simulated").
	Name() string

	// Query reads the current session state. Failures wrap [ErrQueryFailed].
	Query(ctx context.Context) (Snapshot, error)

	// Subscribe registers h for route-change, interruption and media reset
	// notifications. Failures wrap [ErrSubscription].
	Subscribe(h Handler) (Subscription, error)

	// ApplyCategory sets category, mode, options and preferred hardware
	// values, then activates the session. Rejections wrap
	// [ErrConfigurationRejected].
	ApplyCategory(ctx context.Context, cfg CategoryConfig) error

	// OverrideOutputToSpeaker forces (enabled) or releases the loud-speaker
	// output route. Rejections wrap [ErrConfigurationRejected].
	OverrideOutputToSpeaker(ctx context.Context, enabled bool) error
}
