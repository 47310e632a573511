package avsession

import "github.com/MrWong99/audiosession/pkg/session"

// Notification kinds and interruption types passed by the bridge. Must match
// the enums in native/avsession.m.
const (
	wireRouteChange  = 0
	wireInterruption = 1
	wireMediaReset   = 2

	wireInterruptionBegan = 1
	wireInterruptionEnded = 2
)

// Category option bits passed to and from the bridge.
const (
	optAllowBluetooth = 1 << iota
	optAllowBluetoothA2DP
	optAllowAirPlay
	optDefaultToSpeaker
	optMixWithOthers
	optDuckOthers
)

func optionBits(o session.CategoryOptions) int {
	var bits int
	if o.AllowBluetooth {
		bits |= optAllowBluetooth
	}
	if o.AllowBluetoothA2DP {
		bits |= optAllowBluetoothA2DP
	}
	if o.AllowAirPlay {
		bits |= optAllowAirPlay
	}
	if o.DefaultToSpeaker {
		bits |= optDefaultToSpeaker
	}
	if o.MixWithOthers {
		bits |= optMixWithOthers
	}
	if o.DuckOthers {
		bits |= optDuckOthers
	}
	return bits
}

func notificationFrom(kind int, reason string, interruption int, shouldResume bool) session.Notification {
	n := session.Notification{Reason: reason}
	switch kind {
	case wireRouteChange:
		n.Kind = session.RouteChange
		if n.Reason == "" {
			n.Reason = session.ReasonUnknown
		}
	case wireInterruption:
		n.Kind = session.Interruption
		n.Interruption = session.InterruptionBegan
		if interruption == wireInterruptionEnded {
			n.Interruption = session.InterruptionEnded
			n.ShouldResume = shouldResume
		}
	case wireMediaReset:
		n.Kind = session.MediaServicesReset
	default:
		n.Kind = session.RouteChange
		n.Reason = session.ReasonUnknown
	}
	return n
}
