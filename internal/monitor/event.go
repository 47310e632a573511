package monitor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrWong99/audiosession/pkg/session"
	"github.com/tidwall/gjson"
)

// Event is what the monitor reports to the host for every handled
// notification: the notification itself plus the settings observed after it.
type Event struct {
	Type         session.NotificationKind
	Reason       string
	Interruption session.InterruptionType
	ShouldResume bool
	Settings     session.Snapshot
	Time         time.Time
}

type wireEvent struct {
	Type             string           `json:"type"`
	Reason           string           `json:"reason,omitempty"`
	InterruptionType string           `json:"interruptionType,omitempty"`
	ShouldResume     bool             `json:"shouldResume,omitempty"`
	Time             string           `json:"time"`
	Settings         session.Snapshot `json:"settings"`
}

// MarshalJSON implements [json.Marshaler].
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		Type:     e.Type.String(),
		Reason:   e.Reason,
		Time:     e.Time.UTC().Format(time.RFC3339Nano),
		Settings: e.Settings,
	}
	if e.Type == session.Interruption {
		w.InterruptionType = e.Interruption.String()
		w.ShouldResume = e.ShouldResume
	}
	return json.Marshal(w)
}

// ParseEvent decodes an event produced by [Event.MarshalJSON].
func ParseEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, fmt.Errorf("%w: event is not valid JSON", session.ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	kind, ok := parseKind(root.Get("type").String())
	if !ok {
		return Event{}, fmt.Errorf("%w: unknown event type %q", session.ErrMalformed, root.Get("type").String())
	}
	settings, err := session.DecodeSnapshot([]byte(root.Get("settings").Raw))
	if err != nil {
		return Event{}, fmt.Errorf("event settings: %w", err)
	}
	ev := Event{
		Type:         kind,
		Reason:       root.Get("reason").String(),
		ShouldResume: root.Get("shouldResume").Bool(),
		Settings:     settings,
	}
	switch root.Get("interruptionType").String() {
	case "began":
		ev.Interruption = session.InterruptionBegan
	case "ended":
		ev.Interruption = session.InterruptionEnded
	}
	if ts := root.Get("time").String(); ts != "" {
		if ev.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Event{}, fmt.Errorf("%w: event time: %v", session.ErrMalformed, err)
		}
	}
	return ev, nil
}

func parseKind(s string) (session.NotificationKind, bool) {
	for _, k := range []session.NotificationKind{session.RouteChange, session.Interruption, session.MediaServicesReset} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
