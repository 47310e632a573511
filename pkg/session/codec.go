package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/tidwall/gjson"
)

// Settings blob keys that every encoded snapshot carries.
const (
	KeyTimestamp          = "timestamp"
	KeyOutputRoute        = "outputRoute"
	KeyInputRoute         = "inputRoute"
	KeySampleRate         = "sampleRate"
	KeyIOBufferDuration   = "ioBufferDuration"
	KeyCategory           = "category"
	KeyLargeSpeakerActive = "largeSpeakerActive"
	KeyMode               = "mode"
	KeyCategoryOptions    = "categoryOptions"
	KeyRouting            = "routing"
	KeyHardware           = "hardware"
	KeyError              = "error"
	KeyErrorKind          = "errorKind"
)

// RequiredKeys lists the keys present in every settings blob, including the
// ones produced for failed queries.
var RequiredKeys = []string{
	KeyTimestamp,
	KeyOutputRoute,
	KeyInputRoute,
	KeySampleRate,
	KeyIOBufferDuration,
	KeyCategory,
	KeyLargeSpeakerActive,
}

// ErrMalformed is returned when a settings blob cannot be decoded.
var ErrMalformed = errors.New("session: malformed settings blob")

// wireSnapshot fixes the key order and value types of the settings blob.
type wireSnapshot struct {
	Timestamp          string          `json:"timestamp"`
	OutputRoute        Route           `json:"outputRoute"`
	InputRoute         Route           `json:"inputRoute"`
	SampleRate         float64         `json:"sampleRate"`
	IOBufferDuration   float64         `json:"ioBufferDuration"`
	Category           Category        `json:"category"`
	LargeSpeakerActive bool            `json:"largeSpeakerActive"`
	Mode               Mode            `json:"mode"`
	CategoryOptions    CategoryOptions `json:"categoryOptions"`
	Routing            Routing         `json:"routing"`
	Hardware           Hardware        `json:"hardware"`
	Error              string          `json:"error,omitempty"`
	ErrorKind          ErrorKind       `json:"errorKind,omitempty"`
}

func toWire(s Snapshot) wireSnapshot {
	routing := Routing{Inputs: s.Routing.Inputs, Outputs: s.Routing.Outputs}
	if routing.Inputs == nil {
		routing.Inputs = []Port{}
	}
	if routing.Outputs == nil {
		routing.Outputs = []Port{}
	}
	category := s.Category
	if category == "" {
		category = CategoryUnknown
	}
	mode := s.Mode
	if mode == "" {
		mode = ModeUnknown
	}
	return wireSnapshot{
		Timestamp:          s.Timestamp.UTC().Format(time.RFC3339Nano),
		OutputRoute:        s.OutputRoute(),
		InputRoute:         s.InputRoute(),
		SampleRate:         s.SampleRate,
		IOBufferDuration:   s.IOBufferDuration.Seconds(),
		Category:           category,
		LargeSpeakerActive: s.LargeSpeakerActive,
		Mode:               mode,
		CategoryOptions:    s.Options,
		Routing:            routing,
		Hardware:           s.Hardware,
		Error:              s.Err,
		ErrorKind:          s.ErrKind,
	}
}

// Encode serialises s into the settings blob.
func Encode(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(toWire(s))
	if err != nil {
		return nil, fmt.Errorf("session: encode snapshot: %w", err)
	}
	return b, nil
}

// MarshalJSON implements [json.Marshaler] using the settings blob layout.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(toWire(s))
}

// UnmarshalJSON implements [json.Unmarshaler] using [DecodeSnapshot].
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// DecodeSnapshot reads a settings blob produced by [Encode]. Unknown keys are
// ignored; missing required keys are reported as [ErrMalformed].
func DecodeSnapshot(data []byte) (Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return Snapshot{}, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Snapshot{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	if missing := missingKeys(root); len(missing) > 0 {
		return Snapshot{}, fmt.Errorf("%w: missing keys %v", ErrMalformed, missing)
	}

	var s Snapshot
	ts, err := time.Parse(time.RFC3339Nano, root.Get(KeyTimestamp).String())
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: timestamp: %v", ErrMalformed, err)
	}
	s.Timestamp = ts
	s.Category = Category(root.Get(KeyCategory).String())
	s.Mode = Mode(root.Get(KeyMode).String())
	s.SampleRate = root.Get(KeySampleRate).Float()
	s.IOBufferDuration = secondsToDuration(root.Get(KeyIOBufferDuration).Float())
	s.LargeSpeakerActive = root.Get(KeyLargeSpeakerActive).Bool()
	s.Err = root.Get(KeyError).String()
	s.ErrKind = ErrorKind(root.Get(KeyErrorKind).String())

	opts := root.Get(KeyCategoryOptions)
	s.Options = CategoryOptions{
		AllowBluetooth:     opts.Get("allowBluetooth").Bool(),
		AllowBluetoothA2DP: opts.Get("allowBluetoothA2DP").Bool(),
		AllowAirPlay:       opts.Get("allowAirPlay").Bool(),
		DefaultToSpeaker:   opts.Get("defaultToSpeaker").Bool(),
		MixWithOthers:      opts.Get("mixWithOthers").Bool(),
		DuckOthers:         opts.Get("duckOthers").Bool(),
	}

	hw := root.Get(KeyHardware)
	s.Hardware = Hardware{
		InputAvailable:            hw.Get("inputAvailable").Bool(),
		OtherAudioPlaying:         hw.Get("otherAudioPlaying").Bool(),
		InputGain:                 hw.Get("inputGain").Float(),
		OutputVolume:              hw.Get("outputVolume").Float(),
		PreferredSampleRate:       hw.Get("preferredSampleRate").Float(),
		PreferredIOBufferDuration: hw.Get("preferredIOBufferDuration").Float(),
		InputLatency:              hw.Get("inputLatency").Float(),
		OutputLatency:             hw.Get("outputLatency").Float(),
	}

	routing := root.Get(KeyRouting)
	s.Routing.Inputs = decodePorts(routing.Get("inputs"))
	s.Routing.Outputs = decodePorts(routing.Get("outputs"))

	// Blobs written by other producers may carry only the flat keys.
	if len(s.Routing.Outputs) == 0 {
		if r := Route(root.Get(KeyOutputRoute).String()); r != RouteNone && r != RouteUnknown {
			s.Routing.Outputs = []Port{{Type: r}}
		}
	}
	if len(s.Routing.Inputs) == 0 {
		if r := Route(root.Get(KeyInputRoute).String()); r != RouteNone && r != RouteUnknown {
			s.Routing.Inputs = []Port{{Type: r}}
		}
	}
	return s, nil
}

func decodePorts(v gjson.Result) []Port {
	if !v.IsArray() {
		return nil
	}
	var ports []Port
	v.ForEach(func(_, p gjson.Result) bool {
		ports = append(ports, Port{
			Type:     Route(p.Get("portType").String()),
			Name:     p.Get("portName").String(),
			Channels: int(p.Get("channels").Int()),
			BuiltIn:  p.Get("isBuiltIn").Bool(),
		})
		return true
	})
	return ports
}

// ParseSettings decodes a settings blob into a generic key/value mapping
// without knowledge of the snapshot layout.
func ParseSettings(blob string) (map[string]any, error) {
	if !gjson.Valid(blob) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	m, ok := gjson.Parse(blob).Value().(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return m, nil
}

// MissingKeys returns the [RequiredKeys] absent from blob. A blob that is not
// a JSON object is missing all of them.
func MissingKeys(blob string) []string {
	if !gjson.Valid(blob) {
		return append([]string(nil), RequiredKeys...)
	}
	root := gjson.Parse(blob)
	if !root.IsObject() {
		return append([]string(nil), RequiredKeys...)
	}
	return missingKeys(root)
}

func missingKeys(root gjson.Result) []string {
	var missing []string
	for _, k := range RequiredKeys {
		if !root.Get(k).Exists() {
			missing = append(missing, k)
		}
	}
	return missing
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(math.Round(sec * float64(time.Second)))
}
