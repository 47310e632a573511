package session

import (
	"slices"
	"time"
)

// Route identifies a physical input or output path.
type Route string

const (
	RouteSpeaker      Route = "speaker"
	RouteReceiver     Route = "receiver"
	RouteHeadphones   Route = "headphones"
	RouteBluetooth    Route = "bluetooth"
	RouteBluetoothLE  Route = "bluetoothLE"
	RouteBluetoothHFP Route = "bluetoothHFP"
	RouteAirPlay      Route = "airplay"
	RouteUSB          Route = "usb"
	RouteHDMI         Route = "hdmi"
	RouteCarAudio     Route = "carAudio"
	RouteLineOut      Route = "lineOut"
	RouteBuiltInMic   Route = "builtInMic"
	RouteHeadsetMic   Route = "headsetMic"
	RouteLineIn       Route = "lineIn"

	// RouteNone means the session currently has no port in that direction.
	RouteNone Route = "none"

	// RouteUnknown is reported when the route could not be determined.
	RouteUnknown Route = "unknown"
)

// Category is the session category, which decides how the app's audio mixes
// with other apps and whether input is enabled.
type Category string

const (
	CategoryAmbient       Category = "ambient"
	CategorySoloAmbient   Category = "soloAmbient"
	CategoryPlayback      Category = "playback"
	CategoryRecord        Category = "record"
	CategoryPlayAndRecord Category = "playAndRecord"
	CategoryMultiRoute    Category = "multiRoute"
	CategoryUnknown       Category = "unknown"
)

// IsValid reports whether c is a category a platform can be asked to apply.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAmbient, CategorySoloAmbient, CategoryPlayback, CategoryRecord,
		CategoryPlayAndRecord, CategoryMultiRoute:
		return true
	}
	return false
}

// Mode specialises a category for a use case (voice processing, measurement...).
type Mode string

const (
	ModeDefault        Mode = "default"
	ModeVoiceChat      Mode = "voiceChat"
	ModeVideoChat      Mode = "videoChat"
	ModeGameChat       Mode = "gameChat"
	ModeMeasurement    Mode = "measurement"
	ModeSpokenAudio    Mode = "spokenAudio"
	ModeVideoRecording Mode = "videoRecording"
	ModeVoicePrompt    Mode = "voicePrompt"
	ModeUnknown        Mode = "unknown"
)

// IsValid reports whether m is a mode a platform can be asked to apply.
func (m Mode) IsValid() bool {
	switch m {
	case ModeDefault, ModeVoiceChat, ModeVideoChat, ModeGameChat, ModeMeasurement,
		ModeSpokenAudio, ModeVideoRecording, ModeVoicePrompt:
		return true
	}
	return false
}

// CategoryOptions are the category option flags.
type CategoryOptions struct {
	AllowBluetooth     bool `json:"allowBluetooth"`
	AllowBluetoothA2DP bool `json:"allowBluetoothA2DP"`
	AllowAirPlay       bool `json:"allowAirPlay"`
	DefaultToSpeaker   bool `json:"defaultToSpeaker"`
	MixWithOthers      bool `json:"mixWithOthers"`
	DuckOthers         bool `json:"duckOthers"`
}

// Port describes one input or output port of the current route.
type Port struct {
	Type     Route  `json:"portType"`
	Name     string `json:"portName"`
	Channels int    `json:"channels"`
	BuiltIn  bool   `json:"isBuiltIn"`
}

// Routing lists the ports of the current route. The first port in each
// direction is the primary one.
type Routing struct {
	Inputs  []Port `json:"inputs"`
	Outputs []Port `json:"outputs"`
}

// Hardware holds the hardware-level attributes of the session.
type Hardware struct {
	InputAvailable    bool    `json:"inputAvailable"`
	OtherAudioPlaying bool    `json:"otherAudioPlaying"`
	InputGain         float64 `json:"inputGain"`
	OutputVolume      float64 `json:"outputVolume"`

	// PreferredSampleRate and PreferredIOBufferDuration (seconds) are the
	// values last requested by the app, not the effective ones.
	PreferredSampleRate       float64 `json:"preferredSampleRate"`
	PreferredIOBufferDuration float64 `json:"preferredIOBufferDuration"`

	// InputLatency and OutputLatency in seconds.
	InputLatency  float64 `json:"inputLatency"`
	OutputLatency float64 `json:"outputLatency"`
}

// Snapshot is a point-in-time capture of the audio session.
//
// A Snapshot is a value: once handed out, neither its fields nor its Routing
// slices are modified. Use [Snapshot.Clone] before mutating a copy.
type Snapshot struct {
	Timestamp time.Time

	Category Category
	Mode     Mode
	Options  CategoryOptions
	Routing  Routing
	Hardware Hardware

	// SampleRate is the effective hardware sample rate in Hz.
	SampleRate float64

	// IOBufferDuration is the effective I/O buffer duration.
	IOBufferDuration time.Duration

	// LargeSpeakerActive reports whether output currently goes to the loud
	// (built-in) speaker.
	LargeSpeakerActive bool

	// Err and ErrKind describe a failure reported alongside this snapshot.
	// Empty when nothing went wrong.
	Err     string
	ErrKind ErrorKind
}

// OutputRoute returns the primary output route.
func (s Snapshot) OutputRoute() Route {
	return primary(s.Routing.Outputs, s.Err != "")
}

// InputRoute returns the primary input route.
func (s Snapshot) InputRoute() Route {
	return primary(s.Routing.Inputs, s.Err != "")
}

func primary(ports []Port, failed bool) Route {
	if len(ports) > 0 && ports[0].Type != "" {
		return ports[0].Type
	}
	if failed {
		return RouteUnknown
	}
	return RouteNone
}

// HasError reports whether the snapshot carries a failure.
func (s Snapshot) HasError() bool {
	return s.Err != ""
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	s.Routing.Inputs = slices.Clone(s.Routing.Inputs)
	s.Routing.Outputs = slices.Clone(s.Routing.Outputs)
	return s
}

// WithError returns a copy of s carrying err. A nil err returns s unchanged.
func (s Snapshot) WithError(err error) Snapshot {
	if err == nil {
		return s
	}
	s.Err = err.Error()
	s.ErrKind = KindOf(err)
	return s
}

// Unavailable returns the snapshot reported when the session state could not
// be read at all. Every attribute holds its unknown marker and err is attached.
func Unavailable(err error, at time.Time) Snapshot {
	s := Snapshot{
		Timestamp: at,
		Category:  CategoryUnknown,
		Mode:      ModeUnknown,
	}
	if err == nil {
		err = ErrQueryFailed
	}
	return s.WithError(err)
}
