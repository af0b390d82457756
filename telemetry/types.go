// Package telemetry fuses the message stream into a single mutable
// snapshot, exposed to subscribers only as isolated copies (spec §4.H).
// The shape and the mutex-guarded update pattern are generalized from the
// teacher's mode_s/aircraft.go Sky/Aircraft store: there one struct per
// ICAO address behind a map, here one fused struct per mission.
package telemetry

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/padflight/groundstation/protocol"
)

// Link names one of the two independent serial sources the core ingests.
type Link int

const (
	FCLink Link = iota
	GSLink
)

// RadioProfile is a descriptive-only tag surfaced in PacketStats; it does
// not affect any invariant, and nothing in the module reads it.
type RadioProfile int

const (
	Telemetry433 RadioProfile = iota
	Telemetry915
	Bench
)

func (p RadioProfile) String() string {
	switch p {
	case Telemetry433:
		return "433MHz"
	case Telemetry915:
		return "915MHz"
	case Bench:
		return "bench"
	default:
		return "unknown"
	}
}

// StaleThresholdMs is the wall-clock gap (ms) after which the link is
// considered stale (§6).
const StaleThresholdMs = 500

// RingCap is the sample cap for the altitude/velocity/qbar histories
// (§3 invariant 3, §8 ring-buffer property).
const RingCap = 150

// PyroState is one of the four hardware pyro channels. Role is an
// MC-local annotation applied from the loaded flight config
// (Store.ApplyConfig), never overwritten by a status bitmap update
// (§4.H: "preserving MC-local role").
type PyroState struct {
	Channel    int
	Armed      bool
	Continuity bool
	Fired      bool
	Role       string
}

// GPSState holds the pad-relative position fix. PadAltMSLM is an
// MC-local reference captured on a PAD ORIGIN event, not a wire field;
// AltAGLM is derived from it. PDOP has no carrier in the current wire
// layout (§6's FC_GPS table has no PDOP field) and is left at its
// zero value pending a future message revision.
type GPSState struct {
	DLatM          float64
	DLonM          float64
	AltMSLM        float64
	AltAGLM        float64
	PadAltMSLM     float64
	FixType        uint8
	Satellites     uint8
	PDOP           float64
	RangeSaturated bool
}

// LinkQuality carries radio-link health and recovery metadata.
type LinkQuality struct {
	RSSIdBm      float64
	SNRdB        float64
	FreqErrHz    float64
	DataAgeMs    uint16
	Stale        bool
	StaleSinceMs uint64
	Recovered    bool
	Method       uint8
	Confidence   uint8
}

// PacketStats tracks link-wide counters. GSBattV/GSTempC have no current
// wire carrier (no GS-relay housekeeping message is defined) and stay at
// their zero value until one exists.
type PacketStats struct {
	RxCount      uint64
	LostCount    uint64
	IntegrityPct float64
	GSBattV      float64
	GSTempC      float64
	RadioProfile RadioProfile
}

// Event is one append-only entry in the telemetry event log (§4.H).
type Event struct {
	At       time.Time
	Type     EventType
	Data     uint16
	TypeName string
}

// Snapshot is the single fused telemetry value the store owns. Every
// field reachable from Subscribe is a structurally-isolated copy: arrays
// copy by value, slices are deep-copied on emission (§4.H, §9 Design
// Notes "shared mutable snapshot").
type Snapshot struct {
	FCConnected bool
	GSConnected bool
	ProtocolOK  bool
	FWVersion   string
	ConfigHash  uint32

	AltitudeM   float64
	VelocityMps float64
	Quat        quat.Number
	RollDeg     float64
	PitchDeg    float64
	YawDeg      float64
	Mach        float64
	QBarPa      float64
	BattV       float64
	FSMState    protocol.FSMState
	TimeS       float64
	Seq         uint8
	ApogeeAltM  float64

	Pyro     [4]PyroState
	AnyFired bool

	GPS  GPSState
	Link LinkQuality

	Stats PacketStats

	AltitudeHistory []float64
	VelocityHistory []float64
	QBarHistory     []float64

	Events []Event
}

func defaultSnapshot() Snapshot {
	snap := Snapshot{
		FSMState: protocol.Pad,
		Stats:    PacketStats{RadioProfile: Telemetry433},
	}
	for i := range snap.Pyro {
		snap.Pyro[i].Channel = i + 1
	}
	return snap
}
