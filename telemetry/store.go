package telemetry

import (
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/padflight/groundstation/config"
	"github.com/padflight/groundstation/protocol"
)

// Store owns the single Snapshot and fans every mutation out to
// subscribers as an isolated copy, mirroring the mutex-guarded
// update-then-read pattern of the teacher's Sky store (mode_s/aircraft.go)
// generalized from a map of aircraft to one fused value.
type Store struct {
	mu   sync.Mutex
	snap Snapshot

	lastValid time.Time

	subs      map[int]func(Snapshot)
	nextSubID int

	// eventDedupe suppresses duplicate FC_EVENT entries a lossy radio
	// link may repeat within one cache window (DOMAIN STACK).
	eventDedupe *cache.Cache
}

// NewStore returns a store at factory defaults.
func NewStore() *Store {
	return &Store{
		snap:        defaultSnapshot(),
		subs:        make(map[int]func(Snapshot)),
		eventDedupe: cache.New(2*time.Second, 4*time.Second),
	}
}

// Subscribe registers fn to receive an isolated Snapshot after every
// mutating operation. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.mu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) copySnapshot() Snapshot {
	cp := s.snap
	cp.AltitudeHistory = append([]float64(nil), s.snap.AltitudeHistory...)
	cp.VelocityHistory = append([]float64(nil), s.snap.VelocityHistory...)
	cp.QBarHistory = append([]float64(nil), s.snap.QBarHistory...)
	cp.Events = append([]Event(nil), s.snap.Events...)
	return cp
}

func pushRing(buf []float64, v float64) []float64 {
	if len(buf) < RingCap {
		return append(buf, v)
	}
	copy(buf, buf[1:])
	buf[len(buf)-1] = v
	return buf
}

// applyStatus updates per-channel armed/continuity from a status bitmap.
// A channel already marked Fired keeps reading continuity=false
// regardless of what a reordered or repeated status packet claims (§3
// invariant 4: "fired ⇒ continuity reads false thereafter until reset").
func (s *Store) applyStatus(status protocol.Status) {
	for i := 0; i < 4; i++ {
		s.snap.Pyro[i].Armed = status.Armed[i]
		if s.snap.Pyro[i].Fired {
			continue
		}
		s.snap.Pyro[i].Continuity = status.Continuity[i]
	}
	s.snap.AnyFired = s.snap.AnyFired || status.Fired
}

// ApplyConfig assigns each pyro channel's MC-local Role annotation from
// a loaded flight config (§4.H "preserving MC-local role"); it never
// touches any wire-derived field.
func (s *Store) ApplyConfig(cfg config.FlightConfig) {
	s.mu.Lock()
	for i := 0; i < 4 && i < len(cfg.Channels); i++ {
		s.snap.Pyro[i].Role = cfg.Channels[i].Role.String()
	}
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Store) markValid(now time.Time) {
	s.lastValid = now
	s.snap.Link.Stale = false
	s.snap.Link.StaleSinceMs = 0
	s.snap.Link.DataAgeMs = 0
}

// UpdateFromFCFast fuses an FC-direct fast-telemetry packet. Mach/qbar/
// Euler are computed locally since the direct path carries only the raw
// quaternion and kinematics (§4.H).
func (s *Store) UpdateFromFCFast(msg protocol.FCFastMessage, now time.Time) {
	s.mu.Lock()

	s.snap.AltitudeM = msg.AltitudeM
	s.snap.VelocityMps = msg.VelocityMps
	s.snap.Quat = msg.Quat

	euler := protocol.QuatToEuler(msg.Quat)
	s.snap.RollDeg = euler.RollDeg
	s.snap.PitchDeg = euler.PitchDeg
	s.snap.YawDeg = euler.YawDeg
	s.snap.Mach = protocol.Mach(msg.VelocityMps, msg.AltitudeM)
	s.snap.QBarPa = protocol.QBar(msg.VelocityMps, msg.AltitudeM)

	s.snap.BattV = msg.BattV
	s.snap.FSMState = msg.Status.FSMState
	s.snap.TimeS = msg.TimeS
	s.snap.Seq = msg.Seq
	s.applyStatus(msg.Status)

	s.snap.AltitudeHistory = pushRing(s.snap.AltitudeHistory, msg.AltitudeM)
	s.snap.VelocityHistory = pushRing(s.snap.VelocityHistory, msg.VelocityMps)
	s.snap.QBarHistory = pushRing(s.snap.QBarHistory, s.snap.QBarPa)

	s.markValid(now)
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// UpdateFromGSTelem fuses a GS-relay fused-telemetry packet, which
// already carries Mach/qbar/Euler computed upstream (§4.H).
func (s *Store) UpdateFromGSTelem(msg protocol.GSTelemMessage, now time.Time) {
	s.mu.Lock()

	s.snap.AltitudeM = msg.AltitudeM
	s.snap.VelocityMps = msg.VelocityMps
	s.snap.Quat = msg.Quat
	s.snap.RollDeg = msg.RollDeg
	s.snap.PitchDeg = msg.PitchDeg
	s.snap.YawDeg = msg.YawDeg
	s.snap.Mach = msg.Mach
	s.snap.QBarPa = msg.QBarPa

	s.snap.BattV = msg.BattV
	s.snap.FSMState = msg.Status.FSMState
	s.snap.TimeS = msg.TimeS
	s.snap.Seq = msg.Seq
	s.applyStatus(msg.Status)

	s.snap.Link.RSSIdBm = msg.RSSIdBm
	s.snap.Link.SNRdB = msg.SNRdB
	s.snap.Link.FreqErrHz = msg.FreqErrHz
	s.snap.Link.Recovered = msg.Recovered
	s.snap.Link.Method = msg.Method
	s.snap.Link.Confidence = msg.Confidence

	s.snap.AltitudeHistory = pushRing(s.snap.AltitudeHistory, msg.AltitudeM)
	s.snap.VelocityHistory = pushRing(s.snap.VelocityHistory, msg.VelocityMps)
	s.snap.QBarHistory = pushRing(s.snap.QBarHistory, msg.QBarPa)

	s.markValid(now)
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// UpdateFromGPS replaces the GPS fields only (§4.H). AltAGLM is derived
// from the pad-origin reference captured by a PAD ORIGIN event; until one
// arrives it reads the same as AltMSLM.
func (s *Store) UpdateFromGPS(msg protocol.FCGPSMessage, now time.Time) {
	s.mu.Lock()

	s.snap.GPS.DLatM = msg.DLatM
	s.snap.GPS.DLonM = msg.DLonM
	s.snap.GPS.AltMSLM = msg.AltitudeMSLM
	s.snap.GPS.AltAGLM = msg.AltitudeMSLM - s.snap.GPS.PadAltMSLM
	s.snap.GPS.FixType = msg.FixType
	s.snap.GPS.Satellites = msg.Satellites
	s.snap.GPS.RangeSaturated = msg.RangeSaturated

	s.markValid(now)
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// UpdateFromEvent appends a log entry and applies any type-specific side
// effect (§4.H). Duplicate (type, data) pairs within the dedupe window
// are silently dropped.
func (s *Store) UpdateFromEvent(msg protocol.FCEventMessage, now time.Time) {
	s.mu.Lock()

	key := fmt.Sprintf("%d:%d", msg.EventType, msg.EventData)
	if _, found := s.eventDedupe.Get(key); found {
		s.mu.Unlock()
		return
	}
	s.eventDedupe.SetDefault(key, struct{}{})

	evType := EventType(msg.EventType)
	s.snap.Events = append(s.snap.Events, Event{
		At:       now,
		Type:     evType,
		Data:     msg.EventData,
		TypeName: formatEventTypeName(evType, msg.EventData),
	})

	switch evType {
	case EventApogee:
		s.snap.ApogeeAltM = float64(msg.EventData) * 10
	case EventState:
		s.snap.FSMState = protocol.FSMState(byte(msg.EventData))
	case EventPadOrigin:
		s.snap.GPS.PadAltMSLM = s.snap.GPS.AltMSLM
	case EventPyroFired:
		if ch := int(msg.EventData&0xFF) - 1; ch >= 0 && ch < 4 {
			s.snap.Pyro[ch].Fired = true
			s.snap.Pyro[ch].Continuity = false
			s.snap.AnyFired = true
		}
	case EventArmed, EventDisarmed:
		if ch := int(msg.EventData) - 1; ch >= 0 && ch < 4 {
			s.snap.Pyro[ch].Armed = evType == EventArmed
		}
	}

	s.markValid(now)
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// SetConnection toggles a link's connection flag; on disconnect the
// telemetry is reset to defaults while the event log and the other
// link's flag survive (§4.H).
func (s *Store) SetConnection(link Link, connected bool) {
	s.mu.Lock()

	switch link {
	case FCLink:
		s.snap.FCConnected = connected
	case GSLink:
		s.snap.GSConnected = connected
	}

	if !connected {
		events := s.snap.Events
		fc, gs := s.snap.FCConnected, s.snap.GSConnected
		s.snap = defaultSnapshot()
		s.snap.Events = events
		s.snap.FCConnected = fc
		s.snap.GSConnected = gs
		s.lastValid = time.Time{}
	}

	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// SetProtocolOK updates handshake metadata. A nil fwVersion/configHash
// leaves the existing value untouched.
func (s *Store) SetProtocolOK(ok bool, fwVersion *string, configHash *uint32) {
	s.mu.Lock()

	s.snap.ProtocolOK = ok
	if fwVersion != nil {
		s.snap.FWVersion = *fwVersion
	}
	if configHash != nil {
		s.snap.ConfigHash = *configHash
	}

	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// TickStale runs at ~10 Hz (§4.H). Once stale it is idempotent: further
// ticks only refresh the elapsed counter.
func (s *Store) TickStale(now time.Time) {
	s.mu.Lock()

	if s.lastValid.IsZero() {
		s.mu.Unlock()
		return
	}

	ageMs := now.Sub(s.lastValid).Milliseconds()
	if ageMs < 0 {
		ageMs = 0
	}
	if ageMs > 0xFFFF {
		s.snap.Link.DataAgeMs = 0xFFFF
	} else {
		s.snap.Link.DataAgeMs = uint16(ageMs)
	}

	if ageMs > StaleThresholdMs {
		s.snap.Link.Stale = true
		s.snap.Link.StaleSinceMs = uint64(ageMs - StaleThresholdMs)
	}

	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// RecordFrame tallies a received frame for PacketStats. This supplements
// §4.H's named operations to give the documented rx/lost/integrity
// fields a concrete writer (see DESIGN.md). The cmd binaries invoke it
// once per telemetry, GPS, event or handshake frame (valid=false when its
// CRC failed and was not repaired); command, ACK, NACK, opaque and
// unknown frames are not tallied.
func (s *Store) RecordFrame(valid bool) {
	s.mu.Lock()

	s.snap.Stats.RxCount++
	if !valid {
		s.snap.Stats.LostCount++
	}
	if s.snap.Stats.RxCount > 0 {
		good := float64(s.snap.Stats.RxCount - s.snap.Stats.LostCount)
		s.snap.Stats.IntegrityPct = 100.0 * good / float64(s.snap.Stats.RxCount)
	}

	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// Reset restores factory defaults, discarding the event log too (unlike
// SetConnection(link, false), which preserves it).
func (s *Store) Reset() {
	s.mu.Lock()
	s.snap = defaultSnapshot()
	s.lastValid = time.Time{}
	s.eventDedupe.Flush()
	snap := s.copySnapshot()
	s.mu.Unlock()
	s.notify(snap)
}

// Snapshot returns the current isolated snapshot without waiting for the
// next mutation.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copySnapshot()
}
