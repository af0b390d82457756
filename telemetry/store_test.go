package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/padflight/groundstation/config"
	"github.com/padflight/groundstation/protocol"
)

func TestUpdateFromFCFastFusesFields(t *testing.T) {
	store := NewStore()
	now := time.Unix(1000, 0)

	msg := protocol.FCFastMessage{
		Status:      protocol.Status{FSMState: protocol.Boost, Armed: [4]bool{true}, Continuity: [4]bool{true}},
		AltitudeM:   100.0,
		VelocityMps: 50.0,
		Quat:        quat.Number{Real: 1},
		TimeS:       12.3,
		BattV:       7.2,
		Seq:         7,
	}
	store.UpdateFromFCFast(msg, now)

	snap := store.Snapshot()
	require.Equal(t, 100.0, snap.AltitudeM)
	require.Equal(t, 50.0, snap.VelocityMps)
	require.Equal(t, protocol.Boost, snap.FSMState)
	require.True(t, snap.Pyro[0].Armed)
	require.True(t, snap.Pyro[0].Continuity)
	require.False(t, snap.Link.Stale)
	require.Len(t, snap.AltitudeHistory, 1)
	require.Equal(t, 100.0, snap.AltitudeHistory[0])
}

func TestRingBufferCapsAt150(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)

	for i := 0; i < 200; i++ {
		store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: float64(i)}, now)
	}

	snap := store.Snapshot()
	require.Len(t, snap.AltitudeHistory, 150)
	require.Equal(t, 50.0, snap.AltitudeHistory[0])
	require.Equal(t, 199.0, snap.AltitudeHistory[149])
}

func TestTickStaleSetsStaleAfterThreshold(t *testing.T) {
	store := NewStore()
	start := time.Unix(1000, 0)
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 1}, start)

	store.TickStale(start.Add(StaleThresholdMs * time.Millisecond))
	require.True(t, store.Snapshot().Link.Stale)
}

func TestTickStaleBeforeAnyValidUpdateIsNoop(t *testing.T) {
	store := NewStore()
	store.TickStale(time.Unix(5, 0))
	require.False(t, store.Snapshot().Link.Stale)
}

func TestUpdateClearsStale(t *testing.T) {
	store := NewStore()
	start := time.Unix(1000, 0)
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 1}, start)
	store.TickStale(start.Add(2 * time.Second))
	require.True(t, store.Snapshot().Link.Stale)

	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 2}, start.Add(2*time.Second))
	require.False(t, store.Snapshot().Link.Stale)
}

func TestUpdateFromEventApogeeAndState(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)

	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventApogee), EventData: 450}, now)
	require.Equal(t, 4500.0, store.Snapshot().ApogeeAltM)

	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventState), EventData: uint16(protocol.Drogue)}, now.Add(time.Millisecond))
	require.Equal(t, protocol.Drogue, store.Snapshot().FSMState)
}

func TestUpdateFromEventPyroFiredSetsPerChannel(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)

	// channel 2 (1-indexed), duration 300ms -> high byte = 30
	data := uint16(2) | uint16(30)<<8
	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventPyroFired), EventData: data}, now)

	snap := store.Snapshot()
	require.True(t, snap.Pyro[1].Fired)
	require.False(t, snap.Pyro[1].Continuity)
	require.True(t, snap.AnyFired)
	require.Equal(t, "PYRO CH2 FIRED 300ms", snap.Events[0].TypeName)
}

func TestUpdateFromEventDedupesWithinWindow(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)
	ev := protocol.FCEventMessage{EventType: uint8(EventStage), EventData: 2}

	store.UpdateFromEvent(ev, now)
	store.UpdateFromEvent(ev, now.Add(time.Millisecond))

	require.Len(t, store.Snapshot().Events, 1)
}

func TestSetConnectionDisconnectResetsButKeepsEventsAndOtherLink(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)
	store.SetConnection(GSLink, true)
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 500}, now)
	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventStage), EventData: 1}, now)

	store.SetConnection(FCLink, false)

	snap := store.Snapshot()
	require.False(t, snap.FCConnected)
	require.True(t, snap.GSConnected)
	require.Equal(t, 0.0, snap.AltitudeM)
	require.Len(t, snap.Events, 1)
}

func TestSnapshotIsolationMutatingCopyDoesNotAffectStore(t *testing.T) {
	store := NewStore()
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 1}, time.Unix(0, 0))

	snap := store.Snapshot()
	snap.AltitudeHistory[0] = 9999
	snap.Events = append(snap.Events, Event{TypeName: "injected"})

	fresh := store.Snapshot()
	require.Equal(t, 1.0, fresh.AltitudeHistory[0])
	require.Len(t, fresh.Events, 0)
}

func TestSubscribeReceivesUpdatesAndUnsubscribeStopsThem(t *testing.T) {
	store := NewStore()
	var got []Snapshot
	unsub := store.Subscribe(func(s Snapshot) { got = append(got, s) })

	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 1}, time.Unix(0, 0))
	require.Len(t, got, 1)

	unsub()
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 2}, time.Unix(1, 0))
	require.Len(t, got, 1)
}

func TestApplyConfigSetsRole(t *testing.T) {
	store := NewStore()
	cfg := config.FlightConfig{
		Channels: [4]config.PyroChannelConfig{
			{Role: config.RoleDrogue},
			{Role: config.RoleMain},
			{Role: config.RoleBackupDrogue},
			{Role: config.RoleBackupMain},
		},
	}

	store.ApplyConfig(cfg)

	snap := store.Snapshot()
	require.Equal(t, "drogue", snap.Pyro[0].Role)
	require.Equal(t, "main", snap.Pyro[1].Role)
	require.Equal(t, "backup_drogue", snap.Pyro[2].Role)
	require.Equal(t, "backup_main", snap.Pyro[3].Role)
}

func TestApplyStatusPreservesFiredChannelContinuity(t *testing.T) {
	store := NewStore()
	now := time.Unix(0, 0)

	// Channel 2 (1-indexed) fires.
	data := uint16(2) | uint16(10)<<8
	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventPyroFired), EventData: data}, now)
	require.False(t, store.Snapshot().Pyro[1].Continuity)

	// A reordered/repeated status packet claims continuity is back, but
	// the fired channel must keep reading false.
	store.UpdateFromFCFast(protocol.FCFastMessage{
		Status: protocol.Status{Continuity: [4]bool{false, true, false, false}},
	}, now.Add(time.Millisecond))

	require.False(t, store.Snapshot().Pyro[1].Continuity)
}

func TestResetClearsEventLogToo(t *testing.T) {
	store := NewStore()
	store.UpdateFromEvent(protocol.FCEventMessage{EventType: uint8(EventStage), EventData: 1}, time.Unix(0, 0))
	store.Reset()
	require.Len(t, store.Snapshot().Events, 0)
}
