package telemetry

import (
	"fmt"

	"github.com/padflight/groundstation/protocol"
)

// EventType is this implementation's resolution of FC_EVENT's event_type
// byte into a closed set (§4.H lists the type_name formats but not the
// wire codes that select them; see DESIGN.md).
type EventType uint8

const (
	EventState EventType = iota
	EventPyroFired
	EventApogee
	EventError
	EventPadOrigin
	EventBurnout
	EventStage
	EventArmed
	EventDisarmed
)

// formatEventTypeName builds the human-readable type_name for the event
// log, per the literal formats in §4.H.
func formatEventTypeName(evType EventType, data uint16) string {
	switch evType {
	case EventState:
		return fmt.Sprintf("STATE → %s", protocol.FSMState(byte(data)).String())
	case EventPyroFired:
		ch := data & 0xFF
		durationMs := (data >> 8) * 10
		return fmt.Sprintf("PYRO CH%d FIRED %dms", ch, durationMs)
	case EventApogee:
		return fmt.Sprintf("APOGEE %dm", int(data)*10)
	case EventError:
		return fmt.Sprintf("ERROR: 0x%04X", data)
	case EventPadOrigin:
		return fmt.Sprintf("PAD ORIGIN (%d sats)", data)
	case EventBurnout:
		return fmt.Sprintf("BURNOUT (peak %dmg)", data)
	case EventStage:
		return fmt.Sprintf("STAGE %d", data)
	case EventArmed:
		return fmt.Sprintf("CH%d ARMED", data)
	case EventDisarmed:
		return fmt.Sprintf("CH%d DISARMED", data)
	default:
		return fmt.Sprintf("UNKNOWN EVENT 0x%02X", uint8(evType))
	}
}
