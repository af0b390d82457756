package protocol

// MsgID identifies the message-specific layout that follows the id byte on
// the wire. The id space is a closed tagged union (§3): every value the
// link can produce is enumerated here, and Parse never errors on an id it
// doesn't recognise — it returns an Unknown message instead (§4.E).
type MsgID uint8

const (
	FCFast    MsgID = 0x01
	FCGPS     MsgID = 0x02
	FCEvent   MsgID = 0x03
	GSTelem   MsgID = 0x10
	GSGPS     MsgID = 0x11
	GSEvent   MsgID = 0x12
	GSStatus  MsgID = 0x13
	GSCorrupt MsgID = 0x14
	CmdArm    MsgID = 0x80
	CmdFire   MsgID = 0x81
	Confirm   MsgID = 0xF0
	Abort     MsgID = 0xF1
	AckArm    MsgID = 0xA0
	AckFire   MsgID = 0xA1
	AckConfig MsgID = 0xA3
	Nack      MsgID = 0xE0
	Handshake MsgID = 0xC0
)

// Fixed frame lengths in bytes, including the id byte and the 4-byte CRC
// trailer. Handshake has no fixed length (the fw_version tail is
// variable), so it is not listed here.
const (
	// LenFCFast is 20, not the 19 named in §3/§6's prose: the field
	// table there (id+status+alt+vel+quat+time+batt+seq+CRC) sums to 20,
	// and §8 scenario 7 literally describes "a 20-byte FC_FAST packet" —
	// both outrank the prose byte count. See DESIGN.md.
	LenFCFast    = 20
	LenFCGPS     = 17
	LenFCEvent   = 11
	LenGSTelem   = 38
	LenCmdArm    = 12
	LenCmdFire   = 13
	LenConfirm   = 9
	LenAbort     = 9
	LenAckArm    = 12
	LenAckFire   = 13
	LenAckConfig = 13
	LenNack      = 10
	// LenHandshakeMin is id + protocol_version + CRC, the minimum possible
	// length with an empty fw_version.
	LenHandshakeMin = 6
)

// CmdMagic is the two-byte marker following the id on every command
// packet (§3), present before the nonce field.
var CmdMagic = [2]byte{0xCA, 0x5A}

func (id MsgID) String() string {
	switch id {
	case FCFast:
		return "FC_FAST"
	case FCGPS:
		return "FC_GPS"
	case FCEvent:
		return "FC_EVENT"
	case GSTelem:
		return "GS_TELEM"
	case GSGPS:
		return "GS_GPS"
	case GSEvent:
		return "GS_EVENT"
	case GSStatus:
		return "GS_STATUS"
	case GSCorrupt:
		return "GS_CORRUPT"
	case CmdArm:
		return "CMD_ARM"
	case CmdFire:
		return "CMD_FIRE"
	case Confirm:
		return "CONFIRM"
	case Abort:
		return "ABORT"
	case AckArm:
		return "ACK_ARM"
	case AckFire:
		return "ACK_FIRE"
	case AckConfig:
		return "ACK_CONFIG"
	case Nack:
		return "NACK"
	case Handshake:
		return "HANDSHAKE"
	default:
		return "UNKNOWN"
	}
}

// FSMState is the rocket's flight-state machine value carried in the
// status bitmap's high nybble (§3). Values outside the enumerated range
// are preserved as-is (cast back to FSMState) rather than rejected — the
// decoder never crashes on an unrecognised state.
type FSMState uint8

const (
	Pad FSMState = iota
	Boost
	Coast
	Coast1
	Sustain
	Coast2
	Apogee
	Drogue
	Main
	Recovery
	Tumble
	Landed
)

func (s FSMState) String() string {
	names := [...]string{
		"PAD", "BOOST", "COAST", "COAST_1", "SUSTAIN", "COAST_2",
		"APOGEE", "DROGUE", "MAIN", "RECOVERY", "TUMBLE", "LANDED",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "UNKNOWN"
}

// NACK error codes (§6).
const (
	NackCRCFail       = 0x01
	NackBadState      = 0x02
	NackNotArmed      = 0x03
	NackNoTestMode    = 0x04
	NackNonceReuse    = 0x05
	NackNoContinuity  = 0x06
	NackLowBattery    = 0x07
	NackSelfTest      = 0x08
	NackConfigTooBig  = 0x09
	NackFlashFail     = 0x0A
)

// NackCodeName returns the textual description of a NACK error code, used
// when surfacing a CAC failure to the operator (§8 scenario 3).
func NackCodeName(code uint8) string {
	switch code {
	case NackCRCFail:
		return "CRC fail"
	case NackBadState:
		return "bad state"
	case NackNotArmed:
		return "not armed"
	case NackNoTestMode:
		return "no test mode"
	case NackNonceReuse:
		return "nonce reuse"
	case NackNoContinuity:
		return "no continuity"
	case NackLowBattery:
		return "low battery"
	case NackSelfTest:
		return "self-test"
	case NackConfigTooBig:
		return "config too large"
	case NackFlashFail:
		return "flash fail"
	default:
		return "unknown"
	}
}
