package protocol

import "gonum.org/v1/gonum/num/quat"

// Message is the closed tagged union every parsed packet belongs to
// (Design Notes §9). Every concrete type below implements it.
type Message interface {
	ID() MsgID
}

// FCFastMessage is the FC-direct fast-telemetry packet (0x01).
type FCFastMessage struct {
	Status   Status
	AltitudeM float64
	VelocityMps float64
	Quat     quat.Number
	TimeS    float64
	BattV    float64
	Seq      uint8
	CRCOk    bool
	Corrected bool
}

func (FCFastMessage) ID() MsgID { return FCFast }

// FCGPSMessage is the FC-direct GPS packet (0x02).
type FCGPSMessage struct {
	DLatM          float64
	DLonM          float64
	AltitudeMSLM   float64
	FixType        uint8
	Satellites     uint8
	RangeSaturated bool
	CRCOk          bool
	Corrected      bool
}

func (FCGPSMessage) ID() MsgID { return FCGPS }

// FCEventMessage is the FC-direct event packet (0x03).
type FCEventMessage struct {
	EventType uint8
	EventData uint16
	TimeS     float64
	CRCOk     bool
	Corrected bool
}

func (FCEventMessage) ID() MsgID { return FCEvent }

// GSTelemMessage is the GS-relay fused telemetry packet (0x10), which
// arrives with Mach/qbar/Euler already computed upstream.
type GSTelemMessage struct {
	Status       Status
	AltitudeM    float64
	VelocityMps  float64
	Quat         quat.Number
	TimeS        float64
	BattV        float64
	Seq          uint8
	RSSIdBm      float64
	SNRdB        float64
	FreqErrHz    float64
	DataAgeMs    uint16
	Stale        bool
	Recovered    bool
	Method       uint8
	Confidence   uint8
	Mach         float64
	QBarPa       float64
	RollDeg      float64
	PitchDeg     float64
	YawDeg       float64
	CRCOk        bool
}

func (GSTelemMessage) ID() MsgID { return GSTelem }

// GSOpaqueMessage covers the pass-through GS relay variants (GS_GPS,
// GS_EVENT, GS_STATUS, GS_CORRUPT) which the GS link forwards verbatim
// from their FC-direct counterparts; the GS merely relays bytes it
// doesn't itself interpret.
type GSOpaqueMessage struct {
	MsgIDValue MsgID
	Raw        []byte
}

func (m GSOpaqueMessage) ID() MsgID { return m.MsgIDValue }

// CmdArmMessage is the decoded form of a CMD_ARM packet (0x80).
type CmdArmMessage struct {
	Nonce       uint16
	Channel     uint8
	Action      uint8
	ChannelComp uint8
	CRCOk       bool
}

func (CmdArmMessage) ID() MsgID { return CmdArm }

// CmdFireMessage is the decoded form of a CMD_FIRE packet (0x81).
type CmdFireMessage struct {
	Nonce        uint16
	Channel      uint8
	DurationMs   uint8
	ChannelComp  uint8
	DurationComp uint8
	CRCOk        bool
}

func (CmdFireMessage) ID() MsgID { return CmdFire }

// ConfirmMessage / AbortMessage are the decoded forms of CONFIRM (0xF0)
// and ABORT (0xF1).
type ConfirmMessage struct {
	Nonce uint16
	CRCOk bool
}

func (ConfirmMessage) ID() MsgID { return Confirm }

type AbortMessage struct {
	Nonce uint16
	CRCOk bool
}

func (AbortMessage) ID() MsgID { return Abort }

// AckArmMessage is the FC's response to CMD_ARM (0xA0).
type AckArmMessage struct {
	Nonce        uint16
	EchoChannel  uint8
	EchoAction   uint8
	ArmState     uint8
	ContState    uint8
	CRCOk        bool
}

func (AckArmMessage) ID() MsgID { return AckArm }

// AckFireMessage is the FC's response to CMD_FIRE (0xA1).
type AckFireMessage struct {
	Nonce         uint16
	EchoChannel   uint8
	EchoDuration  uint8
	Test          bool
	Armed         bool
	ContState     uint8
	CRCOk         bool
}

func (AckFireMessage) ID() MsgID { return AckFire }

// AckConfigMessage is the FC's response to a config upload (0xA3). The
// spec names the id and the 13-byte length but not a field layout; this
// shape (nonce, echoed config hash, status byte) is this implementation's
// resolution, recorded in DESIGN.md.
type AckConfigMessage struct {
	Nonce       uint16
	ConfigHash  uint32
	Accepted    bool
	CRCOk       bool
}

func (AckConfigMessage) ID() MsgID { return AckConfig }

// NackMessage carries a rejected command's error code (§6).
type NackMessage struct {
	Nonce     uint16
	ErrorCode uint8
	CRCOk     bool
}

func (NackMessage) ID() MsgID { return Nack }

// HandshakeMessage is the protocol/firmware version exchange (0xC0).
type HandshakeMessage struct {
	ProtocolVersion uint8
	FWVersion       string
	CRCOk           bool
}

func (HandshakeMessage) ID() MsgID { return Handshake }

// UnknownMessage carries the raw bytes of any id outside the closed set
// above, for forensic logging — Parse never errors on an unrecognised id.
type UnknownMessage struct {
	MsgIDValue MsgID
	Raw        []byte
}

func (m UnknownMessage) ID() MsgID { return m.MsgIDValue }
