package protocol

import (
	"encoding/binary"
	"fmt"
)

// ParseError is returned when a frame is structurally too short for the
// message-id it claims to carry (§4.E, §7 "Structural errors"). The
// store/parser never panic; callers decide whether to drop or log.
type ParseError struct {
	ID       MsgID
	Got      int
	Expected int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("protocol: %s frame too short: got %d bytes, want at least %d", e.ID, e.Got, e.Expected)
}

const staleThresholdMs = 500

// Parse dispatches on the first byte of an unstuffed frame and decodes
// the matching message. Unknown message-ids never produce an error: they
// come back as an UnknownMessage carrying the raw bytes (§4.E, §7). A
// frame too short for its claimed id returns a *ParseError.
func Parse(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, &ParseError{Expected: 1}
	}

	id := MsgID(frame[0])

	switch id {
	case FCFast:
		return parseFCFast(frame)
	case FCGPS:
		return parseFCGPS(frame)
	case FCEvent:
		return parseFCEvent(frame)
	case GSTelem:
		return parseGSTelem(frame)
	case GSGPS, GSEvent, GSStatus, GSCorrupt:
		return GSOpaqueMessage{MsgIDValue: id, Raw: append([]byte(nil), frame...)}, nil
	case CmdArm:
		return parseCmdArm(frame)
	case CmdFire:
		return parseCmdFire(frame)
	case Confirm:
		return parseConfirm(frame)
	case Abort:
		return parseAbortMsg(frame)
	case AckArm:
		return parseAckArm(frame)
	case AckFire:
		return parseAckFire(frame)
	case AckConfig:
		return parseAckConfig(frame)
	case Nack:
		return parseNack(frame)
	case Handshake:
		return parseHandshake(frame)
	default:
		return UnknownMessage{MsgIDValue: id, Raw: append([]byte(nil), frame...)}, nil
	}
}

func requireLen(frame []byte, id MsgID, want int) error {
	if len(frame) < want {
		return &ParseError{ID: id, Got: len(frame), Expected: want}
	}
	return nil
}

func crcOk(frame []byte) (bool, uint32) {
	n := len(frame)
	trailer := binary.LittleEndian.Uint32(frame[n-4:])
	res := VerifyCRC32(frame[:n-4], trailer)
	return res.Valid, res.Computed
}

func parseFCFast(frame []byte) (Message, error) {
	if err := requireLen(frame, FCFast, LenFCFast); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)

	rawStatus := binary.LittleEndian.Uint16(frame[1:3])
	rawAlt := binary.LittleEndian.Uint16(frame[3:5])
	rawVel := int16(binary.LittleEndian.Uint16(frame[5:7]))
	q := UnpackQuaternion(frame[7:12])
	rawTime := binary.LittleEndian.Uint16(frame[12:14])
	rawBatt := frame[14]
	seq := frame[15]

	return FCFastMessage{
		Status:      DecodeStatus(rawStatus),
		AltitudeM:   float64(rawAlt) * 1.0,
		VelocityMps: float64(rawVel) * 0.1,
		Quat:        q,
		TimeS:       float64(rawTime) * 0.1,
		BattV:       6.0 + float64(rawBatt)*0.012,
		Seq:         seq,
		CRCOk:       ok,
	}, nil
}

func parseFCGPS(frame []byte) (Message, error) {
	if err := requireLen(frame, FCGPS, LenFCGPS); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)

	dlat := int32(binary.LittleEndian.Uint32(frame[1:5]))
	dlon := int32(binary.LittleEndian.Uint32(frame[5:9]))
	rawAlt := binary.LittleEndian.Uint16(frame[9:11])
	fix := frame[11]
	sats := frame[12]

	return FCGPSMessage{
		DLatM:          float64(dlat) / 1000.0,
		DLonM:          float64(dlon) / 1000.0,
		AltitudeMSLM:   float64(rawAlt) * 10.0,
		FixType:        fix,
		Satellites:     sats,
		RangeSaturated: dlat == minI32 || dlat == maxI32 || dlon == minI32 || dlon == maxI32,
		CRCOk:          ok,
	}, nil
}

const (
	minI32 = -2147483648
	maxI32 = 2147483647
)

func parseFCEvent(frame []byte) (Message, error) {
	if err := requireLen(frame, FCEvent, LenFCEvent); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)

	eventType := frame[1]
	eventData := binary.LittleEndian.Uint16(frame[2:4])
	rawTime := binary.LittleEndian.Uint16(frame[4:6])

	return FCEventMessage{
		EventType: eventType,
		EventData: eventData,
		TimeS:     float64(rawTime) * 0.1,
		CRCOk:     ok,
	}, nil
}

func parseGSTelem(frame []byte) (Message, error) {
	if err := requireLen(frame, GSTelem, LenGSTelem); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)

	rawStatus := binary.LittleEndian.Uint16(frame[1:3])
	rawAlt := binary.LittleEndian.Uint16(frame[3:5])
	rawVel := int16(binary.LittleEndian.Uint16(frame[5:7]))
	q := UnpackQuaternion(frame[7:12])
	rawTime := binary.LittleEndian.Uint16(frame[12:14])
	rawBatt := frame[14]
	seq := frame[15]
	rawRSSI := int16(binary.LittleEndian.Uint16(frame[16:18]))
	rawSNR := int8(frame[18])
	rawFreqErr := int16(binary.LittleEndian.Uint16(frame[19:21]))
	dataAge := binary.LittleEndian.Uint16(frame[21:23])
	recoveryByte := frame[23]
	rawMach := binary.LittleEndian.Uint16(frame[24:26])
	rawQbar := binary.LittleEndian.Uint16(frame[26:28])
	rawRoll := int16(binary.LittleEndian.Uint16(frame[28:30]))
	rawPitch := int16(binary.LittleEndian.Uint16(frame[30:32]))
	rawYaw := int16(binary.LittleEndian.Uint16(frame[32:34]))

	return GSTelemMessage{
		Status:      DecodeStatus(rawStatus),
		AltitudeM:   float64(rawAlt) * 10.0,
		VelocityMps: float64(rawVel) * 0.1,
		Quat:        q,
		TimeS:       float64(rawTime) * 0.1,
		BattV:       6.0 + float64(rawBatt)*0.012,
		Seq:         seq,
		RSSIdBm:     float64(rawRSSI) * 0.1,
		SNRdB:       float64(rawSNR) * 0.25,
		FreqErrHz:   float64(rawFreqErr),
		DataAgeMs:   dataAge,
		Stale:       dataAge > staleThresholdMs,
		Recovered:   recoveryByte&0x80 != 0,
		Method:      (recoveryByte >> 4) & 0x7,
		Confidence:  recoveryByte & 0xF,
		Mach:        float64(rawMach) * 0.001,
		QBarPa:      float64(rawQbar),
		RollDeg:     float64(rawRoll) * 0.1,
		PitchDeg:    float64(rawPitch) * 0.1,
		YawDeg:      float64(rawYaw) * 0.1,
		CRCOk:       ok,
	}, nil
}

func parseCmdArm(frame []byte) (Message, error) {
	if err := requireLen(frame, CmdArm, LenCmdArm); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	nonce := binary.LittleEndian.Uint16(frame[3:5])
	return CmdArmMessage{
		Nonce:       nonce,
		Channel:     frame[5],
		Action:      frame[6],
		ChannelComp: frame[7],
		CRCOk:       ok,
	}, nil
}

func parseCmdFire(frame []byte) (Message, error) {
	if err := requireLen(frame, CmdFire, LenCmdFire); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	nonce := binary.LittleEndian.Uint16(frame[3:5])
	return CmdFireMessage{
		Nonce:        nonce,
		Channel:      frame[5],
		DurationMs:   frame[6],
		ChannelComp:  frame[7],
		DurationComp: frame[8],
		CRCOk:        ok,
	}, nil
}

func parseConfirm(frame []byte) (Message, error) {
	if err := requireLen(frame, Confirm, LenConfirm); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	return ConfirmMessage{Nonce: binary.LittleEndian.Uint16(frame[3:5]), CRCOk: ok}, nil
}

func parseAbortMsg(frame []byte) (Message, error) {
	if err := requireLen(frame, Abort, LenAbort); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	return AbortMessage{Nonce: binary.LittleEndian.Uint16(frame[3:5]), CRCOk: ok}, nil
}

func parseAckArm(frame []byte) (Message, error) {
	if err := requireLen(frame, AckArm, LenAckArm); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	return AckArmMessage{
		Nonce:       binary.LittleEndian.Uint16(frame[1:3]),
		EchoChannel: frame[3],
		EchoAction:  frame[4],
		ArmState:    frame[5],
		ContState:   frame[6],
		CRCOk:       ok,
	}, nil
}

func parseAckFire(frame []byte) (Message, error) {
	if err := requireLen(frame, AckFire, LenAckFire); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	flags := frame[5]
	return AckFireMessage{
		Nonce:        binary.LittleEndian.Uint16(frame[1:3]),
		EchoChannel:  frame[3],
		EchoDuration: frame[4],
		Test:         flags&0x1 != 0,
		Armed:        flags&0x2 != 0,
		ContState:    frame[6],
		CRCOk:        ok,
	}, nil
}

func parseAckConfig(frame []byte) (Message, error) {
	if err := requireLen(frame, AckConfig, LenAckConfig); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	return AckConfigMessage{
		Nonce:      binary.LittleEndian.Uint16(frame[1:3]),
		ConfigHash: binary.LittleEndian.Uint32(frame[3:7]),
		Accepted:   frame[7] != 0,
		CRCOk:      ok,
	}, nil
}

func parseNack(frame []byte) (Message, error) {
	if err := requireLen(frame, Nack, LenNack); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	return NackMessage{
		Nonce:     binary.LittleEndian.Uint16(frame[1:3]),
		ErrorCode: frame[3],
		CRCOk:     ok,
	}, nil
}

func parseHandshake(frame []byte) (Message, error) {
	if err := requireLen(frame, Handshake, LenHandshakeMin); err != nil {
		return nil, err
	}
	ok, _ := crcOk(frame)
	fwVersion := string(frame[2 : len(frame)-4])
	return HandshakeMessage{
		ProtocolVersion: frame[1],
		FWVersion:       fwVersion,
		CRCOk:           ok,
	}, nil
}
