package protocol

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildFCFastFrame(statusLo, statusHi byte, rawAlt uint16, rawVel int16, rawBatt byte, seq byte) []byte {
	frame := make([]byte, LenFCFast)
	frame[0] = byte(FCFast)
	frame[1] = statusLo
	frame[2] = statusHi
	binary.LittleEndian.PutUint16(frame[3:5], rawAlt)
	binary.LittleEndian.PutUint16(frame[5:7], uint16(rawVel))
	// quat bytes 7:12 left zero -> decodes to something valid but unused here
	binary.LittleEndian.PutUint16(frame[12:14], 0)
	frame[14] = rawBatt
	frame[15] = seq
	return appendCRC(frame[:LenFCFast-4])
}

// TestParseFCFastScenario reproduces the literal end-to-end fixture: a
// 20-byte FC_FAST packet with status BOOST+CNT1, alt raw=100, vel raw=500,
// batt raw=100 and a valid CRC decodes to fsm_state=BOOST, alt_m=100.0,
// vel_mps=50.0, batt_v~=7.2 (§8).
func TestParseFCFastScenario(t *testing.T) {
	statusLo := byte(0x01)          // CNT1 set (bit0)
	statusHi := byte(Boost) << 4    // fsm_state = BOOST
	frame := buildFCFastFrame(statusLo, statusHi, 100, 500, 100, 7)

	msg, err := Parse(frame)
	require.NoError(t, err)

	fc, ok := msg.(FCFastMessage)
	require.True(t, ok)
	require.True(t, fc.CRCOk)
	require.Equal(t, Boost, fc.Status.FSMState)
	require.True(t, fc.Status.Continuity[0])
	require.Equal(t, 100.0, fc.AltitudeM)
	require.Equal(t, 50.0, fc.VelocityMps)
	require.InDelta(t, 7.2, fc.BattV, 0.001)
	require.Equal(t, uint8(7), fc.Seq)
}

func TestParseFCFastTooShort(t *testing.T) {
	_, err := Parse([]byte{byte(FCFast), 0x00, 0x00})
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, FCFast, pe.ID)
}

func TestParseFCGPS(t *testing.T) {
	frame := make([]byte, LenFCGPS)
	frame[0] = byte(FCGPS)
	binary.LittleEndian.PutUint32(frame[1:5], uint32(int32(5000)))
	binary.LittleEndian.PutUint32(frame[5:9], uint32(int32(-3000)))
	binary.LittleEndian.PutUint16(frame[9:11], 50)
	frame[11] = 3
	frame[12] = 9
	frame = appendCRC(frame[:LenFCGPS-4])

	msg, err := Parse(frame)
	require.NoError(t, err)
	gps := msg.(FCGPSMessage)
	require.True(t, gps.CRCOk)
	require.InDelta(t, 5.0, gps.DLatM, 1e-9)
	require.InDelta(t, -3.0, gps.DLonM, 1e-9)
	require.Equal(t, 500.0, gps.AltitudeMSLM)
	require.Equal(t, uint8(3), gps.FixType)
	require.Equal(t, uint8(9), gps.Satellites)
	require.False(t, gps.RangeSaturated)
}

func TestParseFCGPSRangeSaturated(t *testing.T) {
	frame := make([]byte, LenFCGPS)
	frame[0] = byte(FCGPS)
	binary.LittleEndian.PutUint32(frame[1:5], uint32(int32(maxI32)))
	binary.LittleEndian.PutUint32(frame[5:9], uint32(int32(0)))
	frame = appendCRC(frame[:LenFCGPS-4])

	msg, err := Parse(frame)
	require.NoError(t, err)
	gps := msg.(FCGPSMessage)
	require.True(t, gps.RangeSaturated)
}

func TestParseFCEvent(t *testing.T) {
	frame := make([]byte, LenFCEvent)
	frame[0] = byte(FCEvent)
	frame[1] = 0x02
	binary.LittleEndian.PutUint16(frame[2:4], 42)
	binary.LittleEndian.PutUint16(frame[4:6], 100)
	frame = appendCRC(frame[:LenFCEvent-4])

	msg, err := Parse(frame)
	require.NoError(t, err)
	ev := msg.(FCEventMessage)
	require.True(t, ev.CRCOk)
	require.Equal(t, uint8(0x02), ev.EventType)
	require.Equal(t, uint16(42), ev.EventData)
	require.InDelta(t, 10.0, ev.TimeS, 1e-9)
}

func TestParseGSTelemStaleAndRecovered(t *testing.T) {
	frame := make([]byte, LenGSTelem)
	frame[0] = byte(GSTelem)
	binary.LittleEndian.PutUint16(frame[21:23], 600) // data_age_ms > 500 -> stale
	frame[23] = 0x80 | (2 << 4) | 5                  // recovered, method=2, confidence=5
	frame = appendCRC(frame[:LenGSTelem-4])

	msg, err := Parse(frame)
	require.NoError(t, err)
	gs := msg.(GSTelemMessage)
	require.True(t, gs.Stale)
	require.True(t, gs.Recovered)
	require.Equal(t, uint8(2), gs.Method)
	require.Equal(t, uint8(5), gs.Confidence)
}

func TestParseGSOpaquePassThrough(t *testing.T) {
	frame := []byte{byte(GSGPS), 0x01, 0x02, 0x03}
	msg, err := Parse(frame)
	require.NoError(t, err)
	opaque := msg.(GSOpaqueMessage)
	require.Equal(t, GSGPS, opaque.ID())
	require.Equal(t, frame, opaque.Raw)
}

func TestParseUnknownIDNeverErrors(t *testing.T) {
	frame := []byte{0x7E, 0xAA, 0xBB}
	msg, err := Parse(frame)
	require.NoError(t, err)
	unk := msg.(UnknownMessage)
	require.Equal(t, MsgID(0x7E), unk.ID())
}

func TestParseEmptyFrame(t *testing.T) {
	_, err := Parse(nil)
	require.Error(t, err)
}

func TestParseHandshake(t *testing.T) {
	fw := "1.4.2"
	frame := make([]byte, 0, 2+len(fw)+4)
	frame = append(frame, byte(Handshake), 0x03)
	frame = append(frame, []byte(fw)...)
	frame = appendCRC(frame)

	msg, err := Parse(frame)
	require.NoError(t, err)
	hs := msg.(HandshakeMessage)
	require.True(t, hs.CRCOk)
	require.Equal(t, uint8(3), hs.ProtocolVersion)
	require.Equal(t, fw, hs.FWVersion)
}
