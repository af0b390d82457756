package protocol

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
)

// NextNonce draws a 16-bit nonce from a cryptographically strong source
// when available, falling back to a best-effort pseudo-random source
// otherwise (§4.F, §9 Design Notes: uniqueness within a session matters
// more than unpredictability — physical possession is the trust model).
func NextNonce() uint16 {
	var buf [2]byte
	if _, err := rand.Read(buf[:]); err == nil {
		return binary.LittleEndian.Uint16(buf[:])
	}
	return uint16(mathrand.Intn(1 << 16))
}

// clampDuration clamps a FIRE duration to the byte range [0, 255] ms
// (§4.F).
func clampDuration(ms int) uint8 {
	if ms < 0 {
		return 0
	}
	if ms > 255 {
		return 255
	}
	return uint8(ms)
}

func appendCRC(buf []byte) []byte {
	crc := ComputeCRC32(buf)
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc)
	return append(buf, trailer[:]...)
}

// BuildArm encodes a CMD_ARM packet: channel is 0-indexed, action is
// 1=arm/0=disarm. The channel's bitwise complement is appended as a
// safety-critical echo check (§4.F); per the resolved Open Question (a),
// no action complement is included.
func BuildArm(nonce uint16, channel uint8, arm bool) []byte {
	buf := make([]byte, 0, LenCmdArm)
	buf = append(buf, byte(CmdArm), CmdMagic[0], CmdMagic[1])
	var nb [2]byte
	binary.LittleEndian.PutUint16(nb[:], nonce)
	buf = append(buf, nb[:]...)

	action := uint8(0)
	if arm {
		action = 1
	}
	buf = append(buf, channel, action, ^channel)
	return appendCRC(buf)
}

// BuildFire encodes a CMD_FIRE packet: channel is 0-indexed, duration is
// clamped to [0, 255] ms. Both channel and duration carry a bitwise
// complement for echo verification (§4.F).
func BuildFire(nonce uint16, channel uint8, durationMs int) []byte {
	buf := make([]byte, 0, LenCmdFire)
	buf = append(buf, byte(CmdFire), CmdMagic[0], CmdMagic[1])
	var nb [2]byte
	binary.LittleEndian.PutUint16(nb[:], nonce)
	buf = append(buf, nb[:]...)

	dur := clampDuration(durationMs)
	buf = append(buf, channel, dur, ^channel, ^dur)
	return appendCRC(buf)
}

// BuildConfirm encodes a CONFIRM packet (0xF0) for the given nonce.
func BuildConfirm(nonce uint16) []byte {
	return buildMagicFrame(Confirm, nonce)
}

// BuildAbort encodes an ABORT packet (0xF1) for the given nonce.
func BuildAbort(nonce uint16) []byte {
	return buildMagicFrame(Abort, nonce)
}

func buildMagicFrame(id MsgID, nonce uint16) []byte {
	buf := make([]byte, 0, 9)
	buf = append(buf, byte(id), CmdMagic[0], CmdMagic[1])
	var nb [2]byte
	binary.LittleEndian.PutUint16(nb[:], nonce)
	buf = append(buf, nb[:]...)
	return appendCRC(buf)
}
