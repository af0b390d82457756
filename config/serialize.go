package config

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/padflight/groundstation/protocol"
)

// HeaderSize is id-less: version(1) + total_length(2).
const HeaderSize = 3

// TotalSize is the whole serialized document's fixed length: header +
// four channel records + seven f32 scalars + CRC trailer.
const TotalSize = HeaderSize + 4*ChannelRecordSize + 7*4 + 4

func clampI16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func clampU8(v float64) uint8 {
	if v > 255 {
		return 255
	}
	if v < 0 {
		return 0
	}
	return uint8(v)
}

func encodeChannel(buf []byte, c PyroChannelConfig) {
	buf[0] = byte(c.Role)
	buf[1] = byte(c.AltitudeSource)

	var flags byte
	if c.EarlyDeploy {
		flags |= 0x01
	}
	if c.BackupModeIsHeight {
		flags |= 0x02
	}
	buf[2] = flags

	binary.LittleEndian.PutUint32(buf[3:7], math.Float32bits(c.FireDurationS))
	binary.LittleEndian.PutUint32(buf[7:11], math.Float32bits(c.DeployAltitudeM))
	binary.LittleEndian.PutUint32(buf[11:15], math.Float32bits(c.TimeAfterApogeeS))
	binary.LittleEndian.PutUint32(buf[15:19], math.Float32bits(c.EarlyDeployVelocity))
	binary.LittleEndian.PutUint32(buf[19:23], math.Float32bits(c.BackupValue))

	buf[23] = c.MotorNumber
	buf[24] = c.MaxRollDeg
	buf[25] = c.MaxPitchDeg

	binary.LittleEndian.PutUint16(buf[26:28], uint16(clampI16(float64(c.MinVelocityMps)*10)))
	binary.LittleEndian.PutUint16(buf[28:30], uint16(clampI16(float64(c.MinAltitudeM))))
	buf[30] = clampU8(float64(c.FireDelayS) * 10)
	buf[31] = 0 // reserved
}

func decodeChannel(buf []byte) PyroChannelConfig {
	flags := buf[2]
	return PyroChannelConfig{
		Role:                PyroRole(buf[0]),
		AltitudeSource:      AltitudeSource(buf[1]),
		EarlyDeploy:         flags&0x01 != 0,
		BackupModeIsHeight:  flags&0x02 != 0,
		FireDurationS:       math.Float32frombits(binary.LittleEndian.Uint32(buf[3:7])),
		DeployAltitudeM:     math.Float32frombits(binary.LittleEndian.Uint32(buf[7:11])),
		TimeAfterApogeeS:    math.Float32frombits(binary.LittleEndian.Uint32(buf[11:15])),
		EarlyDeployVelocity: math.Float32frombits(binary.LittleEndian.Uint32(buf[15:19])),
		BackupValue:         math.Float32frombits(binary.LittleEndian.Uint32(buf[19:23])),
		MotorNumber:         buf[23],
		MaxRollDeg:          buf[24],
		MaxPitchDeg:         buf[25],
		MinVelocityMps:      float32(int16(binary.LittleEndian.Uint16(buf[26:28]))) / 10,
		MinAltitudeM:        float32(int16(binary.LittleEndian.Uint16(buf[28:30]))),
		FireDelayS:          float32(buf[30]) / 10,
	}
}

// Encode packs cfg into the fixed-length binary document the FC accepts,
// CRC-32 trailer included.
func Encode(cfg FlightConfig) []byte {
	buf := make([]byte, TotalSize)
	buf[0] = cfg.Version
	binary.LittleEndian.PutUint16(buf[1:3], uint16(TotalSize))

	off := HeaderSize
	for i := 0; i < 4; i++ {
		encodeChannel(buf[off:off+ChannelRecordSize], cfg.Channels[i])
		off += ChannelRecordSize
	}

	putF32 := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putF32(cfg.PadLatDeg)
	putF32(cfg.PadLonDeg)
	putF32(cfg.PadAltMSLM)
	putF32(cfg.SafetyAltThreshold)
	putF32(cfg.SafetyVelThreshold)
	putF32(cfg.MinBattV)
	putF32(cfg.MinIntegrityPct)

	crc := protocol.ComputeCRC32(buf[:off])
	binary.LittleEndian.PutUint32(buf[off:off+4], crc)
	return buf
}

// ConfigHash is the CRC-32 of the serialized payload excluding its own
// trailer; Decode checks it equals the embedded CRC (§4.J).
func ConfigHash(serialized []byte) uint32 {
	if len(serialized) < 4 {
		return 0
	}
	return protocol.ComputeCRC32(serialized[:len(serialized)-4])
}

// ErrBadLength/ErrBadCRC are returned by Decode on a structurally
// invalid or corrupted document.
var (
	ErrBadLength = fmt.Errorf("config: wrong total length")
	ErrBadCRC    = fmt.Errorf("config: CRC mismatch")
)

// Decode parses a serialized flight-config document, verifying its
// length and trailing CRC-32.
func Decode(buf []byte) (FlightConfig, error) {
	if len(buf) != TotalSize {
		return FlightConfig{}, ErrBadLength
	}

	trailer := binary.LittleEndian.Uint32(buf[len(buf)-4:])
	if ConfigHash(buf) != trailer {
		return FlightConfig{}, ErrBadCRC
	}

	var cfg FlightConfig
	cfg.Version = buf[0]

	off := HeaderSize
	for i := 0; i < 4; i++ {
		cfg.Channels[i] = decodeChannel(buf[off : off+ChannelRecordSize])
		off += ChannelRecordSize
	}

	getF32 := func() float32 {
		v := math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		return v
	}
	cfg.PadLatDeg = getF32()
	cfg.PadLonDeg = getF32()
	cfg.PadAltMSLM = getF32()
	cfg.SafetyAltThreshold = getF32()
	cfg.SafetyVelThreshold = getF32()
	cfg.MinBattV = getF32()
	cfg.MinIntegrityPct = getF32()

	return cfg, nil
}
