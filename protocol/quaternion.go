package protocol

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// quatScale is the fixed-point scale applied to each of the three
// transmitted components of a smallest-three quaternion (§3): a 12-bit
// two's-complement value v represents v/4096.
const quatScale = 4096.0

// IdentityQuat is returned by UnpackQuaternion on malformed input.
var IdentityQuat = quat.Number{Real: 1}

// UnpackQuaternion decodes the 5-byte (40-bit) smallest-three quaternion
// layout from §3: bits 39:38 name the dropped component's index; bits
// 35:24, 23:12, 11:0 are three 12-bit two's-complement components scaled
// by 4096, mapped onto the ascending non-dropped indices. The dropped
// component is reconstructed as +sqrt(1 - a^2 - b^2 - c^2).
//
// Input shorter than 5 bytes returns the identity quaternion [1,0,0,0]
// rather than erroring, matching the teacher's "never crash on a short
// packet, return a safe default" posture for field decoders.
func UnpackQuaternion(b []byte) quat.Number {
	if len(b) < 5 {
		return IdentityQuat
	}

	// Reassemble the 40-bit little-endian word.
	word := uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 |
		uint64(b[3])<<24 | uint64(b[4])<<32

	dropIdx := int((word >> 38) & 0x3)
	c0 := decode12(uint16((word >> 24) & 0xFFF))
	c1 := decode12(uint16((word >> 12) & 0xFFF))
	c2 := decode12(uint16(word & 0xFFF))

	comps := [3]float64{c0 / quatScale, c1 / quatScale, c2 / quatScale}

	var full [4]float64
	ci := 0
	for i := 0; i < 4; i++ {
		if i == dropIdx {
			continue
		}
		full[i] = comps[ci]
		ci++
	}

	sumSq := full[0]*full[0] + full[1]*full[1] + full[2]*full[2] + full[3]*full[3]
	remainder := 1 - sumSq
	if remainder < 0 {
		remainder = 0
	}
	full[dropIdx] = math.Sqrt(remainder)

	return quat.Number{Real: full[0], Imag: full[1], Jmag: full[2], Kmag: full[3]}
}

// decode12 sign-extends a 12-bit two's-complement field into a float64.
func decode12(v uint16) float64 {
	v &= 0xFFF
	if v&0x800 != 0 {
		return float64(int32(v) - 0x1000)
	}
	return float64(v)
}

// PackQuaternion is the CommandBuilder-side inverse of UnpackQuaternion,
// used by tests and by any bench tool that needs to synthesize fixtures.
// It negates the whole quaternion when necessary so the dropped
// (largest-magnitude) component is always transmitted as positive, per §3.
func PackQuaternion(q quat.Number) [5]byte {
	full := [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag}

	dropIdx := 0
	largest := math.Abs(full[0])
	for i := 1; i < 4; i++ {
		if math.Abs(full[i]) > largest {
			largest = math.Abs(full[i])
			dropIdx = i
		}
	}

	if full[dropIdx] < 0 {
		for i := range full {
			full[i] = -full[i]
		}
	}

	var comps [3]float64
	ci := 0
	for i := 0; i < 4; i++ {
		if i == dropIdx {
			continue
		}
		comps[ci] = full[i]
		ci++
	}

	var word uint64
	word |= uint64(dropIdx&0x3) << 38
	word |= uint64(encode12(comps[0])) << 24
	word |= uint64(encode12(comps[1])) << 12
	word |= uint64(encode12(comps[2]))

	var out [5]byte
	out[0] = byte(word)
	out[1] = byte(word >> 8)
	out[2] = byte(word >> 16)
	out[3] = byte(word >> 24)
	out[4] = byte(word >> 32)
	return out
}

func encode12(v float64) uint16 {
	scaled := int32(math.Round(v * quatScale))
	if scaled > 2047 {
		scaled = 2047
	}
	if scaled < -2048 {
		scaled = -2048
	}
	return uint16(scaled) & 0xFFF
}

// Euler is the aerospace ZYX (roll, pitch, yaw) decomposition of an
// attitude quaternion, in degrees (§4.D).
type Euler struct {
	RollDeg  float64
	PitchDeg float64
	YawDeg   float64
}

// QuatToEuler converts q to aerospace ZYX Euler angles. The pitch term is
// clamped to [-1, 1] before asin to avoid NaN near gimbal lock.
func QuatToEuler(q quat.Number) Euler {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll := math.Atan2(sinrCosp, cosrCosp)

	sinp := 2 * (w*y - z*x)
	if sinp > 1 {
		sinp = 1
	}
	if sinp < -1 {
		sinp = -1
	}
	pitch := math.Asin(sinp)

	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw := math.Atan2(sinyCosp, cosyCosp)

	const rad2deg = 180 / math.Pi
	return Euler{
		RollDeg:  roll * rad2deg,
		PitchDeg: pitch * rad2deg,
		YawDeg:   yaw * rad2deg,
	}
}
