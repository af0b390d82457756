package protocol

import "math"

const (
	gamma = 1.4
	gasR  = 287.05
	seaLevelDensity = 1.225
	scaleHeight     = 8500.0
)

// isaTemperature returns the ISA atmospheric temperature in Kelvin at
// altitude h (metres). Negative altitude clamps to 0; above the
// tropopause (11000 m) the temperature is held at the tropopause value.
func isaTemperature(h float64) float64 {
	if h < 0 {
		h = 0
	}
	if h < 11000 {
		return 288.15 - 0.0065*h
	}
	return 216.65
}

// SpeedOfSound returns a(h) = sqrt(gamma * R * T(h)) in m/s.
func SpeedOfSound(altitudeM float64) float64 {
	return math.Sqrt(gamma * gasR * isaTemperature(altitudeM))
}

// Mach returns |v| / a(h) (§4.D).
func Mach(velocityMps, altitudeM float64) float64 {
	a := SpeedOfSound(altitudeM)
	if a == 0 {
		return 0
	}
	return math.Abs(velocityMps) / a
}

// AirDensity returns the exponential-density-model atmospheric density in
// kg/m^3 at altitude h: rho = 1.225 * exp(-h/8500).
func AirDensity(altitudeM float64) float64 {
	return seaLevelDensity * math.Exp(-altitudeM/scaleHeight)
}

// QBar returns dynamic pressure 1/2 * rho * v^2 in Pascals (§4.D).
func QBar(velocityMps, altitudeM float64) float64 {
	rho := AirDensity(altitudeM)
	return 0.5 * rho * velocityMps * velocityMps
}
