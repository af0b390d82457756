package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpeedOfSoundSeaLevel(t *testing.T) {
	a := SpeedOfSound(0)
	require.InDelta(t, 340.3, a, 0.5)
}

func TestSpeedOfSoundAboveTropopauseIsConstant(t *testing.T) {
	a1 := SpeedOfSound(11000)
	a2 := SpeedOfSound(15000)
	require.InDelta(t, a1, a2, 1e-9)
}

func TestMachZeroVelocity(t *testing.T) {
	require.Equal(t, 0.0, Mach(0, 1000))
}

func TestMachKnownValue(t *testing.T) {
	a := SpeedOfSound(0)
	m := Mach(a, 0)
	require.InDelta(t, 1.0, m, 1e-9)
}

func TestMachUsesMagnitude(t *testing.T) {
	a := SpeedOfSound(0)
	require.InDelta(t, Mach(a, 0), Mach(-a, 0), 1e-9)
}

func TestAirDensitySeaLevel(t *testing.T) {
	require.InDelta(t, 1.225, AirDensity(0), 1e-9)
}

func TestAirDensityDecreasesWithAltitude(t *testing.T) {
	require.Less(t, AirDensity(5000), AirDensity(0))
}

func TestQBarZeroAtZeroVelocity(t *testing.T) {
	require.Equal(t, 0.0, QBar(0, 1000))
}

func TestQBarKnownValue(t *testing.T) {
	// qbar = 0.5 * rho(0) * v^2
	v := 100.0
	want := 0.5 * 1.225 * v * v
	require.InDelta(t, want, QBar(v, 0), 1e-6)
}

func TestIsaTemperatureClampsNegativeAltitude(t *testing.T) {
	require.Equal(t, isaTemperature(0), isaTemperature(-500))
}

func TestQuatToEulerIdentityIsZero(t *testing.T) {
	e := QuatToEuler(IdentityQuat)
	require.InDelta(t, 0, e.RollDeg, 1e-6)
	require.InDelta(t, 0, e.PitchDeg, 1e-6)
	require.InDelta(t, 0, e.YawDeg, 1e-6)
}

func TestQuatToEulerNoNaNAnywhereNearPoles(t *testing.T) {
	for _, sign := range []float64{1, -1} {
		q := IdentityQuat
		q.Jmag = sign * math.Sqrt2 / 2
		q.Real = math.Sqrt2 / 2
		e := QuatToEuler(q)
		require.False(t, math.IsNaN(e.RollDeg))
		require.False(t, math.IsNaN(e.PitchDeg))
		require.False(t, math.IsNaN(e.YawDeg))
	}
}
