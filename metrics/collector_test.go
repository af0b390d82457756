package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/padflight/groundstation/protocol"
	"github.com/padflight/groundstation/telemetry"
)

func TestCollectorRegistersAndScrapes(t *testing.T) {
	store := telemetry.NewStore()
	store.UpdateFromFCFast(protocol.FCFastMessage{AltitudeM: 123.0}, time.Unix(0, 0))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(store)))

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawAltitude bool
	for _, mf := range families {
		if mf.GetName() == "groundstation_altitude_m" {
			sawAltitude = true
			require.Len(t, mf.Metric, 1)
			require.Equal(t, 123.0, mf.Metric[0].GetGauge().GetValue())
		}
	}
	require.True(t, sawAltitude)
}

func TestCollectorRingFullnessHasThreeBuffers(t *testing.T) {
	store := telemetry.NewStore()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewCollector(store)))

	families, err := reg.Gather()
	require.NoError(t, err)

	var fullness *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "groundstation_ring_buffer_fullness" {
			fullness = mf
		}
	}
	require.NotNil(t, fullness)
	require.Len(t, fullness.Metric, 3)
}
