package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestServerMetricsRegisterAndIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics()
	m.Register(reg)

	m.ChannelsOpen.Set(3)
	m.ServiceFaultsTotal.WithLabelValues("Browse").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var sawChannels, sawFaults bool
	for _, fam := range families {
		switch fam.GetName() {
		case "opcuad_channels_open":
			sawChannels = true
			require.Equal(t, float64(3), fam.Metric[0].GetGauge().GetValue())
		case "opcuad_service_faults_total":
			sawFaults = true
			require.Equal(t, float64(1), fam.Metric[0].GetCounter().GetValue())
		}
	}
	require.True(t, sawChannels)
	require.True(t, sawFaults)
}
