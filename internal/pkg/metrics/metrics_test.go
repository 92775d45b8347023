package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistered(t *testing.T) {
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	CommandSentTotal.WithLabelValues("driver_action", "sent").Inc()
	TransportConnectivityStatus.WithLabelValues("simulated").Set(BoolToFloat(true))

	assert.Equal(t, 1.0, testutil.ToFloat64(TransportConnectivityStatus.WithLabelValues("simulated")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(CommandSentTotal.WithLabelValues("driver_action", "sent")), 1.0)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["fleetpeer_active_deliveries"])
}

func TestBoolToFloat(t *testing.T) {
	assert.Equal(t, 0.0, BoolToFloat(false))
	assert.Equal(t, 1.0, BoolToFloat(true))
}
