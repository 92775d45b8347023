package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/geo"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

func newTestConfig() *Config {
	cfg := &Config{
		HttpOptions:       options.NewHttpOptions(),
		TransportOptions:  options.NewTransportOptions(),
		WebSocketOptions:  options.NewWebSocketOptions(),
		MqttOptions:       options.NewMqttOptions(),
		SimulationOptions: options.NewSimulationOptions(),
		MapOptions:        options.NewMapOptions(),
		S3Options:         options.NewS3Options(),
		JobsOptions:       options.NewJobsOptions(),
	}
	cfg.HttpOptions.Addr = "127.0.0.1:0"
	cfg.TransportOptions.StartDelay = 0
	cfg.SimulationOptions.Seed = 7
	return cfg
}

func TestTrackerRun(t *testing.T) {
	tr, err := newTestConfig().NewTracker()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx) }()

	st := tr.service.Store()
	require.Eventually(t, func() bool { return st.Snapshot().IsConnected }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, st.Snapshot().Drivers, 4)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, st.Snapshot().IsConnected)
}

func TestNewTrackerWithArchive(t *testing.T) {
	cfg := newTestConfig()
	cfg.S3Options.Endpoint = "minio.local:9000"
	cfg.S3Options.AccessKeyID = "key"
	cfg.S3Options.SecretAccessKey = "secret"

	_, err := cfg.NewTracker()
	require.NoError(t, err)
}

func TestLocatorPosition(t *testing.T) {
	fallback := model.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	t.Run("unset falls back", func(t *testing.T) {
		res := geo.Resolve(context.Background(), newLocator(options.NewMapOptions()), fallback, time.Second)
		assert.Equal(t, geo.StatusError, res.Status)
		assert.Equal(t, geo.PositionUnavailable, res.Code)
		assert.Equal(t, fallback, res.Coordinate)
	})

	t.Run("fixed position", func(t *testing.T) {
		o := options.NewMapOptions()
		o.Position = "47.48, -52.99"
		res := geo.Resolve(context.Background(), newLocator(o), fallback, time.Second)
		assert.Equal(t, geo.StatusSuccess, res.Status)
		assert.Equal(t, model.Coordinate{Latitude: 47.48, Longitude: -52.99}, res.Coordinate)
	})
}
