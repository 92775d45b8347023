package tracker

import (
	"context"
	"fmt"
	"os"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/server"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/api"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/geo"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/jobs"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/service"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/storage"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type Config struct {
	HttpOptions       *options.HttpOptions
	TransportOptions  *options.TransportOptions
	WebSocketOptions  *options.WebSocketOptions
	MqttOptions       *options.MqttOptions
	SimulationOptions *options.SimulationOptions
	MapOptions        *options.MapOptions
	S3Options         *options.S3Options
	JobsOptions       *options.JobsOptions
}

// NewTracker wires the store, the delivery service, its driver channel, the
// HTTP API and the background jobs.
func (cfg *Config) NewTracker() (*Tracker, error) {
	clk := clock.RealClock{}
	st := store.New(store.WithClock(clk))

	locator := newLocator(cfg.MapOptions)
	fallback := model.Coordinate{Latitude: cfg.MapOptions.DefaultLatitude, Longitude: cfg.MapOptions.DefaultLongitude}
	center := geo.Resolve(context.Background(), locator, fallback, geo.DefaultTimeout).Coordinate

	mqttOpts := *cfg.MqttOptions
	if mqttOpts.ClientID == "" {
		hostname, _ := os.Hostname()
		mqttOpts.ClientID = fmt.Sprintf("fpeer-tracker-%s", hostname)
	}

	svc := service.New(st, func(drivers []model.Driver) (transport.Channel, error) {
		return transport.New(transport.Config{
			Transport:  cfg.TransportOptions,
			WebSocket:  cfg.WebSocketOptions,
			Mqtt:       &mqttOpts,
			Simulation: cfg.SimulationOptions,
			Drivers:    drivers,
			Start:      &center,
			Clock:      clk,
		})
	}, service.WithClock(clk))

	streamURL := ""
	if cfg.TransportOptions.Kind == options.TransportWebSocket {
		streamURL = cfg.WebSocketOptions.URL
	}
	handler := api.NewHandler(svc, locator, cfg.MapOptions, streamURL)

	mgr := server.NewManager(server.NewHTTPServer(cfg.HttpOptions, api.NewRouter(handler)))

	if cfg.JobsOptions.Enabled {
		jm := jobs.NewJobManager()
		jm.Add(jobs.NewStaleTelemetryJob(st, cfg.JobsOptions.StaleAfter), cfg.JobsOptions.StaleSchedule)

		if cfg.S3Options.Enabled() {
			archiver, err := storage.NewMinIOArchiver(cfg.S3Options)
			if err != nil {
				return nil, err
			}
			jm.Add(jobs.NewSnapshotJob(st, archiver, clk), cfg.JobsOptions.SnapshotSchedule)
			mgr.Add(server.Func(func(ctx context.Context) error {
				if err := archiver.CheckBucket(ctx); err != nil {
					log.Error(err, "Snapshot bucket unavailable, uploads will fail until it is reachable")
				}
				return nil
			}))
		}
		mgr.Add(jm)
	}

	return &Tracker{
		service:  svc,
		manager:  mgr,
		seedDemo: cfg.SimulationOptions.SeedDemoData,
	}, nil
}

// newLocator serves the configured fixed position. Without one the provider
// reports the position as unavailable and callers use the default center.
func newLocator(o *options.MapOptions) *geo.StaticProvider {
	lat, lng, ok, err := o.ParsePosition()
	if err != nil || !ok {
		return &geo.StaticProvider{}
	}
	return geo.NewStaticProvider(lat, lng)
}
