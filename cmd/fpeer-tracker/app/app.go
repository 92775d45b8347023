package app

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/fleetpeer-io/fleetpeer/cmd/fpeer-tracker/app/options"
	"github.com/fleetpeer-io/fleetpeer/pkg/app"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	commandName = "fpeer-tracker"
	commandDesc = `The fleetpeer tracker keeps the live state of drivers and deliveries.

It consumes driver telemetry from a simulated, websocket or MQTT channel,
sends delivery and driver commands back over the same channel and serves
the state over an HTTP API.`
)

func NewApp() *app.App {
	opts := options.NewTrackerOptions()
	return app.NewApp(
		commandName,
		"Launch a fleetpeer tracker",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithConfigWatch(reloadLogLevel(opts)),
		app.WithRunFunc(run(opts)),
	)
}

func reloadLogLevel(opts *options.TrackerOptions) func(fsnotify.Event) {
	return func(e fsnotify.Event) {
		if err := log.SetLevel(opts.Log.Level); err != nil {
			log.Error(err, "Ignoring log level from reloaded config", "file", e.Name)
			return
		}
		log.Info("Log level reloaded", "level", opts.Log.Level)
	}
}

func run(opts *options.TrackerOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		tracker, err := cfg.NewTracker()
		if err != nil {
			return fmt.Errorf("failed to create tracker: %w", err)
		}

		return tracker.Run(ctx)
	}
}
