package app

import (
	"fmt"

	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/fleetpeer-io/fleetpeer/cmd/fpeer-simulator/app/options"
	"github.com/fleetpeer-io/fleetpeer/pkg/app"
)

const commandName = "fpeer-simulator"

func NewApp() *app.App {
	opts := options.NewSimulatorOptions()
	return app.NewApp(
		commandName,
		"Launch a standalone driver simulator",
		app.WithDescription(`The fleetpeer simulator drives a fleet of virtual drivers along random routes.
Trackers consume their telemetry over the /ws websocket endpoint or an MQTT broker.`),
		app.WithOptions(opts),
		app.WithDefaultValidArgs(),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.SimulatorOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		sim, err := cfg.NewSimulator()
		if err != nil {
			return fmt.Errorf("failed to create simulator: %w", err)
		}

		return sim.Run(ctx)
	}
}
