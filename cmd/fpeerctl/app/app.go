package app

import (
	"os"
	"time"

	"github.com/fleetpeer-io/fleetpeer/pkg/app"
)

const (
	commandName = "fpeerctl"

	defaultServer  = "http://localhost:8080"
	defaultTimeout = 10 * time.Second
)

// ctlOptions are shared by every subcommand.
type ctlOptions struct {
	Server  string
	Timeout time.Duration
}

func (o *ctlOptions) client() *Client {
	return NewClient(o.Server, o.Timeout)
}

func NewApp() *app.App {
	opts := &ctlOptions{Server: defaultServer, Timeout: defaultTimeout}
	if s, ok := os.LookupEnv("FLEETPEER_SERVER"); ok && s != "" {
		opts.Server = s
	}

	a := app.NewApp(
		commandName,
		"Inspect and control a fleetpeer tracker",
		app.WithDescription("fpeerctl lists drivers and deliveries of a running tracker and sends delivery and driver actions to it."),
		app.WithNoConfig(),
		app.WithSubCommands(
			newDriversCommand(opts),
			newDeliveriesCommand(opts),
			newOverviewCommand(opts),
			newDeliverCommand(opts),
			newDriverCommand(opts),
			newLocateCommand(opts),
		),
	)

	pfs := a.Command().PersistentFlags()
	pfs.StringVarP(&opts.Server, "server", "s", opts.Server, "Base URL of the tracker (env FLEETPEER_SERVER).")
	pfs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Timeout of each API request.")
	return a
}
