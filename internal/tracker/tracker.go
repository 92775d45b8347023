// Package tracker assembles the delivery tracking server.
package tracker

import (
	"context"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/server"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/service"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

type Tracker struct {
	service  *service.DeliveryService
	manager  *server.Manager
	seedDemo bool
}

// Run connects the driver channel and serves until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if t.seedDemo {
		t.service.LoadDemoData()
	}

	drivers := t.service.Store().Snapshot().AllDrivers()
	if err := t.service.Initialize(ctx, drivers); err != nil {
		// The channel keeps reconnecting; the API reports not ready meanwhile.
		log.Error(err, "Driver channel not connected yet")
	}
	defer t.service.Cleanup()

	return t.manager.Start(ctx)
}
