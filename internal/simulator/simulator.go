// Package simulator runs the standalone driver simulator that feeds trackers
// over websocket or MQTT.
package simulator

import (
	"context"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/server"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

type Simulator struct {
	engine  *simulation.Engine
	http    *server.HTTPServer
	manager *server.Manager
}

// Engine returns the simulation behind the gateways.
func (s *Simulator) Engine() *simulation.Engine {
	return s.engine
}

// Addr returns the address the gateway listens on once it is bound.
func (s *Simulator) Addr(ctx context.Context) (string, error) {
	return s.http.Addr(ctx)
}

// Run ticks the simulation and serves the gateways until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	s.engine.Start()
	defer s.engine.Close()

	log.Info("Simulator running", "drivers", s.engine.Len())
	return s.manager.Start(ctx)
}
