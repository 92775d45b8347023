package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// Server is a long-running component that stops when ctx is done.
type Server interface {
	Start(ctx context.Context) error
}

// Func adapts a function to Server.
type Func func(ctx context.Context) error

func (f Func) Start(ctx context.Context) error { return f(ctx) }

// Manager runs servers together. The first server to fail stops the others.
type Manager struct {
	servers []Server
}

func NewManager(servers ...Server) *Manager {
	return &Manager{servers: servers}
}

func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range m.servers {
		g.Go(func() error {
			return s.Start(ctx)
		})
	}

	log.Info("All servers starting...", "count", len(m.servers))
	return g.Wait()
}
