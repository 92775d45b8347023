package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

// HTTPServer serves a handler until its context is done.
type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration

	// ready is closed once the listener is bound.
	ready chan struct{}
	addr  string
}

func NewHTTPServer(opts *options.HttpOptions, handler http.Handler) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: opts.ShutdownTimeout,
		ready:           make(chan struct{}),
	}
}

// Addr returns the bound address once the server is listening.
func (s *HTTPServer) Addr(ctx context.Context) (string, error) {
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	close(s.ready)
	log.Info("Starting HTTP Server", "addr", s.addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		log.Info("Shutting down HTTP Server", "addr", s.addr)
		return s.server.Shutdown(shutdownCtx)
	}
}
