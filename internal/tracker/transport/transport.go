// Package transport connects the tracker to its drivers. A Channel streams
// driver telemetry in and carries commands out, whatever the underlying
// medium is.
package transport

import (
	"context"
	"fmt"
	"math/rand"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/route"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport/mqtt"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport/simulated"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport/websocket"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

// Channel is the bidirectional link to the drivers.
type Channel interface {
	// Connect opens the channel. onOpen runs after every successful open,
	// including the ones that follow a reconnect.
	Connect(ctx context.Context, onOpen func()) error

	// Send delivers msg to the drivers. Messages sent while the channel is
	// not open are dropped.
	Send(ctx context.Context, msg protocol.Message)

	// Disconnect closes the channel and cancels pending reconnects.
	Disconnect()

	// Subscribe registers h for channel events in registration order.
	Subscribe(h protocol.Handler) (cancel func())

	Connected() bool
}

var (
	_ Channel = (*simulated.Channel)(nil)
	_ Channel = (*websocket.Channel)(nil)
	_ Channel = (*mqtt.Channel)(nil)
)

// Config selects and configures a Channel.
type Config struct {
	Transport  *options.TransportOptions
	WebSocket  *options.WebSocketOptions
	Mqtt       *options.MqttOptions
	Simulation *options.SimulationOptions

	// Drivers seed the simulated channel.
	Drivers []model.Driver

	// Start is where simulated routes begin. Nil keeps the engine default.
	Start *model.Coordinate

	Clock clock.WithTickerAndDelayedExecution
}

// New builds the channel named by cfg.Transport.Kind.
func New(cfg Config) (Channel, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport options are required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	switch cfg.Transport.Kind {
	case options.TransportSimulated:
		engineOpts := EngineOptions(cfg.Simulation)
		if cfg.Start != nil {
			engineOpts = append(engineOpts, simulation.WithStart(*cfg.Start))
		}
		return simulated.NewChannel(simulated.Config{
			Drivers:       cfg.Drivers,
			StartDelay:    cfg.Transport.StartDelay,
			Clock:         cfg.Clock,
			EngineOptions: engineOpts,
		}), nil

	case options.TransportWebSocket:
		if cfg.WebSocket == nil {
			return nil, fmt.Errorf("websocket options are required for the %s transport", cfg.Transport.Kind)
		}
		return websocket.NewChannel(websocket.Config{
			URL:                  cfg.WebSocket.URL,
			HandshakeTimeout:     cfg.WebSocket.HandshakeTimeout,
			WriteTimeout:         cfg.WebSocket.WriteTimeout,
			ReconnectInterval:    cfg.Transport.ReconnectInterval,
			MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
			Clock:                cfg.Clock,
		}), nil

	case options.TransportMQTT:
		if cfg.Mqtt == nil {
			return nil, fmt.Errorf("mqtt options are required for the %s transport", cfg.Transport.Kind)
		}
		clientCfg := cfg.Mqtt.ToClientConfig()
		clientCfg.ReconnectBackoff = cfg.Transport.ReconnectInterval
		clientCfg.MaxReconnectAttempts = cfg.Transport.MaxReconnectAttempts
		return mqtt.NewChannel(clientCfg, topic.NewBuilder(cfg.Mqtt.TopicRoot), cfg.Mqtt.QoS, mqtt.WithClock(cfg.Clock)), nil

	default:
		return nil, fmt.Errorf("unknown transport kind %q", cfg.Transport.Kind)
	}
}

// EngineOptions translates simulation options into engine options. A nil
// o keeps the engine defaults.
func EngineOptions(o *options.SimulationOptions) []simulation.Option {
	if o == nil {
		return nil
	}

	opts := []simulation.Option{
		simulation.WithUpdateInterval(o.UpdateInterval),
		simulation.WithInterpolationSteps(o.InterpolationSteps),
	}

	genOpts := []route.Option{route.WithScale(o.MinRouteScale, o.MaxRouteScale)}
	if o.Seed != 0 {
		opts = append(opts, simulation.WithRand(rand.New(rand.NewSource(o.Seed))))
		genOpts = append(genOpts, route.WithRand(rand.New(rand.NewSource(o.Seed+1))))
	}
	return append(opts, simulation.WithGenerator(route.NewGenerator(genOpts...)))
}
