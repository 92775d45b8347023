package simulator

import (
	"context"
	"fmt"
	"os"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/server"
	"github.com/fleetpeer-io/fleetpeer/internal/simulator/gateway"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport"
	pkgmqtt "github.com/fleetpeer-io/fleetpeer/pkg/mqtt"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt/topic"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type Config struct {
	HttpOptions       *options.HttpOptions
	SimulationOptions *options.SimulationOptions
	MapOptions        *options.MapOptions
	MqttOptions       *options.MqttOptions
	GatewayOptions    *options.GatewayOptions

	// NewMQTTClient overrides the broker client constructor.
	NewMQTTClient func(cfg *pkgmqtt.ClientConfig) (pkgmqtt.Client, error)
}

// NewSimulator builds the engine over the configured drivers and the
// gateways that expose it.
func (cfg *Config) NewSimulator() (*Simulator, error) {
	drivers := make([]model.Driver, 0, len(cfg.GatewayOptions.Drivers))
	for _, id := range cfg.GatewayOptions.Drivers {
		drivers = append(drivers, model.Driver{ID: id, Name: "Driver " + id, IsActive: true})
	}

	engineOpts := append(transport.EngineOptions(cfg.SimulationOptions),
		simulation.WithStart(model.Coordinate{
			Latitude:  cfg.MapOptions.DefaultLatitude,
			Longitude: cfg.MapOptions.DefaultLongitude,
		}))
	engine := simulation.NewEngine(drivers, engineOpts...)

	ws := gateway.NewWebSocket(engine, cfg.GatewayOptions.SendBuffer)
	httpServer := server.NewHTTPServer(cfg.HttpOptions, gateway.NewRouter(engine, ws))
	mgr := server.NewManager(
		httpServer,
		server.Func(func(ctx context.Context) error {
			<-ctx.Done()
			ws.Close()
			return nil
		}),
	)

	if cfg.GatewayOptions.EnableMQTT {
		g, err := cfg.newMQTTGateway(engine)
		if err != nil {
			return nil, err
		}
		mgr.Add(g)
	}

	return &Simulator{engine: engine, http: httpServer, manager: mgr}, nil
}

func (cfg *Config) newMQTTGateway(engine *simulation.Engine) (*gateway.MQTT, error) {
	clientCfg := cfg.MqttOptions.ToClientConfig()
	if clientCfg.ClientID == "" {
		hostname, _ := os.Hostname()
		clientCfg.ClientID = fmt.Sprintf("fpeer-simulator-%s", hostname)
	}
	// The simulator stands in for the broker-side fleet and keeps retrying.
	clientCfg.ReconnectForever = true
	builder := topic.NewBuilder(cfg.MqttOptions.TopicRoot)
	gateway.WillMessage(clientCfg, builder, clientCfg.ClientID)

	newClient := cfg.NewMQTTClient
	if newClient == nil {
		newClient = pkgmqtt.NewClient
	}
	client, err := newClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create mqtt client: %w", err)
	}
	return gateway.NewMQTT(client, builder, cfg.MqttOptions.QoS, clientCfg.ClientID, engine, cfg.GatewayOptions.SendBuffer), nil
}
