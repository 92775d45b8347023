package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/pkg/mqtt/paths"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	pkgmqtt "github.com/fleetpeer-io/fleetpeer/pkg/mqtt"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt/topic"
)

const (
	kindMQTT = "mqtt"

	disconnectWait = 5 * time.Second
)

var (
	onlinePayload  = []byte(`{"online":true}`)
	offlinePayload = []byte(`{"online":false}`)
)

type outbound struct {
	topic   string
	payload []byte
}

// MQTT publishes engine telemetry to {root}/location/{driverId} and applies
// commands received on {root}/command/+.
type MQTT struct {
	client   pkgmqtt.Client
	topics   *topic.Builder
	qos      int
	clientID string
	engine   *simulation.Engine
	logger   log.Logger

	out chan outbound
}

// WillMessage configures cfg so the broker marks clientID offline when the
// gateway drops without disconnecting.
func WillMessage(cfg *pkgmqtt.ClientConfig, builder *topic.Builder, clientID string) {
	cfg.WillTopic = builder.Build(paths.Status, clientID)
	cfg.WillPayload = offlinePayload
	cfg.WillQoS = 1
	cfg.WillRetain = true
}

// NewMQTT attaches a gateway to engine. Samples are queued up to sendBuffer
// and dropped beyond it.
func NewMQTT(client pkgmqtt.Client, builder *topic.Builder, qos int, clientID string, engine *simulation.Engine, sendBuffer int) *MQTT {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	g := &MQTT{
		client:   client,
		topics:   builder,
		qos:      qos,
		clientID: clientID,
		engine:   engine,
		logger:   log.WithName("gateway").WithValues("kind", kindMQTT, "clientID", clientID),
		out:      make(chan outbound, sendBuffer),
	}
	engine.Subscribe(g.handleEvent)
	return g
}

func (g *MQTT) handleEvent(ev protocol.Event) {
	if ev.Type != protocol.EventMessage || ev.Location == nil {
		return
	}
	payload, err := protocol.EncodeLocation(*ev.Location)
	if err != nil {
		g.logger.Error(err, "Failed to encode location", "driverID", ev.Location.DriverID)
		return
	}

	select {
	case g.out <- outbound{topic: g.topics.Build(paths.Location, ev.Location.DriverID), payload: payload}:
	default:
		metrics.GatewayMessagesTotal.WithLabelValues(kindMQTT, "out", "dropped").Inc()
	}
}

// Start connects to the broker, announces the gateway online, subscribes to
// commands and publishes telemetry until ctx is done.
func (g *MQTT) Start(ctx context.Context) error {
	if err := g.client.Start(ctx); err != nil {
		return err
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), disconnectWait)
		defer cancel()
		if err := g.client.Publish(shutdownCtx, g.topics.Build(paths.Status, g.clientID), 1, true, offlinePayload); err != nil {
			g.logger.Warn("Failed to announce offline", "error", err.Error())
		}
		g.client.Disconnect(shutdownCtx)
		metrics.GatewayClients.WithLabelValues(kindMQTT).Set(metrics.BoolToFloat(false))
		g.logger.Info("MQTT gateway disconnected")
	}()

	g.logger.Info("Waiting for MQTT connection...")
	if err := g.client.AwaitConnection(ctx); err != nil {
		return err
	}
	metrics.GatewayClients.WithLabelValues(kindMQTT).Set(metrics.BoolToFloat(g.client.IsConnected()))

	if err := g.client.Publish(ctx, g.topics.Build(paths.Status, g.clientID), 1, true, onlinePayload); err != nil {
		return fmt.Errorf("failed to announce online: %w", err)
	}

	filter := g.topics.Shared(paths.GroupSimulator).BuildWildcard(paths.Command)
	if err := g.client.Subscribe(ctx, filter, g.qos, g.handleCommand); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
	}
	g.logger.Info("MQTT gateway ready", "commands", filter)

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-g.out:
			g.publish(ctx, m)
		}
	}
}

func (g *MQTT) publish(ctx context.Context, m outbound) {
	if err := g.client.Publish(ctx, m.topic, g.qos, false, m.payload); err != nil {
		g.logger.Warn("Failed to publish location", "topic", m.topic, "error", err.Error())
		metrics.GatewayMessagesTotal.WithLabelValues(kindMQTT, "out", "failed").Inc()
		return
	}
	metrics.GatewayMessagesTotal.WithLabelValues(kindMQTT, "out", "sent").Inc()
}

func (g *MQTT) handleCommand(_ context.Context, t string, payload []byte) {
	if err := g.engine.HandleMessage(payload); err != nil {
		g.logger.Warn("Dropping invalid command", "topic", t, "error", err.Error())
		metrics.GatewayMessagesTotal.WithLabelValues(kindMQTT, "in", "invalid").Inc()
		return
	}
	metrics.GatewayMessagesTotal.WithLabelValues(kindMQTT, "in", "applied").Inc()
}
