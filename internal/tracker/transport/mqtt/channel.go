package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/pkg/mqtt/paths"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	pkgmqtt "github.com/fleetpeer-io/fleetpeer/pkg/mqtt"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt/topic"
)

const (
	kind = "mqtt"

	disconnectReason = "Client disconnecting"
	disconnectWait   = 5 * time.Second
)

// ClientFactory creates the broker client from its final configuration.
type ClientFactory func(cfg *pkgmqtt.ClientConfig) (pkgmqtt.Client, error)

type Option func(*Channel)

func WithClientFactory(f ClientFactory) Option {
	return func(c *Channel) { c.newClient = f }
}

func WithClock(clk clock.PassiveClock) Option {
	return func(c *Channel) { c.clock = clk }
}

// Channel is a driver channel over an MQTT broker. Telemetry arrives on
// {root}/location/{driverId}; commands go to {root}/command/{driverId}.
type Channel struct {
	topics    *topic.Builder
	qos       int
	clock     clock.PassiveClock
	newClient ClientFactory
	logger    log.Logger
	events    *protocol.Emitter

	mu        sync.Mutex
	cfg       *pkgmqtt.ClientConfig
	client    pkgmqtt.Client
	connected bool
	onOpen    func()
}

// NewChannel prepares a channel. cfg carries the broker settings and the
// reconnect bound; its connection callbacks are owned by the channel.
func NewChannel(cfg *pkgmqtt.ClientConfig, builder *topic.Builder, qos int, opts ...Option) *Channel {
	c := &Channel{
		cfg:       cfg,
		topics:    builder,
		qos:       qos,
		clock:     clock.RealClock{},
		newClient: pkgmqtt.NewClient,
		logger:    log.WithName("transport").WithValues("kind", kind, "broker", cfg.BrokerURL),
		events:    protocol.NewEmitter(),
	}
	for _, o := range opts {
		o(c)
	}

	cfg.OnConnected = c.handleConnected
	cfg.OnDisconnected = c.handleDisconnected
	cfg.OnConnectError = c.handleConnectError
	cfg.OnGiveUp = c.handleGiveUp
	return c
}

func (c *Channel) Subscribe(h protocol.Handler) (cancel func()) {
	return c.events.Subscribe(h)
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect starts the broker client and subscribes to driver telemetry. It
// returns once the client is started; onOpen runs after every (re)connection.
func (c *Channel) Connect(ctx context.Context, onOpen func()) error {
	c.mu.Lock()
	if c.client != nil {
		c.mu.Unlock()
		return nil
	}
	c.onOpen = onOpen
	c.mu.Unlock()

	client, err := c.newClient(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to create mqtt client: %w", err)
	}
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}

	filter := c.topics.BuildWildcard(paths.Location)
	if err := client.Subscribe(ctx, filter, c.qos, c.handleLocation); err != nil {
		client.Disconnect(ctx)
		return fmt.Errorf("failed to subscribe to topic: %s, err: %w", filter, err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

func (c *Channel) handleLocation(_ context.Context, t string, payload []byte) {
	id, ok := c.topics.ID(paths.Location, t)
	if !ok {
		c.logger.Warn("Dropping telemetry on unexpected topic", "topic", t)
		return
	}

	loc, err := protocol.DecodeLocation(payload)
	if err != nil {
		c.logger.Warn("Dropping invalid telemetry frame", "topic", t, "error", err.Error())
		return
	}
	if loc.DriverID != id {
		c.logger.Warn("Dropping telemetry for mismatched driver", "topic", t, "driverID", loc.DriverID)
		return
	}
	c.events.Emit(protocol.MessageEvent(loc))
}

func (c *Channel) handleConnected() {
	c.mu.Lock()
	c.connected = true
	onOpen := c.onOpen
	c.mu.Unlock()

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(1)
	c.events.Emit(protocol.OpenEvent())
	if onOpen != nil {
		onOpen()
	}
}

func (c *Channel) handleDisconnected(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	metrics.TransportReconnectAttemptsTotal.WithLabelValues(kind).Inc()
	c.events.Emit(protocol.CloseEvent(protocol.CloseAbnormal, err.Error(), false))
}

// handleConnectError reports a failed connection attempt. Retries are
// driven by the client.
func (c *Channel) handleConnectError(err error) {
	c.events.Emit(protocol.ErrorEvent(fmt.Errorf("connect %s: %w", c.cfg.BrokerURL, err)))
}

func (c *Channel) handleGiveUp(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	c.events.Emit(protocol.ErrorEvent(fmt.Errorf("%w: %v", protocol.ErrReconnectExhausted, err)))
}

// Send publishes msg to the addressed driver, or to the broadcast topic
// for messages without one. While disconnected the message is dropped.
func (c *Channel) Send(ctx context.Context, msg protocol.Message) {
	c.mu.Lock()
	client, connected := c.client, c.connected
	c.mu.Unlock()

	if client == nil || !connected {
		c.logger.Warn("Dropping command, broker not connected", "type", msg.Type())
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}

	payload, err := protocol.Encode(msg, c.clock.Now())
	if err != nil {
		c.logger.Error(err, "Failed to encode command", "type", msg.Type())
		return
	}

	id := protocol.TargetDriver(msg)
	if id == "" {
		id = paths.Broadcast
	}
	t := c.topics.Build(paths.Command, id)
	if err := client.Publish(ctx, t, c.qos, false, payload); err != nil {
		c.logger.Error(err, "Failed to publish command", "topic", t)
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}
	metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "sent").Inc()
}

// Disconnect stops the client, which also stops any reconnect, and emits
// the close event before returning.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	client := c.client
	wasConnected := c.connected
	c.client = nil
	c.connected = false
	c.mu.Unlock()

	if client == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectWait)
	defer cancel()
	client.Disconnect(ctx)

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	if wasConnected {
		c.events.Emit(protocol.CloseEvent(protocol.CloseNormal, disconnectReason, true))
	}
}
