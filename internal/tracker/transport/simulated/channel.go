package simulated

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	kind = "simulated"

	// DefaultStartDelay models the handshake of a network channel.
	DefaultStartDelay = time.Second
)

// Config configures a Channel.
type Config struct {
	// Drivers are simulated from the moment the channel connects.
	Drivers []model.Driver

	StartDelay time.Duration

	Clock clock.WithTickerAndDelayedExecution

	// EngineOptions are passed to every engine the channel creates.
	EngineOptions []simulation.Option
}

// Channel runs a simulation engine in process and exposes it with the same
// contract as a network channel.
type Channel struct {
	cfg    Config
	logger log.Logger
	events *protocol.Emitter

	mu          sync.Mutex
	engine      *simulation.Engine
	unsubscribe func()
	timer       clock.Timer
	onOpen      func()
}

func NewChannel(cfg Config) *Channel {
	if cfg.StartDelay < 0 {
		cfg.StartDelay = DefaultStartDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	return &Channel{
		cfg:    cfg,
		logger: log.WithName("transport").WithValues("kind", kind),
		events: protocol.NewEmitter(),
	}
}

func (c *Channel) Subscribe(h protocol.Handler) (cancel func()) {
	return c.events.Subscribe(h)
}

// Connected reports whether the engine is running.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	engine := c.engine
	c.mu.Unlock()
	return engine != nil && engine.Running()
}

// Engine returns the current engine, or nil before Connect.
func (c *Channel) Engine() *simulation.Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine
}

// Connect creates an engine over the configured drivers and starts it after
// the start delay. Calling Connect on a connected or connecting channel does
// nothing.
func (c *Channel) Connect(_ context.Context, onOpen func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.engine != nil {
		return nil
	}

	opts := append([]simulation.Option{simulation.WithClock(c.cfg.Clock)}, c.cfg.EngineOptions...)
	engine := simulation.NewEngine(c.cfg.Drivers, opts...)
	c.engine = engine
	c.onOpen = onOpen
	c.unsubscribe = engine.Subscribe(c.forward)

	c.logger.Info("Connecting to simulation", "drivers", len(c.cfg.Drivers), "delay", c.cfg.StartDelay)
	c.timer = c.cfg.Clock.AfterFunc(c.cfg.StartDelay, func() {
		go c.start(engine)
	})
	return nil
}

func (c *Channel) start(engine *simulation.Engine) {
	c.mu.Lock()
	current := c.engine
	c.timer = nil
	c.mu.Unlock()

	if current != engine {
		return
	}
	engine.Start()
}

func (c *Channel) forward(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventOpen:
		metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(1)
		c.events.Emit(ev)

		c.mu.Lock()
		onOpen := c.onOpen
		c.mu.Unlock()
		if onOpen != nil {
			onOpen()
		}
		return
	case protocol.EventClose:
		metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	}
	c.events.Emit(ev)
}

// Send hands msg to the engine in its wire form. While the engine is not
// running the message is dropped with a warning.
func (c *Channel) Send(_ context.Context, msg protocol.Message) {
	engine := c.Engine()
	if engine == nil || !engine.Running() {
		c.logger.Warn("Dropping command, simulation not running", "type", msg.Type())
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}

	payload, err := protocol.Encode(msg, c.cfg.Clock.Now())
	if err != nil {
		c.logger.Error(err, "Failed to encode command", "type", msg.Type())
		return
	}
	if err := engine.HandleMessage(payload); err != nil {
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}
	metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "sent").Inc()
}

// Disconnect cancels a pending start and stops the engine. The close event
// is emitted before Disconnect returns if the engine was running.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	engine := c.engine
	unsubscribe := c.unsubscribe
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.engine = nil
	c.unsubscribe = nil
	c.mu.Unlock()

	if engine == nil {
		return
	}
	engine.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}
	engine.Close()
	c.logger.Info("Simulation disconnected")
}
