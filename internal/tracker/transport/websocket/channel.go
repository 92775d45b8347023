package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"
	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	kind = "websocket"

	disconnectReason = "Client disconnecting"

	defaultReconnectInterval = 5 * time.Second
	defaultMaxAttempts       = 5
	defaultWriteTimeout      = 5 * time.Second
)

// Config configures a Channel.
type Config struct {
	URL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration

	// ReconnectInterval is the constant delay before each reconnect attempt.
	ReconnectInterval time.Duration

	// MaxReconnectAttempts is the number of reconnects after a failed dial or
	// an unclean close. Zero gives up on the first failure.
	MaxReconnectAttempts int

	Clock clock.WithDelayedExecution
}

// Channel is a driver channel over a websocket connection. It reconnects
// with a constant backoff after connect failures and unclean closes, and
// gives up after a bounded number of attempts.
type Channel struct {
	cfg    Config
	dialer *gws.Dialer
	logger log.Logger
	events *protocol.Emitter

	mu       sync.Mutex
	conn     *gws.Conn
	onOpen   func()
	attempts int
	timer    clock.Timer
	closing  bool

	// writeMu serializes frames; gorilla connections allow one concurrent writer.
	writeMu sync.Mutex
}

func NewChannel(cfg Config) *Channel {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.MaxReconnectAttempts < 0 {
		cfg.MaxReconnectAttempts = defaultMaxAttempts
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}

	return &Channel{
		cfg: cfg,
		dialer: &gws.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: log.WithName("transport").WithValues("kind", kind, "url", cfg.URL),
		events: protocol.NewEmitter(),
	}
}

func (c *Channel) Subscribe(h protocol.Handler) (cancel func()) {
	return c.events.Subscribe(h)
}

func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the endpoint. onOpen is called after every successful
// (re)connection. A failed dial is returned and retried in the background.
// While a reconnect is pending Connect only replaces onOpen.
func (c *Channel) Connect(ctx context.Context, onOpen func()) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	if c.timer != nil {
		c.onOpen = onOpen
		attempt := c.attempts
		c.mu.Unlock()
		c.logger.Info("Reconnect already pending", "attempt", attempt)
		return nil
	}
	c.onOpen = onOpen
	c.closing = false
	c.attempts = 0
	c.mu.Unlock()

	if err := c.dial(ctx); err != nil {
		c.scheduleReconnect()
		return err
	}
	return nil
}

func (c *Channel) dial(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.logger.Error(err, "Websocket connection failed")
		c.events.Emit(protocol.ErrorEvent(err))
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		_ = conn.Close()
		return errors.New("channel disconnected during dial")
	}
	c.conn = conn
	c.attempts = 0
	onOpen := c.onOpen
	c.mu.Unlock()

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(1)
	c.logger.Info("Websocket connected")
	c.events.Emit(protocol.OpenEvent())
	if onOpen != nil {
		onOpen()
	}

	go c.readLoop(conn)
	return nil
}

func (c *Channel) readLoop(conn *gws.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		if msgType != gws.TextMessage {
			continue
		}

		loc, err := protocol.DecodeLocation(data)
		if err != nil {
			c.logger.Warn("Dropping invalid telemetry frame", "error", err.Error())
			continue
		}
		c.events.Emit(protocol.MessageEvent(loc))
	}
}

func (c *Channel) handleClose(conn *gws.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		// Disconnect already took the connection down.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()
	_ = conn.Close()

	code, reason := protocol.CloseAbnormal, err.Error()
	var ce *gws.CloseError
	if errors.As(err, &ce) {
		code, reason = ce.Code, ce.Text
	}
	clean := code == gws.CloseNormalClosure

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	c.logger.Info("Websocket closed", "code", code, "reason", reason, "clean", clean)
	c.events.Emit(protocol.CloseEvent(code, reason, clean))

	if !clean {
		c.scheduleReconnect()
	}
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		attempts := c.attempts
		c.mu.Unlock()

		err := fmt.Errorf("%w after %d reconnect attempts", protocol.ErrReconnectExhausted, attempts)
		c.logger.Error(err, "Giving up on websocket endpoint")
		c.events.Emit(protocol.ErrorEvent(err))
		return
	}
	defer c.mu.Unlock()

	c.attempts++
	attempt := c.attempts
	metrics.TransportReconnectAttemptsTotal.WithLabelValues(kind).Inc()
	c.logger.Info("Scheduling reconnect", "attempt", attempt, "max", c.cfg.MaxReconnectAttempts, "in", c.cfg.ReconnectInterval)

	c.timer = c.cfg.Clock.AfterFunc(c.cfg.ReconnectInterval, func() {
		go c.reconnect()
	})
}

func (c *Channel) reconnect() {
	c.mu.Lock()
	closing := c.closing
	c.timer = nil
	c.mu.Unlock()
	if closing {
		return
	}

	ctx := context.Background()
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	if err := c.dial(ctx); err != nil {
		c.scheduleReconnect()
	}
}

// Send writes msg as a text frame. While disconnected the message is
// dropped with a warning.
func (c *Channel) Send(ctx context.Context, msg protocol.Message) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.logger.Warn("Dropping command, websocket not connected", "type", msg.Type())
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}

	payload, err := protocol.Encode(msg, c.cfg.Clock.Now())
	if err != nil {
		c.logger.Error(err, "Failed to encode command", "type", msg.Type())
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(gws.TextMessage, payload); err != nil {
		c.logger.Error(err, "Failed to send command", "type", msg.Type())
		metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "dropped").Inc()
		return
	}
	metrics.CommandSentTotal.WithLabelValues(string(msg.Type()), "sent").Inc()
}

// Disconnect cancels any pending reconnect, closes the connection with a
// normal closure and emits the close event before returning.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return
	}

	c.writeMu.Lock()
	_ = conn.WriteControl(gws.CloseMessage,
		gws.FormatCloseMessage(gws.CloseNormalClosure, disconnectReason),
		time.Now().Add(c.cfg.WriteTimeout))
	c.writeMu.Unlock()
	_ = conn.Close()

	metrics.TransportConnectivityStatus.WithLabelValues(kind).Set(0)
	c.logger.Info("Websocket disconnected")
	c.events.Emit(protocol.CloseEvent(protocol.CloseNormal, disconnectReason, true))
}
