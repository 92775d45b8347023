package gateway

import (
	"net/http"
	"sync"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

const (
	kindWebSocket = "websocket"

	writeWait = 5 * time.Second
)

// WebSocket streams engine telemetry to every connected peer and applies the
// commands peers send back.
type WebSocket struct {
	engine     *simulation.Engine
	upgrader   gws.Upgrader
	sendBuffer int
	logger     log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn   *gws.Conn
	remote string
	send   chan []byte
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// NewWebSocket attaches a gateway to engine. sendBuffer bounds the frames
// queued per client.
func NewWebSocket(engine *simulation.Engine, sendBuffer int) *WebSocket {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	g := &WebSocket{
		engine:     engine,
		sendBuffer: sendBuffer,
		upgrader: gws.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger:  log.WithName("gateway").WithValues("kind", kindWebSocket),
		clients: make(map[*client]struct{}),
	}
	engine.Subscribe(g.handleEvent)
	return g
}

func (g *WebSocket) handleEvent(ev protocol.Event) {
	if ev.Type != protocol.EventMessage || ev.Location == nil {
		return
	}
	payload, err := protocol.EncodeLocation(*ev.Location)
	if err != nil {
		g.logger.Error(err, "Failed to encode location", "driverID", ev.Location.DriverID)
		return
	}
	g.broadcast(payload)
}

// broadcast queues payload for every client. A client whose queue is full is
// disconnected.
func (g *WebSocket) broadcast(payload []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for c := range g.clients {
		select {
		case c.send <- payload:
			metrics.GatewayMessagesTotal.WithLabelValues(kindWebSocket, "out", "sent").Inc()
		default:
			g.logger.Warn("Dropping slow client", "remote", c.remote)
			metrics.GatewayMessagesTotal.WithLabelValues(kindWebSocket, "out", "dropped").Inc()
			g.removeLocked(c)
		}
	}
}

func (g *WebSocket) removeLocked(c *client) {
	if _, ok := g.clients[c]; !ok {
		return
	}
	delete(g.clients, c)
	c.close()
	metrics.GatewayClients.WithLabelValues(kindWebSocket).Set(float64(len(g.clients)))
}

func (g *WebSocket) remove(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(c)
}

// Clients returns the number of connected peers.
func (g *WebSocket) Clients() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (g *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err.Error())
		return
	}

	c := &client{conn: conn, remote: conn.RemoteAddr().String(), send: make(chan []byte, g.sendBuffer)}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		_ = conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseGoingAway, "simulator shutting down"))
		_ = conn.Close()
		return
	}
	g.clients[c] = struct{}{}
	metrics.GatewayClients.WithLabelValues(kindWebSocket).Set(float64(len(g.clients)))
	g.mu.Unlock()

	g.logger.Info("Client connected", "remote", c.remote)

	go g.writeLoop(c)
	g.readLoop(c)
}

func (g *WebSocket) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gws.TextMessage, payload); err != nil {
			g.remove(c)
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(gws.CloseMessage, gws.FormatCloseMessage(gws.CloseNormalClosure, ""))
}

func (g *WebSocket) readLoop(c *client) {
	defer func() {
		g.remove(c)
		g.logger.Info("Client disconnected", "remote", c.remote)
	}()

	for {
		mt, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != gws.TextMessage {
			continue
		}
		if err := g.engine.HandleMessage(payload); err != nil {
			metrics.GatewayMessagesTotal.WithLabelValues(kindWebSocket, "in", "invalid").Inc()
			continue
		}
		metrics.GatewayMessagesTotal.WithLabelValues(kindWebSocket, "in", "applied").Inc()
	}
}

// Close disconnects every client with a normal close frame and rejects new
// ones.
func (g *WebSocket) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
	for c := range g.clients {
		g.removeLocked(c)
	}
}
