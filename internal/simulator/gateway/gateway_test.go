package gateway

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/simulation"
	pkgmqtt "github.com/fleetpeer-io/fleetpeer/pkg/mqtt"
	"github.com/fleetpeer-io/fleetpeer/pkg/mqtt/topic"
)

var testStart = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, ids ...string) *simulation.Engine {
	t.Helper()
	drivers := make([]model.Driver, 0, len(ids))
	for _, id := range ids {
		drivers = append(drivers, model.Driver{ID: id, IsActive: true})
	}
	e := simulation.NewEngine(drivers,
		simulation.WithClock(testingclock.NewFakeClock(testStart)),
		simulation.WithRand(rand.New(rand.NewSource(7))),
	)
	t.Cleanup(e.Close)
	return e
}

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readLocation(t *testing.T, conn *gws.Conn) model.DriverLocation {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	loc, err := protocol.DecodeLocation(payload)
	require.NoError(t, err)
	return loc
}

func TestWebSocketBroadcastsTelemetry(t *testing.T) {
	engine := newTestEngine(t, "123", "456")
	ws := NewWebSocket(engine, 8)
	srv := httptest.NewServer(NewRouter(engine, ws))
	t.Cleanup(srv.Close)

	first, second := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return ws.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	engine.Tick()

	for _, conn := range []*gws.Conn{first, second} {
		a, b := readLocation(t, conn), readLocation(t, conn)
		assert.Equal(t, "123", a.DriverID)
		assert.Equal(t, "456", b.DriverID)
		assert.Equal(t, model.DriverStatusEnRoute, a.Status)
		assert.Equal(t, testStart, a.Timestamp.UTC())
	}
}

func TestWebSocketAppliesCommands(t *testing.T) {
	engine := newTestEngine(t, "123")
	ws := NewWebSocket(engine, 8)
	srv := httptest.NewServer(NewRouter(engine, ws))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return ws.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(`not json`)))
	payload, err := protocol.Encode(protocol.DriverActionMessage{DriverID: "123", Action: model.DriverActionPause}, testStart)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, payload))

	require.Eventually(t, func() bool {
		st, ok := engine.State("123")
		return ok && st.Paused
	}, 2*time.Second, 10*time.Millisecond)

	payload, err = protocol.Encode(protocol.LocationRequestMessage{DriverID: "123"}, testStart)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, payload))

	loc := readLocation(t, conn)
	assert.Equal(t, model.DriverStatusPaused, loc.Status)
	assert.Equal(t, "???", loc.ETA)
}

func TestWebSocketClose(t *testing.T) {
	engine := newTestEngine(t, "123")
	ws := NewWebSocket(engine, 8)
	srv := httptest.NewServer(NewRouter(engine, ws))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	require.Eventually(t, func() bool { return ws.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	ws.Close()
	assert.Equal(t, 0, ws.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, gws.IsCloseError(err, gws.CloseNormalClosure), "got %v", err)
}

func TestWebSocketDropsSlowClient(t *testing.T) {
	engine := newTestEngine(t, "123")
	ws := NewWebSocket(engine, 1)

	c := &client{remote: "198.51.100.7:5000", send: make(chan []byte, 1)}
	ws.clients[c] = struct{}{}

	ws.broadcast([]byte("a"))
	assert.Equal(t, 1, ws.Clients())

	ws.broadcast([]byte("b"))
	assert.Equal(t, 0, ws.Clients())

	frame, open := <-c.send
	assert.True(t, open)
	assert.Equal(t, "a", string(frame))
	_, open = <-c.send
	assert.False(t, open)
}

func TestRouterHealthEndpoints(t *testing.T) {
	engine := newTestEngine(t, "123")
	srv := httptest.NewServer(NewRouter(engine, NewWebSocket(engine, 1)))
	t.Cleanup(srv.Close)

	get := func(path string) int {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get("/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz"))
	assert.Equal(t, http.StatusOK, get("/metrics"))

	engine.Start()
	assert.Equal(t, http.StatusOK, get("/readyz"))
}

type published struct {
	topic   string
	retain  bool
	payload string
}

type fakeClient struct {
	mu        sync.Mutex
	handlers  map[string]pkgmqtt.MessageHandler
	published []published
}

func (f *fakeClient) Start(context.Context) error { return nil }
func (f *fakeClient) Disconnect(context.Context)  {}

func (f *fakeClient) Publish(_ context.Context, t string, _ int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic: t, retain: retain, payload: string(payload)})
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, t string, _ int, h pkgmqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]pkgmqtt.MessageHandler{}
	}
	f.handlers[t] = h
	return nil
}

func (f *fakeClient) Unsubscribe(context.Context, string) error { return nil }
func (f *fakeClient) AwaitConnection(context.Context) error     { return nil }
func (f *fakeClient) IsConnected() bool                         { return true }

func (f *fakeClient) handler(filter string) pkgmqtt.MessageHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[filter]
}

func (f *fakeClient) topics() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.published...)
}

func TestWillMessage(t *testing.T) {
	cfg := &pkgmqtt.ClientConfig{}
	WillMessage(cfg, topic.NewBuilder("fleet/v1"), "sim-1")

	assert.Equal(t, "fleet/v1/status/sim-1", cfg.WillTopic)
	assert.JSONEq(t, `{"online":false}`, string(cfg.WillPayload))
	assert.True(t, cfg.WillRetain)
}

func TestMQTTGateway(t *testing.T) {
	engine := newTestEngine(t, "123")
	fake := &fakeClient{}
	g := NewMQTT(fake, topic.NewBuilder("fleet/v1"), 1, "sim-1", engine, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Start(ctx) }()

	filter := "$share/fpeer-simulator/fleet/v1/command/+"
	require.Eventually(t, func() bool { return fake.handler(filter) != nil }, 2*time.Second, 10*time.Millisecond)

	first := fake.topics()[0]
	assert.Equal(t, published{topic: "fleet/v1/status/sim-1", retain: true, payload: `{"online":true}`}, first)

	engine.Tick()
	require.Eventually(t, func() bool { return len(fake.topics()) == 2 }, 2*time.Second, 10*time.Millisecond)
	sample := fake.topics()[1]
	assert.Equal(t, "fleet/v1/location/123", sample.topic)
	assert.False(t, sample.retain)
	loc, err := protocol.DecodeLocation([]byte(sample.payload))
	require.NoError(t, err)
	assert.Equal(t, "123", loc.DriverID)

	payload, err := protocol.Encode(protocol.DriverActionMessage{DriverID: "123", Action: model.DriverActionPause}, testStart)
	require.NoError(t, err)
	fake.handler(filter)(context.Background(), "fleet/v1/command/123", payload)
	fake.handler(filter)(context.Background(), "fleet/v1/command/123", []byte(`{}`))

	st, ok := engine.State("123")
	require.True(t, ok)
	assert.True(t, st.Paused)

	cancel()
	require.NoError(t, <-done)

	last := fake.topics()[len(fake.topics())-1]
	assert.Equal(t, published{topic: "fleet/v1/status/sim-1", retain: true, payload: `{"online":false}`}, last)
}
