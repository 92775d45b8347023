package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/geo"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/service"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type stubChannel struct {
	events *protocol.Emitter

	mu   sync.Mutex
	sent []protocol.Message
	up   bool
}

func (c *stubChannel) Connect(context.Context, func()) error {
	c.mu.Lock()
	c.up = true
	c.mu.Unlock()
	c.events.Emit(protocol.OpenEvent())
	return nil
}

func (c *stubChannel) Send(_ context.Context, msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
}

func (c *stubChannel) Disconnect() {
	c.mu.Lock()
	c.up = false
	c.mu.Unlock()
}

func (c *stubChannel) Subscribe(h protocol.Handler) func() { return c.events.Subscribe(h) }

func (c *stubChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up
}

type fixture struct {
	router  http.Handler
	svc     *service.DeliveryService
	channel *stubChannel
}

func newFixture(t *testing.T, connect bool) *fixture {
	t.Helper()
	fc := testingclock.NewFakePassiveClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ch := &stubChannel{events: protocol.NewEmitter()}
	svc := service.New(store.New(store.WithClock(fc)), func([]model.Driver) (transport.Channel, error) {
		return ch, nil
	}, service.WithClock(fc))
	svc.LoadDemoData()
	if connect {
		require.NoError(t, svc.Initialize(context.Background(), svc.Store().Snapshot().AllDrivers()))
	}
	t.Cleanup(svc.Cleanup)

	h := NewHandler(svc, geo.NewStaticProvider(47.48, -52.99), options.NewMapOptions(), "ws://localhost:8090/ws")
	return &fixture{router: NewRouter(h), svc: svc, channel: ch}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/readyz", "").Code)

	f = newFixture(t, true)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "").Code)

	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fleetpeer_active_deliveries")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestDrivers(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/drivers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	drivers := decode[[]model.Driver](t, rec)
	require.Len(t, drivers, 4)
	assert.Equal(t, "010", drivers[0].ID)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers?status=delivering", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	f.svc.Store().UpdateDriverLocation(model.DriverLocation{DriverID: "456", Status: model.DriverStatusDelivering})
	rec = f.do(t, http.MethodGet, "/api/v1/drivers?status=DELIVERING", "")
	assert.Len(t, decode[[]model.Driver](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/drivers?status=flying", "").Code)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers/123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "John Doe", decode[model.Driver](t, rec).Name)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/drivers/404", "").Code)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers/456/deliveries", "")
	deliveries := decode[[]model.Delivery](t, rec)
	require.Len(t, deliveries, 2)
	assert.Equal(t, "del-003", deliveries[0].ID, "oldest first")
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/drivers/404/deliveries", "").Code)
}

func TestDriverActions(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodPost, "/api/v1/drivers/123/actions", `{"action":"pause"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[model.Driver](t, rec).IsPaused)

	rec = f.do(t, http.MethodGet, "/api/v1/drivers/available", "")
	assert.Len(t, decode[[]model.Driver](t, rec), 3)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/drivers/123/actions", `{"action":"fly"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/drivers/123/actions", `{"verb":"pause"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/drivers/404/actions", `{"action":"resume"}`).Code)

	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/api/v1/drivers/789/location-requests", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/drivers/404/location-requests", "").Code)

	assert.Equal(t, []protocol.Message{
		protocol.DriverActionMessage{DriverID: "123", Action: model.DriverActionPause},
		protocol.LocationRequestMessage{DriverID: "789"},
	}, f.channel.sent)
}

func TestDeliveries(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/deliveries?status=assigned", "")
	assert.Len(t, decode[[]model.Delivery](t, rec), 3)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/deliveries?status=lost", "").Code)

	rec = f.do(t, http.MethodPost, "/api/v1/deliveries/del-001/actions", `{"action":"start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.DeliveryStatusInProgress, decode[model.Delivery](t, rec).Status)

	rec = f.do(t, http.MethodPost, "/api/v1/deliveries/del-002/actions", `{"action":"reassign","newDriverId":"789"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "789", decode[model.Delivery](t, rec).DriverID)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/deliveries/del-404/actions", `{"action":"start"}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/deliveries/del-001/actions", `{"action":"explode"}`).Code)

	rec = f.do(t, http.MethodPost, "/api/v1/deliveries",
		`{"driverId":"010","customerName":"Bob","customerAddress":"1 Pier Rd","customerLocation":{"latitude":40.7,"longitude":-74}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Delivery](t, rec)
	assert.True(t, strings.HasPrefix(created.ID, "delivery-"))
	assert.Equal(t, "/api/v1/deliveries/"+created.ID, rec.Header().Get("Location"))

	rec = f.do(t, http.MethodGet, "/api/v1/deliveries/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/deliveries/del-404", "").Code)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/v1/deliveries", `{"customerName":"Bob"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/api/v1/deliveries", `{"driverId":"404","customerName":"Bob"}`).Code)

	rec = f.do(t, http.MethodGet, "/api/v1/deliveries", "")
	assert.Len(t, decode[[]model.Delivery](t, rec), 4)
}

func TestNotInitialized(t *testing.T) {
	f := newFixture(t, false)
	rec := f.do(t, http.MethodPost, "/api/v1/deliveries/del-001/actions", `{"action":"start"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOverviewAndMapConfig(t *testing.T) {
	f := newFixture(t, true)

	rec := f.do(t, http.MethodGet, "/api/v1/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	o := decode[store.Overview](t, rec)
	assert.Equal(t, 4, o.TotalDrivers)
	assert.Equal(t, 3, o.PendingDeliveries)
	assert.True(t, o.IsConnected)

	rec = f.do(t, http.MethodGet, "/api/v1/config/map", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cfg := decode[MapConfigResponse](t, rec)
	assert.Equal(t, geo.StatusSuccess, cfg.Center.Status)
	assert.Equal(t, 47.48, cfg.Center.Coordinate.Latitude)
	assert.Equal(t, "ws://localhost:8090/ws", cfg.StreamURL)
}

func TestUnknownRoutes(t *testing.T) {
	f := newFixture(t, true)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v2/drivers", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(t, http.MethodDelete, "/api/v1/drivers", "").Code)
}
