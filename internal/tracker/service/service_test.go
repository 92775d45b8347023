package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport"
)

type fakeChannel struct {
	events *protocol.Emitter

	mu         sync.Mutex
	sent       []protocol.Message
	connected  bool
	connects   int
	connectErr error
}

var _ transport.Channel = (*fakeChannel)(nil)

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: protocol.NewEmitter()}
}

func (f *fakeChannel) Connect(_ context.Context, onOpen func()) error {
	f.mu.Lock()
	f.connects++
	err := f.connectErr
	f.mu.Unlock()
	return err
}

func (f *fakeChannel) open() {
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	f.events.Emit(protocol.OpenEvent())
}

func (f *fakeChannel) Send(_ context.Context, msg protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeChannel) Disconnect() {
	f.mu.Lock()
	was := f.connected
	f.connected = false
	f.mu.Unlock()
	if was {
		f.events.Emit(protocol.CloseEvent(protocol.CloseNormal, "bye", true))
	}
}

func (f *fakeChannel) Subscribe(h protocol.Handler) func() { return f.events.Subscribe(h) }

func (f *fakeChannel) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeChannel) messages() []protocol.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.Message(nil), f.sent...)
}

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*DeliveryService, *fakeChannel) {
	t.Helper()
	fc := testingclock.NewFakePassiveClock(now)
	ch := newFakeChannel()
	var got []model.Driver
	svc := New(store.New(store.WithClock(fc)), func(drivers []model.Driver) (transport.Channel, error) {
		got = drivers
		return ch, nil
	}, WithClock(fc))
	svc.LoadDemoData()

	require.NoError(t, svc.Initialize(context.Background(), svc.Store().Snapshot().AllDrivers()))
	require.Len(t, got, 4)
	ch.open()
	t.Cleanup(svc.Cleanup)
	return svc, ch
}

func TestLoadDemoData(t *testing.T) {
	svc, _ := newTestService(t)
	st := svc.Store().Snapshot()

	assert.Len(t, st.Drivers, 4)
	assert.Equal(t, []string{"123", "456", "789", "010"}, st.ActiveDrivers)
	assert.Equal(t, []string{"del-001", "del-002", "del-003"}, st.ActiveDeliveries)

	d, ok := st.DeliveryByID("del-003")
	require.True(t, ok)
	assert.Equal(t, now.Add(-10*time.Minute), d.CreatedAt)
	assert.Equal(t, "25 min", d.EstimatedDeliveryTime)
	assert.Equal(t, -74.0200, d.CustomerLocation.Longitude)
}

func TestInitializeOnce(t *testing.T) {
	svc, ch := newTestService(t)
	assert.True(t, svc.Store().Snapshot().IsConnected)
	assert.True(t, svc.Connected())

	require.NoError(t, svc.Initialize(context.Background(), nil))
	assert.Equal(t, 1, ch.connects)
}

func TestInitializeErrors(t *testing.T) {
	st := store.New()
	svc := New(st, func([]model.Driver) (transport.Channel, error) {
		return nil, errors.New("no transport")
	})
	assert.Error(t, svc.Initialize(context.Background(), nil))
	assert.ErrorIs(t, svc.PauseDriver(context.Background(), "123"), ErrDriverNotFound)

	st.AddDriver(model.Driver{ID: "123", IsActive: true})
	assert.ErrorIs(t, svc.PauseDriver(context.Background(), "123"), ErrNotInitialized)

	ch := newFakeChannel()
	ch.connectErr = errors.New("refused")
	svc = New(st, func([]model.Driver) (transport.Channel, error) { return ch, nil })
	assert.Error(t, svc.Initialize(context.Background(), nil))
	require.NoError(t, svc.PauseDriver(context.Background(), "123"), "the channel retries on its own")
}

func TestPerformDeliveryAction(t *testing.T) {
	svc, ch := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PerformDeliveryAction(ctx, "del-001", model.DeliveryActionStart, ""))

	d, _ := svc.Store().Snapshot().DeliveryByID("del-001")
	assert.Equal(t, model.DeliveryStatusInProgress, d.Status)
	require.NotNil(t, d.StartedAt)
	assert.Equal(t, []protocol.Message{
		protocol.DeliveryActionMessage{DeliveryID: "del-001", DriverID: "123", Action: model.DeliveryActionStart},
	}, ch.messages())

	require.NoError(t, svc.CompleteDelivery(ctx, "del-001"))
	d, _ = svc.Store().Snapshot().DeliveryByID("del-001")
	assert.Equal(t, model.DeliveryStatusCompleted, d.Status)
	assert.NotContains(t, svc.Store().Snapshot().ActiveDeliveries, "del-001")
}

func TestReassignDelivery(t *testing.T) {
	svc, ch := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.ReassignDelivery(ctx, "del-002", "789"))
	assert.Equal(t, []protocol.Message{
		protocol.ReassignDeliveryMessage{DeliveryID: "del-002", OldDriverID: "456", NewDriverID: "789"},
	}, ch.messages())

	d, _ := svc.Store().Snapshot().DeliveryByID("del-002")
	assert.Equal(t, "789", d.DriverID)
	assert.Equal(t, model.DeliveryStatusAssigned, d.Status)

	assert.ErrorIs(t, svc.ReassignDelivery(ctx, "del-002", "999"), ErrDriverNotFound)

	// Without a new driver the action is forwarded as-is and the store keeps the delivery.
	require.NoError(t, svc.PerformDeliveryAction(ctx, "del-002", model.DeliveryActionReassign, ""))
	d, _ = svc.Store().Snapshot().DeliveryByID("del-002")
	assert.Equal(t, "789", d.DriverID)
	assert.Len(t, ch.messages(), 2)
}

func TestNotFound(t *testing.T) {
	svc, ch := newTestService(t)
	ctx := context.Background()
	before := svc.Store().Snapshot()

	err := svc.PerformDeliveryAction(ctx, "del-404", model.DeliveryActionStart, "")
	assert.ErrorIs(t, err, ErrDeliveryNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.PerformDriverAction(ctx, "404", model.DriverActionPause)
	assert.ErrorIs(t, err, ErrDriverNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.RequestDriverLocation(ctx, "404"), ErrNotFound)

	assert.ErrorIs(t, svc.PerformDeliveryAction(ctx, "del-001", "teleport", ""), model.ErrUnknownDeliveryAction)
	assert.ErrorIs(t, svc.PerformDriverAction(ctx, "123", "teleport"), model.ErrUnknownDriverAction)

	assert.Empty(t, ch.messages())
	assert.Same(t, before, svc.Store().Snapshot())
}

func TestDriverActions(t *testing.T) {
	svc, ch := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.PauseDriver(ctx, "123"))
	d, _ := svc.Store().DriverByID("123")
	assert.True(t, d.IsPaused)
	assert.NotContains(t, svc.Store().AvailableDrivers(), d)

	require.NoError(t, svc.ResumeDriver(ctx, "123"))
	d, _ = svc.Store().DriverByID("123")
	assert.False(t, d.IsPaused)

	require.NoError(t, svc.RequestDriverLocation(ctx, "456"))
	assert.Equal(t, []protocol.Message{
		protocol.DriverActionMessage{DriverID: "123", Action: model.DriverActionPause},
		protocol.DriverActionMessage{DriverID: "123", Action: model.DriverActionResume},
		protocol.LocationRequestMessage{DriverID: "456"},
	}, ch.messages())
}

func TestCreateDelivery(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	d, err := svc.CreateDelivery(ctx, NewDelivery{
		DriverID:         "789",
		CustomerName:     "Bob",
		CustomerAddress:  "1 Pier Rd",
		CustomerLocation: model.Coordinate{Latitude: 40.7, Longitude: -74.0},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.ID, "delivery-"))
	assert.Equal(t, model.DeliveryStatusAssigned, d.Status)
	assert.Equal(t, now, d.CreatedAt)

	st := svc.Store().Snapshot()
	assert.Equal(t, d.ID, st.ActiveDeliveries[len(st.ActiveDeliveries)-1])

	_, err = svc.CreateDelivery(ctx, NewDelivery{CustomerName: "Bob"})
	assert.ErrorIs(t, err, ErrInvalidDelivery)
	_, err = svc.CreateDelivery(ctx, NewDelivery{DriverID: "404", CustomerName: "Bob"})
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestChannelEvents(t *testing.T) {
	svc, ch := newTestService(t)

	ch.events.Emit(protocol.MessageEvent(model.DriverLocation{
		DriverID: "123", Latitude: 40.71, Longitude: -74.0, Status: model.DriverStatusDelivering, ETA: "3 min",
	}))
	st := svc.Store().Snapshot()
	loc := st.DriverLocations["123"]
	assert.Equal(t, model.DriverStatusDelivering, loc.Status)
	assert.Equal(t, now, loc.Timestamp)
	require.NotNil(t, st.Drivers["123"].CurrentLocation)

	ch.events.Emit(protocol.ErrorEvent(protocol.ErrReconnectExhausted))
	assert.False(t, svc.Store().Snapshot().IsConnected)

	ch.events.Emit(protocol.OpenEvent())
	assert.True(t, svc.Store().Snapshot().IsConnected)
	ch.events.Emit(protocol.CloseEvent(protocol.CloseAbnormal, "", false))
	assert.False(t, svc.Store().Snapshot().IsConnected)
}

func TestCleanup(t *testing.T) {
	svc, ch := newTestService(t)

	svc.Cleanup()
	assert.False(t, svc.Connected())
	assert.False(t, svc.Store().Snapshot().IsConnected)
	assert.Equal(t, 0, ch.events.Len())
	assert.ErrorIs(t, svc.PauseDriver(context.Background(), "123"), ErrNotInitialized)

	require.NoError(t, svc.Initialize(context.Background(), nil))
	assert.Equal(t, 2, ch.connects)
}
