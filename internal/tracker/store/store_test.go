package store

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*Store, *testingclock.FakeClock) {
	t.Helper()
	fc := testingclock.NewFakeClock(t0)
	s := New(WithClock(fc))
	s.AddDriver(model.Driver{ID: "123", Name: "John Doe", IsActive: true})
	s.AddDriver(model.Driver{ID: "456", Name: "Jane Smith", IsActive: true})
	s.AddDelivery(model.Delivery{ID: "del-001", DriverID: "123", CustomerName: "Alice Johnson", Status: model.DeliveryStatusAssigned, CreatedAt: t0.Add(-5 * time.Minute)})
	return s, fc
}

func TestDeliveryLifecycleScenario(t *testing.T) {
	s, fc := newTestStore(t)

	fc.Step(time.Minute)
	s.PerformDeliveryAction("del-001", model.DeliveryActionStart, "")
	d, ok := s.Snapshot().DeliveryByID("del-001")
	require.True(t, ok)
	assert.Equal(t, model.DeliveryStatusInProgress, d.Status)
	require.NotNil(t, d.StartedAt)
	assert.Equal(t, fc.Now(), *d.StartedAt)
	assert.Nil(t, d.PausedAt)

	fc.Step(time.Minute)
	s.PerformDeliveryAction("del-001", model.DeliveryActionComplete, "")
	d, _ = s.Snapshot().DeliveryByID("del-001")
	assert.Equal(t, model.DeliveryStatusCompleted, d.Status)
	require.NotNil(t, d.CompletedAt)
	parsed, err := time.Parse(time.RFC3339Nano, d.ActualDeliveryTime)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(fc.Now()))
	assert.NotContains(t, s.Snapshot().ActiveDeliveries, "del-001")
}

func TestStatusTransitionCompleteness(t *testing.T) {
	tests := []struct {
		action model.DeliveryAction
		from   model.DeliveryStatus
		check  func(t *testing.T, d model.Delivery, now time.Time)
	}{
		{model.DeliveryActionStart, model.DeliveryStatusPaused, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusInProgress, d.Status)
			assert.Equal(t, now, *d.StartedAt)
			assert.Nil(t, d.PausedAt)
		}},
		{model.DeliveryActionPause, model.DeliveryStatusInProgress, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusPaused, d.Status)
			assert.Equal(t, now, *d.PausedAt)
		}},
		{model.DeliveryActionPause, model.DeliveryStatusPaused, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusPaused, d.Status)
			assert.Equal(t, now, *d.PausedAt, "side effects run without a status change")
		}},
		{model.DeliveryActionResume, model.DeliveryStatusPaused, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusInProgress, d.Status)
			assert.Nil(t, d.PausedAt)
		}},
		{model.DeliveryActionComplete, model.DeliveryStatusCancelled, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusCompleted, d.Status)
			assert.Equal(t, now, *d.CompletedAt)
			assert.NotEmpty(t, d.ActualDeliveryTime)
		}},
		{model.DeliveryActionCancel, model.DeliveryStatusAssigned, func(t *testing.T, d model.Delivery, now time.Time) {
			assert.Equal(t, model.DeliveryStatusCancelled, d.Status)
			assert.Equal(t, now, *d.CompletedAt)
			assert.Empty(t, d.ActualDeliveryTime)
		}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s from %s", tt.action, tt.from), func(t *testing.T) {
			s, fc := newTestStore(t)
			earlier := t0.Add(-time.Hour)
			s.UpdateDelivery("del-001", func(d *model.Delivery) {
				d.Status = tt.from
				d.PausedAt = &earlier
			})

			fc.Step(time.Minute)
			s.PerformDeliveryAction("del-001", tt.action, "")
			d, _ := s.Snapshot().DeliveryByID("del-001")
			tt.check(t, d, fc.Now())
		})
	}
}

func TestMissingIDsKeepSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Snapshot()

	for _, a := range model.DeliveryActions() {
		s.PerformDeliveryAction("nope", a, "456")
	}
	s.ReassignDelivery("nope", "456")
	s.CompleteDelivery("nope")
	s.UpdateDelivery("nope", func(d *model.Delivery) { d.Status = model.DeliveryStatusCancelled })
	s.UpdateDriver("nope", func(d *model.Driver) { d.Name = "x" })
	s.PauseDriver("nope")
	s.ResumeDriver("nope")
	s.PerformDriverAction("nope", model.DriverActionPause)
	s.RemoveDriver("nope")
	s.PerformDeliveryAction("del-001", model.DeliveryAction("teleport"), "")
	s.SetConnectionStatus(false)

	assert.Same(t, before, s.Snapshot())
}

func TestReassignment(t *testing.T) {
	s, _ := newTestStore(t)
	s.PerformDeliveryAction("del-001", model.DeliveryActionStart, "")
	s.PerformDeliveryAction("del-001", model.DeliveryActionPause, "")

	before := s.Snapshot()
	s.PerformDeliveryAction("del-001", model.DeliveryActionReassign, "")
	assert.Same(t, before, s.Snapshot(), "reassign without a driver is a no-op")

	s.ReassignDelivery("del-001", "456")
	d, _ := s.Snapshot().DeliveryByID("del-001")
	assert.Equal(t, "456", d.DriverID)
	assert.Equal(t, model.DeliveryStatusAssigned, d.Status)
	assert.Nil(t, d.StartedAt)
	assert.Nil(t, d.PausedAt)
	assert.Nil(t, d.CompletedAt)

	assert.Len(t, s.DriverDeliveries("456"), 1)
	assert.Empty(t, s.DriverDeliveries("123"))
}

func TestActiveDeliveriesConsistency(t *testing.T) {
	s, _ := newTestStore(t)
	rnd := rand.New(rand.NewSource(3))
	ids := []string{"del-001", "del-002", "del-003", "del-004"}
	for _, id := range ids[1:] {
		s.AddDelivery(model.Delivery{ID: id, DriverID: "123"})
	}

	actions := model.DeliveryActions()
	for i := 0; i < 500; i++ {
		id := ids[rnd.Intn(len(ids))]
		s.PerformDeliveryAction(id, actions[rnd.Intn(len(actions))], "456")

		st := s.Snapshot()
		var want []string
		for id, d := range st.Deliveries {
			if d.Status.IsActive() {
				want = append(want, id)
			}
		}
		got := append([]string(nil), st.ActiveDeliveries...)
		sort.Strings(want)
		sort.Strings(got)
		require.Equal(t, want, got)
	}
}

func TestLocationOverwrite(t *testing.T) {
	s, fc := newTestStore(t)
	supplied := time.Unix(0, 0)

	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Latitude: 1, Longitude: 1, Status: model.DriverStatusEnRoute, Timestamp: supplied})
	fc.Step(time.Second)
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Latitude: 2, Longitude: 2, Status: model.DriverStatusDelivering, Timestamp: supplied})

	st := s.Snapshot()
	require.Len(t, st.DriverLocations, 1)
	loc := st.DriverLocations["123"]
	assert.Equal(t, 2.0, loc.Latitude)
	assert.Equal(t, fc.Now(), loc.Timestamp)
	assert.Equal(t, fc.Now(), st.LastUpdate)

	d, _ := st.DriverByID("123")
	require.NotNil(t, d.CurrentLocation)
	assert.Equal(t, model.DriverStatusDelivering, d.CurrentLocation.Status)

	// unknown drivers still get a location entry
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "999", Status: model.DriverStatusIdle})
	_, ok := s.DriverByID("999")
	assert.False(t, ok)
	assert.Contains(t, s.Snapshot().DriverLocations, "999")
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s, _ := newTestStore(t)
	before := s.Snapshot()

	s.PerformDeliveryAction("del-001", model.DeliveryActionStart, "")
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Status: model.DriverStatusEnRoute})

	d, _ := before.DeliveryByID("del-001")
	assert.Equal(t, model.DeliveryStatusAssigned, d.Status)
	assert.Empty(t, before.DriverLocations)
}

func TestDriverMutators(t *testing.T) {
	s, _ := newTestStore(t)
	assert.Equal(t, []string{"123", "456"}, s.Snapshot().ActiveDrivers)

	s.PerformDriverAction("123", model.DriverActionPause)
	s.PauseDriver("123")
	d, _ := s.DriverByID("123")
	assert.True(t, d.IsPaused)
	assert.Len(t, s.AvailableDrivers(), 1)

	s.PerformDriverAction("123", model.DriverActionResume)
	assert.Len(t, s.AvailableDrivers(), 2)

	s.UpdateDriver("456", func(d *model.Driver) {
		d.IsActive = false
		d.ID = "changed"
	})
	_, ok := s.DriverByID("456")
	assert.True(t, ok)
	assert.Equal(t, []string{"123"}, s.Snapshot().ActiveDrivers)

	s.AddDriver(model.Driver{ID: "789", IsActive: true})
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "789", Status: model.DriverStatusIdle})
	s.RemoveDriver("789")
	st := s.Snapshot()
	assert.Equal(t, []string{"123"}, st.ActiveDrivers)
	assert.NotContains(t, st.DriverLocations, "789")
}

func TestSelectors(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddDelivery(model.Delivery{ID: "del-002", DriverID: "456", CreatedAt: t0.Add(-10 * time.Minute)})
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Status: model.DriverStatusDelivering})
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "456", Status: model.DriverStatusEnRoute})

	byStatus := s.DriversByStatus(model.DriverStatusDelivering)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "123", byStatus[0].ID)

	assigned := s.DeliveriesByStatus(model.DeliveryStatusAssigned)
	require.Len(t, assigned, 2)
	assert.Equal(t, "del-002", assigned[0].ID, "ordered by creation time")

	assert.Empty(t, s.DeliveriesByStatus(model.DeliveryStatusCompleted))
}

func TestOverview(t *testing.T) {
	s, _ := newTestStore(t)
	s.AddDriver(model.Driver{ID: "789", IsActive: true, IsPaused: true})
	s.AddDelivery(model.Delivery{ID: "del-002", DriverID: "456"})
	s.PerformDeliveryAction("del-002", model.DeliveryActionStart, "")
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Status: model.DriverStatusEnRoute})
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "456", Status: model.DriverStatusOffline})
	s.SetConnectionStatus(true)

	o := s.Overview()
	assert.Equal(t, 3, o.TotalDrivers)
	assert.Equal(t, 1, o.OnlineDrivers)
	assert.Equal(t, 2, o.AvailableDrivers)
	assert.Equal(t, 1, o.PausedDrivers)
	assert.Equal(t, 1, o.PendingDeliveries)
	assert.Equal(t, 1, o.InProgressDeliveries)
	assert.Equal(t, 2, o.ActiveDeliveries)
	assert.True(t, o.IsConnected)
}

func TestMarkStaleDriversOffline(t *testing.T) {
	s, fc := newTestStore(t)
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Status: model.DriverStatusEnRoute, ETA: "10 min"})
	fc.Step(50 * time.Second)
	s.UpdateDriverLocation(model.DriverLocation{DriverID: "456", Status: model.DriverStatusEnRoute})
	fc.Step(20 * time.Second)

	stale := s.MarkStaleDriversOffline(time.Minute)
	assert.Equal(t, []string{"123"}, stale)

	st := s.Snapshot()
	assert.Equal(t, model.DriverStatusOffline, st.DriverLocations["123"].Status)
	assert.Empty(t, st.DriverLocations["123"].ETA)
	assert.Equal(t, model.DriverStatusEnRoute, st.DriverLocations["456"].Status)
	d, _ := st.DriverByID("123")
	assert.Equal(t, model.DriverStatusOffline, d.CurrentLocation.Status)

	before := s.Snapshot()
	assert.Empty(t, s.MarkStaleDriversOffline(time.Minute))
	assert.Same(t, before, s.Snapshot())
}

func TestConcurrentWriters(t *testing.T) {
	s, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.UpdateDriverLocation(model.DriverLocation{DriverID: "123", Latitude: float64(j), Status: model.DriverStatusEnRoute})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.PerformDeliveryAction("del-001", model.DeliveryActionPause, "")
				s.PerformDeliveryAction("del-001", model.DeliveryActionResume, "")
			}
		}()
	}
	wg.Wait()

	st := s.Snapshot()
	d, _ := st.DeliveryByID("del-001")
	assert.Equal(t, model.DeliveryStatusInProgress, d.Status)
	assert.Equal(t, []string{"del-001"}, st.ActiveDeliveries)
}
