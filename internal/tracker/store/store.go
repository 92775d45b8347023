package store

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// Store is the single authoritative container for drivers, deliveries and
// live locations. Mutations are serialized and publish a new snapshot
// atomically; readers never observe a partial update. Operations on
// unknown ids are no-ops that keep the current snapshot.
type Store struct {
	clock  clock.PassiveClock
	logger log.Logger

	mu    sync.Mutex
	state atomic.Pointer[State]
}

type Option func(*Store)

// WithClock sets the clock used for action and telemetry timestamps.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Store) { s.clock = c }
}

func New(opts ...Option) *Store {
	s := &Store{
		clock:  clock.RealClock{},
		logger: log.WithName("store"),
	}
	for _, o := range opts {
		o(s)
	}
	s.state.Store(emptyState())
	return s
}

// Snapshot returns the current immutable state.
func (s *Store) Snapshot() *State {
	return s.state.Load()
}

// update applies fn to a private copy of the state and publishes it if fn
// reports a change.
func (s *Store) update(fn func(next *State, now time.Time) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Load().clone()
	if !fn(next, s.clock.Now()) {
		return false
	}
	s.state.Store(next)
	metrics.ActiveDeliveries.Set(float64(len(next.ActiveDeliveries)))
	return true
}

// -----------------------------------------------------------------------------
// Drivers
// -----------------------------------------------------------------------------

// AddDriver inserts or replaces a driver.
func (s *Store) AddDriver(d model.Driver) {
	s.update(func(st *State, _ time.Time) bool {
		st.Drivers[d.ID] = d
		st.reindexDrivers()
		return true
	})
}

// UpdateDriver applies fn to a copy of the driver. The id cannot be changed.
func (s *Store) UpdateDriver(id string, fn func(d *model.Driver)) {
	s.update(func(st *State, _ time.Time) bool {
		d, ok := st.Drivers[id]
		if !ok {
			return false
		}
		d = *d.DeepCopy()
		fn(&d)
		d.ID = id
		st.Drivers[id] = d
		st.reindexDrivers()
		return true
	})
}

// RemoveDriver deletes a driver and its latest location. Its deliveries keep
// their driver id.
func (s *Store) RemoveDriver(id string) {
	s.update(func(st *State, _ time.Time) bool {
		if _, ok := st.Drivers[id]; !ok {
			return false
		}
		delete(st.Drivers, id)
		delete(st.DriverLocations, id)
		st.reindexDrivers()
		return true
	})
}

func (s *Store) PauseDriver(id string) {
	s.setDriverPaused(id, true)
}

func (s *Store) ResumeDriver(id string) {
	s.setDriverPaused(id, false)
}

func (s *Store) setDriverPaused(id string, paused bool) {
	s.update(func(st *State, _ time.Time) bool {
		d, ok := st.Drivers[id]
		if !ok {
			return false
		}
		d.IsPaused = paused
		st.Drivers[id] = d
		return true
	})
}

// PerformDriverAction applies a driver-level action. Unknown actions are
// logged and ignored.
func (s *Store) PerformDriverAction(id string, action model.DriverAction) {
	switch action {
	case model.DriverActionPause:
		s.PauseDriver(id)
	case model.DriverActionResume:
		s.ResumeDriver(id)
	default:
		s.logger.Warn("Ignoring unknown driver action", "driverID", id, "action", action)
	}
}

// reindexDrivers keeps ActiveDrivers in insertion order.
func (st *State) reindexDrivers() {
	kept := st.ActiveDrivers[:0]
	seen := make(map[string]bool, len(st.ActiveDrivers))
	for _, id := range st.ActiveDrivers {
		if d, ok := st.Drivers[id]; ok && d.IsActive && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}
	for _, d := range st.AllDrivers() {
		if d.IsActive && !seen[d.ID] {
			kept = append(kept, d.ID)
			seen[d.ID] = true
		}
	}
	st.ActiveDrivers = kept
}

// -----------------------------------------------------------------------------
// Deliveries
// -----------------------------------------------------------------------------

// AddDelivery inserts or replaces a delivery. An empty status is assigned.
func (s *Store) AddDelivery(d model.Delivery) {
	s.update(func(st *State, now time.Time) bool {
		if d.Status == "" {
			d.Status = model.DeliveryStatusAssigned
		}
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		st.Deliveries[d.ID] = *d.DeepCopy()
		st.reindexDeliveries()
		return true
	})
}

// UpdateDelivery applies fn to a copy of the delivery. The id cannot be changed.
func (s *Store) UpdateDelivery(id string, fn func(d *model.Delivery)) {
	s.update(func(st *State, _ time.Time) bool {
		d, ok := st.Deliveries[id]
		if !ok {
			return false
		}
		c := d.DeepCopy()
		fn(c)
		c.ID = id
		st.Deliveries[id] = *c
		st.reindexDeliveries()
		return true
	})
}

// PerformDeliveryAction applies action to the delivery. Every action is
// accepted from every status; reassign without a new driver id does nothing.
func (s *Store) PerformDeliveryAction(id string, action model.DeliveryAction, newDriverID string) {
	applied := s.update(func(st *State, now time.Time) bool {
		d, ok := st.Deliveries[id]
		if !ok {
			return false
		}
		c := d.DeepCopy()

		ok, err := newDeliveryMachine(c.Status).apply(context.Background(), c, action, now, newDriverID)
		if err != nil {
			s.logger.Warn("Ignoring delivery action", "deliveryID", id, "action", action, "error", err.Error())
			return false
		}
		if !ok {
			return false
		}

		st.Deliveries[id] = *c
		st.reindexDeliveries()
		return true
	})

	if applied {
		metrics.DeliveryActionsTotal.WithLabelValues(string(action)).Inc()
	}
}

// ReassignDelivery moves a delivery to another driver and resets it to assigned.
func (s *Store) ReassignDelivery(id, newDriverID string) {
	s.PerformDeliveryAction(id, model.DeliveryActionReassign, newDriverID)
}

func (s *Store) CompleteDelivery(id string) {
	s.PerformDeliveryAction(id, model.DeliveryActionComplete, "")
}

// -----------------------------------------------------------------------------
// Telemetry and connection
// -----------------------------------------------------------------------------

// UpdateDriverLocation stores loc as the latest sample of its driver. The
// sample timestamp is replaced with the processing time.
func (s *Store) UpdateDriverLocation(loc model.DriverLocation) {
	s.update(func(st *State, now time.Time) bool {
		loc.Timestamp = now
		st.DriverLocations[loc.DriverID] = loc
		if d, ok := st.Drivers[loc.DriverID]; ok {
			mirrored := loc
			d.CurrentLocation = &mirrored
			st.Drivers[loc.DriverID] = d
		}
		st.LastUpdate = now
		return true
	})
	metrics.TelemetrySamplesTotal.WithLabelValues(string(loc.Status)).Inc()
}

func (s *Store) SetConnectionStatus(connected bool) {
	s.update(func(st *State, _ time.Time) bool {
		if st.IsConnected == connected {
			return false
		}
		st.IsConnected = connected
		return true
	})
}

// MarkStaleDriversOffline flags the latest sample of every driver that has
// not reported within maxAge as offline. It returns the affected driver ids.
func (s *Store) MarkStaleDriversOffline(maxAge time.Duration) []string {
	var stale []string
	s.update(func(st *State, now time.Time) bool {
		for id, loc := range st.DriverLocations {
			if loc.Status == model.DriverStatusOffline || now.Sub(loc.Timestamp) <= maxAge {
				continue
			}
			loc.Status = model.DriverStatusOffline
			loc.ETA = ""
			st.DriverLocations[id] = loc
			if d, ok := st.Drivers[id]; ok {
				mirrored := loc
				d.CurrentLocation = &mirrored
				st.Drivers[id] = d
			}
			stale = append(stale, id)
		}
		return len(stale) > 0
	})
	return stale
}

// -----------------------------------------------------------------------------
// Selector shortcuts over the current snapshot
// -----------------------------------------------------------------------------

func (s *Store) DriversByStatus(status model.DriverLocationStatus) []model.Driver {
	return s.Snapshot().DriversByStatus(status)
}

func (s *Store) DeliveriesByStatus(status model.DeliveryStatus) []model.Delivery {
	return s.Snapshot().DeliveriesByStatus(status)
}

func (s *Store) DriverDeliveries(driverID string) []model.Delivery {
	return s.Snapshot().DriverDeliveries(driverID)
}

func (s *Store) DriverByID(id string) (model.Driver, bool) {
	return s.Snapshot().DriverByID(id)
}

func (s *Store) AvailableDrivers() []model.Driver {
	return s.Snapshot().AvailableDrivers()
}

func (s *Store) Overview() Overview {
	return s.Snapshot().Overview()
}
