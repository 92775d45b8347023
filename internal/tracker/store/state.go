package store

import (
	"sort"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

// State is an immutable snapshot of the tracker. A State returned by the
// Store is never modified; mutators publish a new one.
type State struct {
	Drivers          map[string]model.Driver         `json:"drivers"`
	ActiveDrivers    []string                        `json:"activeDrivers"`
	Deliveries       map[string]model.Delivery       `json:"deliveries"`
	ActiveDeliveries []string                        `json:"activeDeliveries"`
	DriverLocations  map[string]model.DriverLocation `json:"driverLocations"`
	IsConnected      bool                            `json:"isConnected"`
	LastUpdate       time.Time                       `json:"lastUpdate"`
}

func emptyState() *State {
	return &State{
		Drivers:         map[string]model.Driver{},
		Deliveries:      map[string]model.Delivery{},
		DriverLocations: map[string]model.DriverLocation{},
	}
}

// clone returns a shallow copy whose maps and slices may be modified.
func (s *State) clone() *State {
	out := *s
	out.Drivers = cloneMap(s.Drivers)
	out.Deliveries = cloneMap(s.Deliveries)
	out.DriverLocations = cloneMap(s.DriverLocations)
	out.ActiveDrivers = append([]string(nil), s.ActiveDrivers...)
	out.ActiveDeliveries = append([]string(nil), s.ActiveDeliveries...)
	return &out
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// reindexDeliveries keeps ActiveDeliveries in insertion order: ids leave when
// their delivery is no longer active and are appended when they re-enter.
func (s *State) reindexDeliveries() {
	kept := s.ActiveDeliveries[:0]
	seen := make(map[string]bool, len(s.ActiveDeliveries))
	for _, id := range s.ActiveDeliveries {
		d, ok := s.Deliveries[id]
		if ok && d.Status.IsActive() && !seen[id] {
			kept = append(kept, id)
			seen[id] = true
		}
	}

	var added []string
	for id, d := range s.Deliveries {
		if d.Status.IsActive() && !seen[id] {
			added = append(added, id)
		}
	}
	sort.Strings(added)
	s.ActiveDeliveries = append(kept, added...)
}

// -----------------------------------------------------------------------------
// Selectors
// -----------------------------------------------------------------------------

// DriversByStatus returns drivers whose latest telemetry has the given status,
// ordered by id. Drivers without telemetry are never returned.
func (s *State) DriversByStatus(status model.DriverLocationStatus) []model.Driver {
	var out []model.Driver
	for id, loc := range s.DriverLocations {
		if loc.Status != status {
			continue
		}
		if d, ok := s.Drivers[id]; ok {
			out = append(out, d)
		}
	}
	sortDrivers(out)
	return out
}

// DeliveriesByStatus returns deliveries in the given status, ordered by
// creation time then id.
func (s *State) DeliveriesByStatus(status model.DeliveryStatus) []model.Delivery {
	var out []model.Delivery
	for _, d := range s.Deliveries {
		if d.Status == status {
			out = append(out, d)
		}
	}
	sortDeliveries(out)
	return out
}

// DriverDeliveries returns every delivery assigned to driverID.
func (s *State) DriverDeliveries(driverID string) []model.Delivery {
	var out []model.Delivery
	for _, d := range s.Deliveries {
		if d.DriverID == driverID {
			out = append(out, d)
		}
	}
	sortDeliveries(out)
	return out
}

func (s *State) DriverByID(id string) (model.Driver, bool) {
	d, ok := s.Drivers[id]
	return d, ok
}

func (s *State) DeliveryByID(id string) (model.Delivery, bool) {
	d, ok := s.Deliveries[id]
	return d, ok
}

// AvailableDrivers returns drivers that are active and not paused.
func (s *State) AvailableDrivers() []model.Driver {
	var out []model.Driver
	for _, d := range s.Drivers {
		if d.Available() {
			out = append(out, d)
		}
	}
	sortDrivers(out)
	return out
}

// AllDrivers returns every driver ordered by id.
func (s *State) AllDrivers() []model.Driver {
	out := make([]model.Driver, 0, len(s.Drivers))
	for _, d := range s.Drivers {
		out = append(out, d)
	}
	sortDrivers(out)
	return out
}

// AllDeliveries returns every delivery ordered by creation time then id.
func (s *State) AllDeliveries() []model.Delivery {
	out := make([]model.Delivery, 0, len(s.Deliveries))
	for _, d := range s.Deliveries {
		out = append(out, d)
	}
	sortDeliveries(out)
	return out
}

func sortDrivers(ds []model.Driver) {
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
}

func sortDeliveries(ds []model.Delivery) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.Before(ds[j].CreatedAt)
		}
		return ds[i].ID < ds[j].ID
	})
}
