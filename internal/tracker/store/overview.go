package store

import (
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

// Overview holds the dashboard counters derived from one snapshot.
type Overview struct {
	OnlineDrivers    int `json:"onlineDrivers"`
	AvailableDrivers int `json:"availableDrivers"`
	PausedDrivers    int `json:"pausedDrivers"`
	TotalDrivers     int `json:"totalDrivers"`

	PendingDeliveries    int `json:"pendingDeliveries"`
	InProgressDeliveries int `json:"inProgressDeliveries"`
	PausedDeliveries     int `json:"pausedDeliveries"`
	CompletedDeliveries  int `json:"completedDeliveries"`
	CancelledDeliveries  int `json:"cancelledDeliveries"`
	ActiveDeliveries     int `json:"activeDeliveries"`

	IsConnected bool      `json:"isConnected"`
	LastUpdate  time.Time `json:"lastUpdate"`
}

// Overview counts a driver as online when it is active and its latest
// telemetry is not offline.
func (s *State) Overview() Overview {
	o := Overview{
		TotalDrivers:     len(s.Drivers),
		ActiveDeliveries: len(s.ActiveDeliveries),
		IsConnected:      s.IsConnected,
		LastUpdate:       s.LastUpdate,
	}

	for id, d := range s.Drivers {
		if d.IsPaused {
			o.PausedDrivers++
		}
		if d.Available() {
			o.AvailableDrivers++
		}
		if loc, ok := s.DriverLocations[id]; ok && d.IsActive && loc.Status != model.DriverStatusOffline {
			o.OnlineDrivers++
		}
	}

	for _, d := range s.Deliveries {
		switch d.Status {
		case model.DeliveryStatusAssigned:
			o.PendingDeliveries++
		case model.DeliveryStatusInProgress:
			o.InProgressDeliveries++
		case model.DeliveryStatusPaused:
			o.PausedDeliveries++
		case model.DeliveryStatusCompleted:
			o.CompletedDeliveries++
		case model.DeliveryStatusCancelled:
			o.CancelledDeliveries++
		}
	}
	return o
}
