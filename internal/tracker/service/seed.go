package service

import (
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

// DemoDrivers returns the drivers of the demo fleet.
func DemoDrivers() []model.Driver {
	return []model.Driver{
		{ID: "123", Name: "John Doe", IsActive: true},
		{ID: "456", Name: "Jane Smith", IsActive: true},
		{ID: "789", Name: "Ashley Coleman", IsActive: true},
		{ID: "010", Name: "Wallace Smith", IsActive: true},
	}
}

// DemoDeliveries returns the demo deliveries, created relative to now.
func DemoDeliveries(now time.Time) []model.Delivery {
	return []model.Delivery{
		{
			ID:                    "del-001",
			DriverID:              "123",
			CustomerName:          "Alice Johnson",
			CustomerAddress:       "123 Main St, City",
			CustomerLocation:      model.Coordinate{Longitude: -74.0060, Latitude: 40.7128},
			Status:                model.DeliveryStatusAssigned,
			CreatedAt:             now.Add(-5 * time.Minute),
			EstimatedDeliveryTime: "20 min",
		},
		{
			ID:                    "del-002",
			DriverID:              "456",
			CustomerName:          "Steve Martin",
			CustomerAddress:       "356 Second St, City",
			CustomerLocation:      model.Coordinate{Longitude: -74.1280, Latitude: 40.3456},
			Status:                model.DeliveryStatusAssigned,
			CreatedAt:             now.Add(-5 * time.Minute),
			EstimatedDeliveryTime: "45 min",
		},
		{
			ID:                    "del-003",
			DriverID:              "456",
			CustomerName:          "Sarah Johnson",
			CustomerAddress:       "789 Oak Ave, Midtown",
			CustomerLocation:      model.Coordinate{Longitude: -74.0200, Latitude: 40.7589},
			Status:                model.DeliveryStatusAssigned,
			CreatedAt:             now.Add(-10 * time.Minute),
			EstimatedDeliveryTime: "25 min",
		},
	}
}

// LoadDemoData adds the demo drivers and deliveries to the store.
func (s *DeliveryService) LoadDemoData() {
	for _, d := range DemoDrivers() {
		s.store.AddDriver(d)
	}
	for _, d := range DemoDeliveries(s.clock.Now()) {
		s.store.AddDelivery(d)
	}
	s.logger.Info("Demo data loaded")
}
