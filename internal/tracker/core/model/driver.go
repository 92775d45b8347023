package model

import "time"

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route is the ordered waypoint sequence a simulated driver loops over.
type Route []Coordinate

// Driver is a delivery driver known to the tracker.
type Driver struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// IsActive is false for drivers that are off shift.
	IsActive bool `json:"isActive"`

	// IsPaused is set by the driver-level pause action.
	IsPaused bool `json:"isPaused"`

	// CurrentLocation mirrors the latest telemetry sample, if any.
	CurrentLocation *DriverLocation `json:"currentLocation,omitempty"`
}

// Available reports whether new work can be assigned to the driver.
func (d Driver) Available() bool {
	return d.IsActive && !d.IsPaused
}

// DriverLocation is one telemetry sample.
type DriverLocation struct {
	DriverID  string               `json:"driverId"`
	Latitude  float64              `json:"latitude"`
	Longitude float64              `json:"longitude"`
	Status    DriverLocationStatus `json:"status"`
	ETA       string               `json:"eta,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Coordinate returns the sample position.
func (l DriverLocation) Coordinate() Coordinate {
	return Coordinate{Latitude: l.Latitude, Longitude: l.Longitude}
}
