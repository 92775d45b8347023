package model

import "time"

// Delivery is a customer order assigned to exactly one driver.
type Delivery struct {
	ID       string `json:"id"`
	DriverID string `json:"driverId"`

	CustomerName     string     `json:"customerName"`
	CustomerAddress  string     `json:"customerAddress"`
	CustomerLocation Coordinate `json:"customerLocation"`

	Status DeliveryStatus `json:"status"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	EstimatedDeliveryTime string `json:"estimatedDeliveryTime,omitempty"`

	// ActualDeliveryTime is the RFC 3339 completion time.
	ActualDeliveryTime string `json:"actualDeliveryTime,omitempty"`
}

// DeepCopy returns a copy that shares no pointers with d.
func (d *Delivery) DeepCopy() *Delivery {
	if d == nil {
		return nil
	}
	out := *d
	out.StartedAt = copyTime(d.StartedAt)
	out.PausedAt = copyTime(d.PausedAt)
	out.CompletedAt = copyTime(d.CompletedAt)
	return &out
}

// DeepCopy returns a copy that shares no pointers with d.
func (d *Driver) DeepCopy() *Driver {
	if d == nil {
		return nil
	}
	out := *d
	if d.CurrentLocation != nil {
		loc := *d.CurrentLocation
		out.CurrentLocation = &loc
	}
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
