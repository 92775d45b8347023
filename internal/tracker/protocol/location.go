package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

// ErrInvalidLocation is returned for telemetry frames that cannot be applied.
var ErrInvalidLocation = errors.New("invalid location")

type locationFrame struct {
	DriverID  string                     `json:"driverId"`
	Latitude  *float64                   `json:"latitude"`
	Longitude *float64                   `json:"longitude"`
	Status    model.DriverLocationStatus `json:"status"`
	ETA       string                     `json:"eta,omitempty"`
	Timestamp int64                      `json:"timestamp,omitempty"`
}

// EncodeLocation serialises a telemetry sample with an epoch millisecond timestamp.
func EncodeLocation(loc model.DriverLocation) ([]byte, error) {
	frame := locationFrame{
		DriverID:  loc.DriverID,
		Latitude:  &loc.Latitude,
		Longitude: &loc.Longitude,
		Status:    loc.Status,
		ETA:       loc.ETA,
	}
	if !loc.Timestamp.IsZero() {
		frame.Timestamp = loc.Timestamp.UnixMilli()
	}
	return json.Marshal(frame)
}

// DecodeLocation parses a telemetry frame. The driver id and both
// coordinates are required; an empty status decodes as en_route.
func DecodeLocation(payload []byte) (model.DriverLocation, error) {
	var frame locationFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return model.DriverLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocation, err)
	}
	if frame.DriverID == "" {
		return model.DriverLocation{}, fmt.Errorf("%w: missing driverId", ErrInvalidLocation)
	}
	if frame.Latitude == nil || frame.Longitude == nil {
		return model.DriverLocation{}, fmt.Errorf("%w: missing coordinates for driver %s", ErrInvalidLocation, frame.DriverID)
	}

	status := frame.Status
	if status == "" {
		status = model.DriverStatusEnRoute
	}
	if !status.Valid() {
		return model.DriverLocation{}, fmt.Errorf("%w: status %q", ErrInvalidLocation, frame.Status)
	}

	loc := model.DriverLocation{
		DriverID:  frame.DriverID,
		Latitude:  *frame.Latitude,
		Longitude: *frame.Longitude,
		Status:    status,
		ETA:       frame.ETA,
	}
	if frame.Timestamp > 0 {
		loc.Timestamp = time.UnixMilli(frame.Timestamp)
	}
	return loc, nil
}
