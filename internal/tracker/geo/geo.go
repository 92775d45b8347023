// Package geo resolves the position a map or a simulation is centred on,
// falling back to a configured default when no position is available.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// DefaultTimeout bounds a single Locate call.
const DefaultTimeout = 10 * time.Second

// ErrorCode classifies a failed position lookup.
type ErrorCode string

const (
	PermissionDenied    ErrorCode = "permission_denied"
	PositionUnavailable ErrorCode = "position_unavailable"
	Timeout             ErrorCode = "timeout"
	Unknown             ErrorCode = "unknown"
)

// LocationError is returned by providers that could not produce a position.
type LocationError struct {
	Code    ErrorCode
	Message string
}

func (e *LocationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("location unavailable: %s", e.Code)
	}
	return fmt.Sprintf("location unavailable: %s: %s", e.Code, e.Message)
}

// Status is the outcome of Resolve.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusDenied  Status = "denied"
)

// Provider looks up the current position.
type Provider interface {
	Locate(ctx context.Context) (model.Coordinate, error)
}

// Result is a resolved position. When Status is not success the coordinate
// is the fallback.
type Result struct {
	Coordinate model.Coordinate `json:"coordinate"`
	Status     Status           `json:"status"`
	Code       ErrorCode        `json:"code,omitempty"`
}

// Resolve asks p for a position within timeout. Any failure yields fallback
// with a status derived from the error class.
func Resolve(ctx context.Context, p Provider, fallback model.Coordinate, timeout time.Duration) Result {
	logger := log.WithName("geo")
	if p == nil {
		logger.Warn("No location provider, using fallback", "latitude", fallback.Latitude, "longitude", fallback.Longitude)
		return Result{Coordinate: fallback, Status: StatusError, Code: PositionUnavailable}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := p.Locate(ctx)
	if err == nil {
		return Result{Coordinate: c, Status: StatusSuccess}
	}

	code := Classify(err)
	logger.Warn("Location lookup failed, using fallback", "code", code, "error", err.Error(),
		"latitude", fallback.Latitude, "longitude", fallback.Longitude)

	status := StatusError
	if code == PermissionDenied {
		status = StatusDenied
	}
	return Result{Coordinate: fallback, Status: status, Code: code}
}

// Classify maps err to an error code. Context deadlines count as timeouts.
func Classify(err error) ErrorCode {
	var le *LocationError
	switch {
	case errors.As(err, &le):
		return le.Code
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	default:
		return Unknown
	}
}

// StaticProvider serves a fixed position. The zero value has no position.
type StaticProvider struct {
	Coordinate *model.Coordinate
}

func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{Coordinate: &model.Coordinate{Latitude: lat, Longitude: lng}}
}

func (p *StaticProvider) Locate(ctx context.Context) (model.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return model.Coordinate{}, err
	}
	if p.Coordinate == nil {
		return model.Coordinate{}, &LocationError{Code: PositionUnavailable, Message: "no position configured"}
	}
	return *p.Coordinate, nil
}
