package model

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownDriverStatus   = errors.New("unknown driver location status")
	ErrUnknownDeliveryStatus = errors.New("unknown delivery status")
	ErrUnknownDeliveryAction = errors.New("unknown delivery action")
	ErrUnknownDriverAction   = errors.New("unknown driver action")
)

// DriverLocationStatus is the movement state reported with each telemetry sample.
type DriverLocationStatus string

const (
	DriverStatusIdle       DriverLocationStatus = "idle"
	DriverStatusEnRoute    DriverLocationStatus = "en_route"
	DriverStatusDelivering DriverLocationStatus = "delivering"
	DriverStatusReturning  DriverLocationStatus = "returning"
	DriverStatusOffline    DriverLocationStatus = "offline"
	DriverStatusPaused     DriverLocationStatus = "paused"
)

var driverStatuses = []DriverLocationStatus{
	DriverStatusIdle, DriverStatusEnRoute, DriverStatusDelivering,
	DriverStatusReturning, DriverStatusOffline, DriverStatusPaused,
}

// DriverStatuses returns every known driver location status.
func DriverStatuses() []DriverLocationStatus {
	return append([]DriverLocationStatus(nil), driverStatuses...)
}

func (s DriverLocationStatus) Valid() bool {
	for _, v := range driverStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label renders the status for display, e.g. "En Route".
func (s DriverLocationStatus) Label() string {
	return titleCase(string(s))
}

func ParseDriverStatus(s string) (DriverLocationStatus, error) {
	status := DriverLocationStatus(strings.ToLower(s))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDriverStatus, s)
	}
	return status, nil
}

// DeliveryStatus is the lifecycle phase of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusAssigned   DeliveryStatus = "assigned"
	DeliveryStatusInProgress DeliveryStatus = "in_progress"
	DeliveryStatusPaused     DeliveryStatus = "paused"
	DeliveryStatusCompleted  DeliveryStatus = "completed"
	DeliveryStatusCancelled  DeliveryStatus = "cancelled"
)

var deliveryStatuses = []DeliveryStatus{
	DeliveryStatusAssigned, DeliveryStatusInProgress, DeliveryStatusPaused,
	DeliveryStatusCompleted, DeliveryStatusCancelled,
}

// DeliveryStatuses returns every known delivery status.
func DeliveryStatuses() []DeliveryStatus {
	return append([]DeliveryStatus(nil), deliveryStatuses...)
}

func (s DeliveryStatus) Valid() bool {
	for _, v := range deliveryStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsActive reports whether a delivery in this status still needs its driver.
func (s DeliveryStatus) IsActive() bool {
	switch s {
	case DeliveryStatusAssigned, DeliveryStatusInProgress, DeliveryStatusPaused:
		return true
	}
	return false
}

func (s DeliveryStatus) Label() string {
	return titleCase(string(s))
}

func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	status := DeliveryStatus(strings.ToLower(s))
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDeliveryStatus, s)
	}
	return status, nil
}

// DeliveryAction is a command applied to a single delivery.
type DeliveryAction string

const (
	DeliveryActionStart    DeliveryAction = "start"
	DeliveryActionPause    DeliveryAction = "pause"
	DeliveryActionResume   DeliveryAction = "resume"
	DeliveryActionComplete DeliveryAction = "complete"
	DeliveryActionCancel   DeliveryAction = "cancel"
	DeliveryActionReassign DeliveryAction = "reassign"
)

var deliveryActions = []DeliveryAction{
	DeliveryActionStart, DeliveryActionPause, DeliveryActionResume,
	DeliveryActionComplete, DeliveryActionCancel, DeliveryActionReassign,
}

// DeliveryActions returns every known delivery action.
func DeliveryActions() []DeliveryAction {
	return append([]DeliveryAction(nil), deliveryActions...)
}

func (a DeliveryAction) Valid() bool {
	for _, v := range deliveryActions {
		if a == v {
			return true
		}
	}
	return false
}

func ParseDeliveryAction(s string) (DeliveryAction, error) {
	action := DeliveryAction(strings.ToLower(s))
	if !action.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDeliveryAction, s)
	}
	return action, nil
}

// DriverAction is a command applied to a driver regardless of its deliveries.
type DriverAction string

const (
	DriverActionPause  DriverAction = "pause_driver"
	DriverActionResume DriverAction = "resume_driver"
)

func (a DriverAction) Valid() bool {
	return a == DriverActionPause || a == DriverActionResume
}

// ParseDriverAction accepts both the wire values and the short forms
// "pause" and "resume".
func ParseDriverAction(s string) (DriverAction, error) {
	switch strings.ToLower(s) {
	case "pause", string(DriverActionPause):
		return DriverActionPause, nil
	case "resume", string(DriverActionResume):
		return DriverActionResume, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDriverAction, s)
}

func titleCase(s string) string {
	words := strings.Split(s, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
