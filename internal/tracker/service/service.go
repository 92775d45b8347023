// Package service is the entry point for delivery and driver operations. It
// keeps the store and the driver channel in step: commands go out on the
// channel and the same change is applied to the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/utils/clock"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/transport"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

var (
	// ErrNotFound is wrapped by every lookup failure.
	ErrNotFound = errors.New("not found")

	ErrDeliveryNotFound = fmt.Errorf("delivery %w", ErrNotFound)
	ErrDriverNotFound   = fmt.Errorf("driver %w", ErrNotFound)

	// ErrInvalidDelivery is returned by CreateDelivery for incomplete input.
	ErrInvalidDelivery = errors.New("invalid delivery")

	ErrNotInitialized = errors.New("delivery service not initialized")
)

// ChannelFactory builds the driver channel for the given drivers.
type ChannelFactory func(drivers []model.Driver) (transport.Channel, error)

// NewDelivery is the input of CreateDelivery.
type NewDelivery struct {
	DriverID              string           `json:"driverId"`
	CustomerName          string           `json:"customerName"`
	CustomerAddress       string           `json:"customerAddress"`
	CustomerLocation      model.Coordinate `json:"customerLocation"`
	EstimatedDeliveryTime string           `json:"estimatedDeliveryTime,omitempty"`
}

// DeliveryService coordinates the store with the driver channel.
type DeliveryService struct {
	store      *store.Store
	newChannel ChannelFactory
	clock      clock.PassiveClock
	logger     log.Logger

	mu          sync.Mutex
	channel     transport.Channel
	unsubscribe func()
}

type Option func(*DeliveryService)

func WithClock(c clock.PassiveClock) Option {
	return func(s *DeliveryService) { s.clock = c }
}

func New(st *store.Store, newChannel ChannelFactory, opts ...Option) *DeliveryService {
	s := &DeliveryService{
		store:      st,
		newChannel: newChannel,
		clock:      clock.RealClock{},
		logger:     log.WithName("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DeliveryService) Store() *store.Store {
	return s.store
}

// Initialize opens the driver channel for drivers and starts feeding its
// events into the store. Only the first call has an effect until Cleanup.
// A connect error is returned, but the channel keeps retrying on its own.
func (s *DeliveryService) Initialize(ctx context.Context, drivers []model.Driver) error {
	s.mu.Lock()
	if s.channel != nil {
		s.mu.Unlock()
		return nil
	}

	ch, err := s.newChannel(drivers)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create driver channel: %w", err)
	}
	s.channel = ch
	s.unsubscribe = ch.Subscribe(s.handleEvent)
	s.mu.Unlock()

	s.logger.Info("Connecting driver channel", "drivers", len(drivers))
	if err := ch.Connect(ctx, func() {
		s.logger.Info("Driver channel open")
	}); err != nil {
		return fmt.Errorf("failed to connect driver channel: %w", err)
	}
	return nil
}

func (s *DeliveryService) handleEvent(ev protocol.Event) {
	switch ev.Type {
	case protocol.EventOpen:
		s.store.SetConnectionStatus(true)
	case protocol.EventMessage:
		if ev.Location != nil {
			s.store.UpdateDriverLocation(*ev.Location)
		}
	case protocol.EventClose:
		s.logger.Info("Driver channel closed", "code", ev.Code, "reason", ev.Reason, "clean", ev.WasClean)
		s.store.SetConnectionStatus(false)
	case protocol.EventError:
		s.logger.Error(ev.Err, "Driver channel error")
		s.store.SetConnectionStatus(false)
	}
}

// Connected reports whether the driver channel is open.
func (s *DeliveryService) Connected() bool {
	ch := s.current()
	return ch != nil && ch.Connected()
}

func (s *DeliveryService) current() transport.Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channel
}

func (s *DeliveryService) send(ctx context.Context, msg protocol.Message) error {
	ch := s.current()
	if ch == nil {
		return ErrNotInitialized
	}
	ch.Send(ctx, msg)
	return nil
}

// PerformDeliveryAction sends action for the delivery to its driver and
// applies it to the store. A reassignment with a new driver id is sent as a
// reassign message naming the previous driver.
func (s *DeliveryService) PerformDeliveryAction(ctx context.Context, id string, action model.DeliveryAction, newDriverID string) error {
	timer := prometheus.NewTimer(metrics.ActionLatency.WithLabelValues("delivery"))
	defer timer.ObserveDuration()

	if !action.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownDeliveryAction, action)
	}
	d, ok := s.store.Snapshot().DeliveryByID(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrDeliveryNotFound, id)
	}

	var msg protocol.Message
	if action == model.DeliveryActionReassign && newDriverID != "" {
		if _, ok := s.store.DriverByID(newDriverID); !ok {
			return fmt.Errorf("%w: %s", ErrDriverNotFound, newDriverID)
		}
		msg = protocol.ReassignDeliveryMessage{DeliveryID: id, OldDriverID: d.DriverID, NewDriverID: newDriverID}
	} else {
		msg = protocol.DeliveryActionMessage{DeliveryID: id, DriverID: d.DriverID, Action: action}
	}

	if err := s.send(ctx, msg); err != nil {
		return err
	}
	s.store.PerformDeliveryAction(id, action, newDriverID)
	s.logger.Debug("Delivery action performed", "deliveryID", id, "action", action)
	return nil
}

// PerformDriverAction sends action to the driver and applies it to the store.
func (s *DeliveryService) PerformDriverAction(ctx context.Context, id string, action model.DriverAction) error {
	timer := prometheus.NewTimer(metrics.ActionLatency.WithLabelValues("driver"))
	defer timer.ObserveDuration()

	if !action.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownDriverAction, action)
	}
	if _, ok := s.store.DriverByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, id)
	}

	if err := s.send(ctx, protocol.DriverActionMessage{DriverID: id, Action: action}); err != nil {
		return err
	}
	s.store.PerformDriverAction(id, action)
	s.logger.Debug("Driver action performed", "driverID", id, "action", action)
	return nil
}

func (s *DeliveryService) ReassignDelivery(ctx context.Context, id, newDriverID string) error {
	return s.PerformDeliveryAction(ctx, id, model.DeliveryActionReassign, newDriverID)
}

func (s *DeliveryService) CompleteDelivery(ctx context.Context, id string) error {
	return s.PerformDeliveryAction(ctx, id, model.DeliveryActionComplete, "")
}

func (s *DeliveryService) PauseDriver(ctx context.Context, id string) error {
	return s.PerformDriverAction(ctx, id, model.DriverActionPause)
}

func (s *DeliveryService) ResumeDriver(ctx context.Context, id string) error {
	return s.PerformDriverAction(ctx, id, model.DriverActionResume)
}

// RequestDriverLocation asks the driver for an immediate telemetry sample.
func (s *DeliveryService) RequestDriverLocation(ctx context.Context, id string) error {
	if _, ok := s.store.DriverByID(id); !ok {
		return fmt.Errorf("%w: %s", ErrDriverNotFound, id)
	}
	return s.send(ctx, protocol.LocationRequestMessage{DriverID: id})
}

// CreateDelivery adds an assigned delivery for an existing driver.
func (s *DeliveryService) CreateDelivery(_ context.Context, in NewDelivery) (model.Delivery, error) {
	if in.DriverID == "" || in.CustomerName == "" {
		return model.Delivery{}, fmt.Errorf("%w: driverId and customerName are required", ErrInvalidDelivery)
	}
	if _, ok := s.store.DriverByID(in.DriverID); !ok {
		return model.Delivery{}, fmt.Errorf("%w: %s", ErrDriverNotFound, in.DriverID)
	}

	d := model.Delivery{
		ID:                    "delivery-" + uuid.NewString(),
		DriverID:              in.DriverID,
		CustomerName:          in.CustomerName,
		CustomerAddress:       in.CustomerAddress,
		CustomerLocation:      in.CustomerLocation,
		Status:                model.DeliveryStatusAssigned,
		CreatedAt:             s.clock.Now(),
		EstimatedDeliveryTime: in.EstimatedDeliveryTime,
	}
	s.store.AddDelivery(d)
	s.logger.Info("Delivery created", "deliveryID", d.ID, "driverID", d.DriverID)
	return d, nil
}

// Cleanup disconnects the driver channel. Initialize may be called again
// afterwards.
func (s *DeliveryService) Cleanup() {
	s.mu.Lock()
	ch, unsubscribe := s.channel, s.unsubscribe
	s.channel, s.unsubscribe = nil, nil
	s.mu.Unlock()

	if ch == nil {
		return
	}
	ch.Disconnect()
	if unsubscribe != nil {
		unsubscribe()
	}
	s.store.SetConnectionStatus(false)
	s.logger.Info("Delivery service stopped")
}
