package simulation

import (
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	"github.com/fleetpeer-io/fleetpeer/internal/tracker/protocol"
)

// HandleMessage decodes a wire command and applies it. Malformed payloads and
// unknown types are logged and otherwise ignored.
func (e *Engine) HandleMessage(payload []byte) error {
	msg, err := protocol.Decode(payload)
	if err != nil {
		e.logger.Warn("Ignoring command", "error", err.Error())
		return err
	}
	e.ApplyCommand(msg)
	return nil
}

// ApplyCommand updates the simulated state of the addressed driver.
// Commands for unknown drivers are ignored.
func (e *Engine) ApplyCommand(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.DeliveryActionMessage:
		e.applyDeliveryAction(m)
	case protocol.DriverActionMessage:
		e.applyDriverAction(m)
	case protocol.ReassignDeliveryMessage:
		e.logger.Info("Delivery reassigned", "deliveryID", m.DeliveryID, "from", m.OldDriverID, "to", m.NewDriverID)
	case protocol.LocationRequestMessage:
		e.emitCurrentLocation(m.DriverID)
	default:
		e.logger.Warn("Ignoring unknown command", "type", msg.Type())
	}
}

func (e *Engine) applyDeliveryAction(m protocol.DeliveryActionMessage) {
	var status model.DriverLocationStatus
	switch m.Action {
	case model.DeliveryActionStart, model.DeliveryActionResume:
		status = model.DriverStatusEnRoute
	case model.DeliveryActionPause:
		status = model.DriverStatusIdle
	case model.DeliveryActionComplete:
		status = model.DriverStatusReturning
	default:
		e.logger.Debug("Delivery action has no effect on the simulation", "action", m.Action, "deliveryID", m.DeliveryID)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.records[m.DriverID]; ok {
		r.status = status
	}
}

func (e *Engine) applyDriverAction(m protocol.DriverActionMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.records[m.DriverID]
	if !ok {
		return
	}
	switch m.Action {
	case model.DriverActionPause:
		r.paused = true
		r.status = model.DriverStatusPaused
	case model.DriverActionResume:
		r.paused = false
		r.status = model.DriverStatusEnRoute
	default:
		e.logger.Warn("Ignoring unknown driver action", "action", m.Action, "driverID", m.DriverID)
	}
}

// emitCurrentLocation sends one sample at the current waypoint, without
// jitter or interpolation.
func (e *Engine) emitCurrentLocation(id string) {
	e.emitMu.Lock()
	defer e.emitMu.Unlock()

	e.mu.Lock()
	r, ok := e.records[id]
	if !ok || len(r.route) == 0 {
		e.mu.Unlock()
		return
	}

	pos := r.route[r.index]
	loc := model.DriverLocation{
		DriverID:  r.driverID,
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Status:    r.status,
		Timestamp: e.clock.Now(),
	}
	if r.paused {
		loc.Status = model.DriverStatusPaused
		loc.ETA = pausedETA
	} else {
		loc.ETA = eta(float64(r.index) / float64(len(r.route)))
	}
	e.mu.Unlock()

	e.events.Emit(protocol.MessageEvent(loc))
}
