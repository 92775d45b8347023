package store

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
	fsmutil "github.com/fleetpeer-io/fleetpeer/internal/pkg/util/fsm"
)

// actionTargets maps every delivery action to the status it leads to.
var actionTargets = map[model.DeliveryAction]model.DeliveryStatus{
	model.DeliveryActionStart:    model.DeliveryStatusInProgress,
	model.DeliveryActionPause:    model.DeliveryStatusPaused,
	model.DeliveryActionResume:   model.DeliveryStatusInProgress,
	model.DeliveryActionComplete: model.DeliveryStatusCompleted,
	model.DeliveryActionCancel:   model.DeliveryStatusCancelled,
	model.DeliveryActionReassign: model.DeliveryStatusAssigned,
}

// deliveryEvents accepts every action from every status. Callers that want
// stricter rules must check before applying.
var deliveryEvents = func() fsm.Events {
	src := make([]string, 0, len(model.DeliveryStatuses()))
	for _, s := range model.DeliveryStatuses() {
		src = append(src, string(s))
	}

	events := make(fsm.Events, 0, len(actionTargets))
	for _, a := range model.DeliveryActions() {
		events = append(events, fsm.EventDesc{Name: string(a), Src: src, Dst: string(actionTargets[a])})
	}
	return events
}()

// deliveryMachine applies one action to a delivery. Event args are the
// delivery being modified, the action time and the new driver id.
type deliveryMachine struct {
	*fsm.FSM
}

func newDeliveryMachine(status model.DeliveryStatus) *deliveryMachine {
	m := &deliveryMachine{}

	callbacks := fsm.Callbacks{
		// Guards
		"before_" + string(model.DeliveryActionReassign): fsmutil.WrapEvent(m.guardReassign),

		// Side effects. after_ callbacks also run when the status is unchanged.
		"after_" + string(model.DeliveryActionStart):    fsmutil.WrapEvent(m.afterStart),
		"after_" + string(model.DeliveryActionPause):    fsmutil.WrapEvent(m.afterPause),
		"after_" + string(model.DeliveryActionResume):   fsmutil.WrapEvent(m.afterResume),
		"after_" + string(model.DeliveryActionComplete): fsmutil.WrapEvent(m.afterComplete),
		"after_" + string(model.DeliveryActionCancel):   fsmutil.WrapEvent(m.afterCancel),
		"after_" + string(model.DeliveryActionReassign): fsmutil.WrapEvent(m.afterReassign),
	}

	m.FSM = fsm.NewFSM(string(status), deliveryEvents, callbacks)
	return m
}

// apply runs action against d in place. It reports false without error when
// a guard rejected the action.
func (m *deliveryMachine) apply(ctx context.Context, d *model.Delivery, action model.DeliveryAction, now time.Time, newDriverID string) (bool, error) {
	err := m.Event(ctx, string(action), d, now, newDriverID)
	if fsmutil.IsCanceled(err) {
		return false, nil
	}
	if fsmutil.IsRealError(err) {
		return false, fmt.Errorf("delivery %s: %w", d.ID, err)
	}
	return true, nil
}

func eventArgs(e *fsm.Event) (*model.Delivery, time.Time, string) {
	return e.Args[0].(*model.Delivery), e.Args[1].(time.Time), e.Args[2].(string)
}

func (m *deliveryMachine) guardReassign(_ context.Context, e *fsm.Event) error {
	if _, _, newDriverID := eventArgs(e); newDriverID == "" {
		e.Cancel()
	}
	return nil
}

func (m *deliveryMachine) afterStart(_ context.Context, e *fsm.Event) error {
	d, now, _ := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.StartedAt = &now
	d.PausedAt = nil
	return nil
}

func (m *deliveryMachine) afterPause(_ context.Context, e *fsm.Event) error {
	d, now, _ := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.PausedAt = &now
	return nil
}

func (m *deliveryMachine) afterResume(_ context.Context, e *fsm.Event) error {
	d, _, _ := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.PausedAt = nil
	return nil
}

func (m *deliveryMachine) afterComplete(_ context.Context, e *fsm.Event) error {
	d, now, _ := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.CompletedAt = &now
	d.ActualDeliveryTime = now.UTC().Format(time.RFC3339Nano)
	return nil
}

func (m *deliveryMachine) afterCancel(_ context.Context, e *fsm.Event) error {
	d, now, _ := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.CompletedAt = &now
	return nil
}

func (m *deliveryMachine) afterReassign(_ context.Context, e *fsm.Event) error {
	d, _, newDriverID := eventArgs(e)
	d.Status = model.DeliveryStatus(e.Dst)
	d.DriverID = newDriverID
	d.StartedAt = nil
	d.PausedAt = nil
	d.CompletedAt = nil
	return nil
}
