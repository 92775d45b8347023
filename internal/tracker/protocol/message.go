package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/core/model"
)

var (
	// ErrUnknownMessageType is returned by Decode for an unrecognised type tag.
	ErrUnknownMessageType = errors.New("unknown message type")

	// ErrMalformedMessage is returned by Decode for payloads that are not a
	// valid command envelope.
	ErrMalformedMessage = errors.New("malformed message")
)

// MessageType tags a command envelope.
type MessageType string

const (
	TypeDeliveryAction   MessageType = "delivery_action"
	TypeDriverAction     MessageType = "driver_action"
	TypeReassignDelivery MessageType = "reassign_delivery"
	TypeRequestLocation  MessageType = "request_location"
)

// Message is a command sent from the tracker to the drivers.
type Message interface {
	Type() MessageType
}

type DeliveryActionMessage struct {
	DeliveryID string
	DriverID   string
	Action     model.DeliveryAction
}

type DriverActionMessage struct {
	DriverID string
	Action   model.DriverAction
}

type ReassignDeliveryMessage struct {
	DeliveryID  string
	OldDriverID string
	NewDriverID string
}

type LocationRequestMessage struct {
	DriverID string
}

func (DeliveryActionMessage) Type() MessageType   { return TypeDeliveryAction }
func (DriverActionMessage) Type() MessageType     { return TypeDriverAction }
func (ReassignDeliveryMessage) Type() MessageType { return TypeReassignDelivery }
func (LocationRequestMessage) Type() MessageType  { return TypeRequestLocation }

// TargetDriver returns the driver a message is addressed to, or "" for none.
func TargetDriver(msg Message) string {
	switch m := msg.(type) {
	case DeliveryActionMessage:
		return m.DriverID
	case DriverActionMessage:
		return m.DriverID
	case ReassignDeliveryMessage:
		return m.NewDriverID
	case LocationRequestMessage:
		return m.DriverID
	}
	return ""
}

// envelope is the JSON wire form shared by every command.
type envelope struct {
	Type        MessageType `json:"type"`
	DriverID    string      `json:"driverId,omitempty"`
	DeliveryID  string      `json:"deliveryId,omitempty"`
	Action      string      `json:"action,omitempty"`
	OldDriverID string      `json:"oldDriverId,omitempty"`
	NewDriverID string      `json:"newDriverId,omitempty"`
	Timestamp   int64       `json:"timestamp"`
}

// Encode serialises msg with the given send time.
func Encode(msg Message, now time.Time) ([]byte, error) {
	env := envelope{Type: msg.Type(), Timestamp: now.UnixMilli()}

	switch m := msg.(type) {
	case DeliveryActionMessage:
		env.DeliveryID, env.DriverID, env.Action = m.DeliveryID, m.DriverID, string(m.Action)
	case DriverActionMessage:
		env.DriverID, env.Action = m.DriverID, string(m.Action)
	case ReassignDeliveryMessage:
		env.DeliveryID, env.OldDriverID, env.NewDriverID = m.DeliveryID, m.OldDriverID, m.NewDriverID
	case LocationRequestMessage:
		env.DriverID = m.DriverID
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownMessageType, msg)
	}

	return json.Marshal(env)
}

// Decode parses a command envelope and returns the typed message.
// Action values are passed through unchecked; the receiver decides what it
// understands.
func Decode(payload []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeDeliveryAction:
		return DeliveryActionMessage{
			DeliveryID: env.DeliveryID,
			DriverID:   env.DriverID,
			Action:     model.DeliveryAction(env.Action),
		}, nil
	case TypeDriverAction:
		return DriverActionMessage{DriverID: env.DriverID, Action: model.DriverAction(env.Action)}, nil
	case TypeReassignDelivery:
		return ReassignDeliveryMessage{
			DeliveryID:  env.DeliveryID,
			OldDriverID: env.OldDriverID,
			NewDriverID: env.NewDriverID,
		}, nil
	case TypeRequestLocation:
		return LocationRequestMessage{DriverID: env.DriverID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
}
