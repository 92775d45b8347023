package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Transport kinds.
const (
	TransportSimulated = "simulated"
	TransportWebSocket = "websocket"
	TransportMQTT      = "mqtt"
)

var _ IOptions = (*TransportOptions)(nil)

// TransportOptions selects the channel between the tracker and the drivers
// and configures its reconnect behaviour.
type TransportOptions struct {
	// Kind is one of simulated, websocket or mqtt.
	Kind string `json:"kind" mapstructure:"kind"`

	// ReconnectInterval is the constant backoff between reconnect attempts.
	ReconnectInterval time.Duration `json:"reconnect-interval" mapstructure:"reconnect-interval"`

	// MaxReconnectAttempts is the number of reconnects after the first failed
	// connection before the channel gives up. Zero disables reconnecting.
	MaxReconnectAttempts int `json:"max-reconnect-attempts" mapstructure:"max-reconnect-attempts"`

	// StartDelay defers the simulated channel's engine start after connect.
	StartDelay time.Duration `json:"start-delay" mapstructure:"start-delay"`
}

func NewTransportOptions() *TransportOptions {
	return &TransportOptions{
		Kind:                 TransportSimulated,
		ReconnectInterval:    5 * time.Second,
		MaxReconnectAttempts: 5,
		StartDelay:           time.Second,
	}
}

func (o *TransportOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	switch o.Kind {
	case TransportSimulated, TransportWebSocket, TransportMQTT:
	default:
		errors = append(errors, fmt.Errorf("--transport.kind must be one of %s, %s, %s; got %q",
			TransportSimulated, TransportWebSocket, TransportMQTT, o.Kind))
	}
	if o.ReconnectInterval <= 0 {
		errors = append(errors, fmt.Errorf("--transport.reconnect-interval must be positive"))
	}
	if o.MaxReconnectAttempts < 0 {
		errors = append(errors, fmt.Errorf("--transport.max-reconnect-attempts must not be negative"))
	}
	if o.StartDelay < 0 {
		errors = append(errors, fmt.Errorf("--transport.start-delay must not be negative"))
	}

	return errors
}

func (o *TransportOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Kind, "transport.kind", o.Kind, "Driver channel: simulated, websocket or mqtt.")
	fs.DurationVar(&o.ReconnectInterval, "transport.reconnect-interval", o.ReconnectInterval, "Constant delay between reconnect attempts.")
	fs.IntVar(&o.MaxReconnectAttempts, "transport.max-reconnect-attempts", o.MaxReconnectAttempts, "Reconnects after a failed connection before giving up (0 disables reconnecting).")
	fs.DurationVar(&o.StartDelay, "transport.start-delay", o.StartDelay, "Delay before the simulated channel starts emitting.")
}
