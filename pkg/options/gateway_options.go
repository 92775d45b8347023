package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*GatewayOptions)(nil)

// GatewayOptions configures how the simulator exposes its drivers.
type GatewayOptions struct {
	// Drivers are the ids simulated from startup.
	Drivers []string `json:"drivers" mapstructure:"drivers"`

	// EnableMQTT publishes telemetry to the broker and consumes commands from it.
	EnableMQTT bool `json:"enable-mqtt" mapstructure:"enable-mqtt"`

	// SendBuffer is the number of frames queued per websocket client before
	// the client is dropped as too slow.
	SendBuffer int `json:"send-buffer" mapstructure:"send-buffer"`
}

func NewGatewayOptions() *GatewayOptions {
	return &GatewayOptions{
		Drivers:    []string{"123", "456", "789", "010"},
		SendBuffer: 256,
	}
}

func (o *GatewayOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	seen := map[string]bool{}
	for _, id := range o.Drivers {
		if id == "" || seen[id] {
			errors = append(errors, fmt.Errorf("--gateway.drivers contains an empty or duplicate id %q", id))
		}
		seen[id] = true
	}
	if o.SendBuffer < 1 {
		errors = append(errors, fmt.Errorf("--gateway.send-buffer must be at least 1"))
	}

	return errors
}

func (o *GatewayOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringSliceVar(&o.Drivers, "gateway.drivers", o.Drivers, "Driver ids to simulate.")
	fs.BoolVar(&o.EnableMQTT, "gateway.enable-mqtt", o.EnableMQTT, "Also publish telemetry and consume commands over MQTT.")
	fs.IntVar(&o.SendBuffer, "gateway.send-buffer", o.SendBuffer, "Frames queued per websocket client before it is dropped.")
}
