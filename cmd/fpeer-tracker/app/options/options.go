package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker"
	"github.com/fleetpeer-io/fleetpeer/pkg/app"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type TrackerOptions struct {
	HttpOptions       *options.HttpOptions       `json:"http" mapstructure:"http"`
	TransportOptions  *options.TransportOptions  `json:"transport" mapstructure:"transport"`
	WebSocketOptions  *options.WebSocketOptions  `json:"websocket" mapstructure:"websocket"`
	MqttOptions       *options.MqttOptions       `json:"mqtt" mapstructure:"mqtt"`
	SimulationOptions *options.SimulationOptions `json:"simulation" mapstructure:"simulation"`
	MapOptions        *options.MapOptions        `json:"map" mapstructure:"map"`
	S3Options         *options.S3Options         `json:"s3" mapstructure:"s3"`
	JobsOptions       *options.JobsOptions       `json:"jobs" mapstructure:"jobs"`
	Log               *log.Options               `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*TrackerOptions)(nil)
	_ app.LoggerOptions       = (*TrackerOptions)(nil)
)

func NewTrackerOptions() *TrackerOptions {
	return &TrackerOptions{
		HttpOptions:       options.NewHttpOptions(),
		TransportOptions:  options.NewTransportOptions(),
		WebSocketOptions:  options.NewWebSocketOptions(),
		MqttOptions:       options.NewMqttOptions(),
		SimulationOptions: options.NewSimulationOptions(),
		MapOptions:        options.NewMapOptions(),
		S3Options:         options.NewS3Options(),
		JobsOptions:       options.NewJobsOptions(),
		Log:               log.NewOptions(),
	}
}

func (o *TrackerOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.TransportOptions.AddFlags(fss.FlagSet("transport"))
	o.WebSocketOptions.AddFlags(fss.FlagSet("websocket"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.SimulationOptions.AddFlags(fss.FlagSet("simulation"))
	o.MapOptions.AddFlags(fss.FlagSet("map"))
	o.S3Options.AddFlags(fss.FlagSet("s3"))
	o.JobsOptions.AddFlags(fss.FlagSet("jobs"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *TrackerOptions) Complete() error {
	return nil
}

// Validate checks every option group. Transport-specific groups are only
// checked when their transport is selected.
func (o *TrackerOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.TransportOptions.Validate()...)
	switch o.TransportOptions.Kind {
	case options.TransportWebSocket:
		errs = append(errs, o.WebSocketOptions.Validate()...)
	case options.TransportMQTT:
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	errs = append(errs, o.SimulationOptions.Validate()...)
	errs = append(errs, o.MapOptions.Validate()...)
	errs = append(errs, o.S3Options.Validate()...)
	errs = append(errs, o.JobsOptions.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *TrackerOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *TrackerOptions) Config() (*tracker.Config, error) {
	return &tracker.Config{
		HttpOptions:       o.HttpOptions,
		TransportOptions:  o.TransportOptions,
		WebSocketOptions:  o.WebSocketOptions,
		MqttOptions:       o.MqttOptions,
		SimulationOptions: o.SimulationOptions,
		MapOptions:        o.MapOptions,
		S3Options:         o.S3Options,
		JobsOptions:       o.JobsOptions,
	}, nil
}
