package options

import (
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/fleetpeer-io/fleetpeer/internal/simulator"
	"github.com/fleetpeer-io/fleetpeer/pkg/app"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
	"github.com/fleetpeer-io/fleetpeer/pkg/options"
)

type SimulatorOptions struct {
	HttpOptions       *options.HttpOptions       `json:"http" mapstructure:"http"`
	SimulationOptions *options.SimulationOptions `json:"simulation" mapstructure:"simulation"`
	MapOptions        *options.MapOptions        `json:"map" mapstructure:"map"`
	MqttOptions       *options.MqttOptions       `json:"mqtt" mapstructure:"mqtt"`
	GatewayOptions    *options.GatewayOptions    `json:"gateway" mapstructure:"gateway"`
	Log               *log.Options               `json:"log" mapstructure:"log"`
}

var (
	_ app.NamedFlagSetOptions = (*SimulatorOptions)(nil)
	_ app.LoggerOptions       = (*SimulatorOptions)(nil)
)

func NewSimulatorOptions() *SimulatorOptions {
	o := &SimulatorOptions{
		HttpOptions:       options.NewHttpOptions(),
		SimulationOptions: options.NewSimulationOptions(),
		MapOptions:        options.NewMapOptions(),
		MqttOptions:       options.NewMqttOptions(),
		GatewayOptions:    options.NewGatewayOptions(),
		Log:               log.NewOptions(),
	}
	o.HttpOptions.Addr = "0.0.0.0:8081"
	return o
}

func (o *SimulatorOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	o.HttpOptions.AddFlags(fss.FlagSet("http"))
	o.SimulationOptions.AddFlags(fss.FlagSet("simulation"))
	o.MapOptions.AddFlags(fss.FlagSet("map"))
	o.MqttOptions.AddFlags(fss.FlagSet("mqtt"))
	o.GatewayOptions.AddFlags(fss.FlagSet("gateway"))
	o.Log.AddFlags(fss.FlagSet("log"))
	return fss
}

func (o *SimulatorOptions) Complete() error {
	return nil
}

func (o *SimulatorOptions) Validate() error {
	errs := []error{}
	errs = append(errs, o.HttpOptions.Validate()...)
	errs = append(errs, o.SimulationOptions.Validate()...)
	errs = append(errs, o.MapOptions.Validate()...)
	errs = append(errs, o.GatewayOptions.Validate()...)
	if o.GatewayOptions.EnableMQTT {
		errs = append(errs, o.MqttOptions.Validate()...)
	}
	errs = append(errs, o.Log.Validate()...)
	return utilerrors.NewAggregate(errs)
}

func (o *SimulatorOptions) LogOptions() *log.Options {
	return o.Log
}

func (o *SimulatorOptions) Config() (*simulator.Config, error) {
	return &simulator.Config{
		HttpOptions:       o.HttpOptions,
		SimulationOptions: o.SimulationOptions,
		MapOptions:        o.MapOptions,
		MqttOptions:       o.MqttOptions,
		GatewayOptions:    o.GatewayOptions,
	}, nil
}
