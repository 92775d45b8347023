package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SimulationOptions)(nil)

const minTickInterval = time.Millisecond

// SimulationOptions tunes the route simulation.
type SimulationOptions struct {
	// UpdateInterval is the time a driver needs to travel one route segment.
	UpdateInterval time.Duration `json:"update-interval" mapstructure:"update-interval"`

	// InterpolationSteps splits each segment into this many ticks.
	InterpolationSteps int `json:"interpolation-steps" mapstructure:"interpolation-steps"`

	// MinRouteScale and MaxRouteScale bound the route size in degrees.
	MinRouteScale float64 `json:"min-route-scale" mapstructure:"min-route-scale"`
	MaxRouteScale float64 `json:"max-route-scale" mapstructure:"max-route-scale"`

	// Seed makes route generation and jitter reproducible. Zero seeds from the clock.
	Seed int64 `json:"seed" mapstructure:"seed"`

	// SeedDemoData loads the demo drivers and deliveries at startup.
	SeedDemoData bool `json:"seed-demo-data" mapstructure:"seed-demo-data"`
}

func NewSimulationOptions() *SimulationOptions {
	return &SimulationOptions{
		UpdateInterval:     5 * time.Second,
		InterpolationSteps: 2,
		MinRouteScale:      0.004,
		MaxRouteScale:      0.01,
		SeedDemoData:       true,
	}
}

func (o *SimulationOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.UpdateInterval <= 0 {
		errors = append(errors, fmt.Errorf("--simulation.update-interval must be positive"))
	}
	if o.InterpolationSteps < 1 {
		errors = append(errors, fmt.Errorf("--simulation.interpolation-steps must be at least 1"))
	} else if o.UpdateInterval > 0 && o.UpdateInterval/time.Duration(o.InterpolationSteps) < minTickInterval {
		errors = append(errors, fmt.Errorf("--simulation.update-interval %s leaves less than %s per interpolation step",
			o.UpdateInterval, minTickInterval))
	}
	if o.MinRouteScale <= 0 || o.MaxRouteScale < o.MinRouteScale {
		errors = append(errors, fmt.Errorf("--simulation route scale range [%g, %g] is invalid", o.MinRouteScale, o.MaxRouteScale))
	}

	return errors
}

func (o *SimulationOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.UpdateInterval, "simulation.update-interval", o.UpdateInterval, "Time to travel one route segment.")
	fs.IntVar(&o.InterpolationSteps, "simulation.interpolation-steps", o.InterpolationSteps, "Ticks per route segment.")
	fs.Float64Var(&o.MinRouteScale, "simulation.min-route-scale", o.MinRouteScale, "Lower bound of the route size in degrees.")
	fs.Float64Var(&o.MaxRouteScale, "simulation.max-route-scale", o.MaxRouteScale, "Upper bound of the route size in degrees.")
	fs.Int64Var(&o.Seed, "simulation.seed", o.Seed, "Random seed for routes and jitter (0 uses the clock).")
	fs.BoolVar(&o.SeedDemoData, "simulation.seed-demo-data", o.SeedDemoData, "Load demo drivers and deliveries at startup.")
}
