package app

import (
	cliflag "k8s.io/component-base/cli/flag"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// NamedFlagSetOptions is implemented by the options struct of every command.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section for help output.
	Flags() cliflag.NamedFlagSets

	// Complete fills in derived values after flags and config are applied.
	Complete() error

	// Validate checks the options and aggregates every problem found.
	Validate() error
}

// LoggerOptions is implemented by options that carry logging settings.
// The App initialises the global logger from them before running.
type LoggerOptions interface {
	LogOptions() *log.Options
}
