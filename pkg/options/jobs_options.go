package options

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"
)

var _ IOptions = (*JobsOptions)(nil)

// JobsOptions schedules the background maintenance jobs.
type JobsOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// StaleSchedule is the cron spec of the offline sweep.
	StaleSchedule string `json:"stale-schedule" mapstructure:"stale-schedule"`

	// StaleAfter marks a driver offline when its last sample is older.
	StaleAfter time.Duration `json:"stale-after" mapstructure:"stale-after"`

	// SnapshotSchedule is the cron spec of the snapshot archive job.
	SnapshotSchedule string `json:"snapshot-schedule" mapstructure:"snapshot-schedule"`
}

func NewJobsOptions() *JobsOptions {
	return &JobsOptions{
		Enabled:          true,
		StaleSchedule:    "@every 30s",
		StaleAfter:       time.Minute,
		SnapshotSchedule: "@every 5m",
	}
}

func (o *JobsOptions) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	errors := []error{}

	for flag, spec := range map[string]string{
		"--jobs.stale-schedule":    o.StaleSchedule,
		"--jobs.snapshot-schedule": o.SnapshotSchedule,
	} {
		if _, err := cron.ParseStandard(spec); err != nil {
			errors = append(errors, fmt.Errorf("%s: %w", flag, err))
		}
	}
	if o.StaleAfter <= 0 {
		errors = append(errors, fmt.Errorf("--jobs.stale-after must be positive"))
	}

	return errors
}

func (o *JobsOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.Enabled, "jobs.enabled", o.Enabled, "Run background maintenance jobs.")
	fs.StringVar(&o.StaleSchedule, "jobs.stale-schedule", o.StaleSchedule, "Cron spec of the stale telemetry sweep.")
	fs.DurationVar(&o.StaleAfter, "jobs.stale-after", o.StaleAfter, "Age after which a driver without telemetry is marked offline.")
	fs.StringVar(&o.SnapshotSchedule, "jobs.snapshot-schedule", o.SnapshotSchedule, "Cron spec of the snapshot archive job.")
}
