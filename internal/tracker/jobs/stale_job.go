package jobs

import (
	"context"
	"time"

	"github.com/fleetpeer-io/fleetpeer/internal/tracker/store"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// StaleTelemetryJob marks drivers offline whose latest sample is older than
// maxAge.
type StaleTelemetryJob struct {
	store  *store.Store
	maxAge time.Duration
	logger log.Logger
}

func NewStaleTelemetryJob(st *store.Store, maxAge time.Duration) *StaleTelemetryJob {
	return &StaleTelemetryJob{
		store:  st,
		maxAge: maxAge,
		logger: log.WithName("jobs").WithValues("job", "stale-telemetry"),
	}
}

func (j *StaleTelemetryJob) Name() string { return "stale-telemetry" }

func (j *StaleTelemetryJob) Run(_ context.Context) error {
	if ids := j.store.MarkStaleDriversOffline(j.maxAge); len(ids) > 0 {
		j.logger.Info("Drivers marked offline", "drivers", ids, "maxAge", j.maxAge)
	}
	return nil
}
