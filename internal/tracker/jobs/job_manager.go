package jobs

import (
	"context"
	"fmt"

	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// JobManager starts and stops a set of scheduled jobs together.
type JobManager struct {
	jobs []*scheduled
}

func NewJobManager() *JobManager {
	return &JobManager{}
}

// Add schedules r. Jobs added after StartAll are not started.
func (jm *JobManager) Add(r Runner, schedule string) {
	jm.jobs = append(jm.jobs, newScheduled(r, schedule))
}

func (jm *JobManager) Len() int { return len(jm.jobs) }

// StartAll starts every job. If one fails, the ones already started are
// stopped again.
func (jm *JobManager) StartAll() error {
	for i, j := range jm.jobs {
		if err := j.Start(); err != nil {
			for _, started := range jm.jobs[:i] {
				started.Stop()
			}
			return fmt.Errorf("failed to start %s job: %w", j.runner.Name(), err)
		}
	}
	return nil
}

func (jm *JobManager) StopAll() {
	for _, j := range jm.jobs {
		j.Stop()
	}
}

// Start runs the jobs until ctx is done.
func (jm *JobManager) Start(ctx context.Context) error {
	if err := jm.StartAll(); err != nil {
		return err
	}
	log.Info("Background jobs running", "count", len(jm.jobs))

	<-ctx.Done()
	jm.StopAll()
	return nil
}
