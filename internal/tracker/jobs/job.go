package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/fleetpeer-io/fleetpeer/internal/pkg/metrics"
	"github.com/fleetpeer-io/fleetpeer/pkg/log"
)

// Runner is the work of a scheduled job.
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// scheduled runs a Runner on its own cron scheduler.
type scheduled struct {
	runner   Runner
	schedule string
	cron     *cron.Cron
	logger   log.Logger
}

func newScheduled(r Runner, schedule string) *scheduled {
	return &scheduled{
		runner:   r,
		schedule: schedule,
		cron:     cron.New(),
		logger:   log.WithName("jobs").WithValues("job", r.Name()),
	}
}

func (s *scheduled) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("Job started", "schedule", s.schedule)
	return nil
}

func (s *scheduled) run() {
	if err := s.runner.Run(context.Background()); err != nil {
		metrics.JobRunsTotal.WithLabelValues(s.runner.Name(), "error").Inc()
		s.logger.Error(err, "Job failed")
		return
	}
	metrics.JobRunsTotal.WithLabelValues(s.runner.Name(), "success").Inc()
}

// Stop waits for a running invocation to finish.
func (s *scheduled) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Job stopped")
}
