// Package scheduler runs the periodic jobs of the service: the daily usage
// report and the category cache refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one periodic task. The context is cancelled on Stop.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	log     logrus.FieldLogger
	jobs    int
	started bool
}

// New creates a scheduler whose specs are read in loc.
func New(loc *time.Location, log logrus.FieldLogger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}
}

// Register adds job under a standard cron spec or a descriptor such as
// "@every 5m". An empty spec disables the job.
func (s *Scheduler) Register(spec, name string, job Job) error {
	if spec == "" {
		s.log.WithField("job", name).Info("scheduler: job disabled")
		return nil
	}
	if job == nil {
		return errors.New("scheduler: nil job")
	}
	_, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		log := s.log.WithField("job", name)
		if err := job(s.ctx); err != nil {
			log.WithError(err).Error("scheduler: job failed")
			return
		}
		log.WithField("took", time.Since(start)).Debug("scheduler: job done")
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	s.jobs++
	return nil
}

// Start begins running registered jobs. It is a no-op without jobs.
func (s *Scheduler) Start() {
	if s.jobs == 0 {
		s.log.Warn("scheduler: no jobs registered")
		return
	}
	s.cron.Start()
	s.started = true
	s.log.WithField("jobs", s.jobs).Info("scheduler: started")
}

// Stop waits for running jobs and cancels their context.
func (s *Scheduler) Stop() {
	if s.started {
		<-s.cron.Stop().Done()
		s.started = false
	}
	s.cancel()
	s.log.Info("scheduler: stopped")
}

// IsRunning reports whether jobs are scheduled and the scheduler started.
func (s *Scheduler) IsRunning() bool {
	return s.started && len(s.cron.Entries()) > 0
}
