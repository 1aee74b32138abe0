// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/scholarship"
)

// Job is a named unit of work run on a cron schedule.
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger logger.Logger
}

func New(log logger.Logger, jobs ...Job) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log})))
	return &Scheduler{cron: c, jobs: jobs, logger: log}
}

// Start registers the jobs and starts the cron scheduler. A job with a bad
// schedule is logged and skipped. It returns the number of jobs scheduled.
func (s *Scheduler) Start() int {
	scheduled := 0
	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(job) }); err != nil {
			s.logger.Error("Failed to schedule job", map[string]interface{}{
				"job":      job.Name,
				"schedule": job.Schedule,
				"error":    err.Error(),
			})
			continue
		}
		scheduled++
		s.logger.Info("Scheduled job", map[string]interface{}{"job": job.Name, "schedule": job.Schedule})
	}
	s.cron.Start()
	return scheduled
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(job Job) {
	ctx := context.Background()
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(ctx)
	fields := map[string]interface{}{"job": job.Name, "duration": time.Since(start).String()}
	if err != nil {
		fields["error"] = err.Error()
		s.logger.Error("Scheduled job failed", fields)
		return
	}
	s.logger.Debug("Scheduled job finished", fields)
}

// ReconcilePayments wraps the orphan payment reconciler as a job.
func ReconcilePayments(r *scholarship.Reconciler, schedule string) Job {
	return Job{
		Name:     "reconcile-scholarship-payments",
		Schedule: schedule,
		Timeout:  5 * time.Minute,
		Run: func(ctx context.Context) error {
			_, err := r.Run(ctx)
			return err
		},
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, pairs(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := pairs(keysAndValues)
	fields["error"] = err.Error()
	l.log.Error(msg, fields)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2+1)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			fields[key] = kv[i+1]
		}
	}
	return fields
}
