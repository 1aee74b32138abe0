package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"scholarship-workers/internal/common/config"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
)

// JobHandler is implemented by every task handler.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// JobRecorder receives per-job measurements, typically the OTel meters.
type JobRecorder interface {
	RecordJobProcessed(ctx context.Context, taskType, status string)
	RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string)
}

// Workers opens and tracks one Zeebe job worker per task type.
type Workers struct {
	client   zbc.Client
	logger   logger.Logger
	recorder JobRecorder
	workers  map[string]worker.JobWorker
}

func NewWorkers(client zbc.Client, log logger.Logger, recorder JobRecorder) *Workers {
	return &Workers{
		client:   client,
		logger:   log,
		recorder: recorder,
		workers:  make(map[string]worker.JobWorker),
	}
}

// Start opens a job worker unless the task type is disabled.
func (w *Workers) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) {
	if !wcfg.Enabled {
		w.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return
	}

	w.workers[taskType] = w.client.NewJobWorker().
		JobType(taskType).
		Handler(Instrument(taskType, handler.Handle, w.recorder)).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	w.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
}

// Running returns the task types with an open worker.
func (w *Workers) Running() []string {
	out := make([]string, 0, len(w.workers))
	for taskType := range w.workers {
		out = append(out, taskType)
	}
	return out
}

// Close stops every worker and waits for in-flight jobs.
func (w *Workers) Close() {
	for taskType, jw := range w.workers {
		w.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		jw.Close()
		jw.AwaitClose()
	}
}

// Instrument tracks the active gauge and duration histogram for a handler.
// A nil recorder is skipped.
func Instrument(taskType string, handle worker.JobHandler, recorder JobRecorder) worker.JobHandler {
	return func(client worker.JobClient, job entities.Job) {
		metrics.WorkerJobsActive.WithLabelValues(taskType).Inc()
		start := time.Now()
		defer func() {
			elapsed := time.Since(start)
			metrics.WorkerJobsActive.WithLabelValues(taskType).Dec()
			metrics.WorkerJobDuration.WithLabelValues(taskType).Observe(elapsed.Seconds())
			if recorder != nil {
				recorder.RecordJobProcessed(context.Background(), taskType, "handled")
				recorder.RecordJobDuration(context.Background(), taskType, elapsed, "handled")
			}
		}()
		handle(client, job)
	}
}
