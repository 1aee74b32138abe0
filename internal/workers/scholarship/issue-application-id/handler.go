package issueapplicationid

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

const (
	TaskType = "scholarship-issue-application-id"
)

// Handler issues the next sequential ID on its own, for back-office
// processes that create applications outside the wizard. Every number it
// hands out is consumed, so an ID never used for an application leaves a
// gap in the sequence.
type Handler struct {
	config  *Config
	counter store.AtomicCounter
	errors  *apperrors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, counter store.AtomicCounter, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		counter: counter,
		errors:  apperrors.NewErrorHandler(l),
		logger:  l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, apperrors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(client, job, err)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	key := models.ApplicationCounterKey
	if input != nil && input.CounterKey != "" {
		key = input.CounterKey
	}
	if !h.config.allows(key) {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("counterKey %q is not allowed", key))
	}

	n, err := h.counter.Next(ctx, key)
	if err != nil {
		return nil, apperrors.NewIDIssuanceFailedError(err)
	}
	if key == models.ApplicationCounterKey {
		metrics.ApplicationIDsIssued.Inc()
	}

	h.logger.Info("issued sequence", map[string]interface{}{
		"counterKey": key,
		"sequence":   n,
	})
	return &Output{CounterKey: key, Sequence: n, ApplicationID: store.FormatID(n)}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error":    err,
			"sequence": output.Sequence,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
