package submitapplication

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/scholarship"
)

const (
	TaskType = "scholarship-submit-application"
)

// Handler validates the whole application for its exam mode and runs the
// commit protocol. Submission failures are thrown as BPMN errors without
// engine retries; the applicant retries from the review step.
type Handler struct {
	config *Config
	wizard *scholarship.Wizard
	errors *apperrors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, wizard *scholarship.Wizard, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		wizard: wizard,
		errors: apperrors.NewErrorHandler(l),
		logger: l,
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
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}

	applicant := input.Applicant
	session := scholarship.Session{
		Current: scholarship.StepReviewAndSubmit,
		Form:    scholarship.NewForm(input.Form),
		Status:  scholarship.SessionEditing,
	}
	_, receipt, err := h.wizard.Submit(ctx, &applicant, session, nil)
	if err != nil {
		return nil, err
	}

	return &Output{
		ApplicationID: receipt.ApplicationID,
		Status:        receipt.Status,
		ExamMode:      receipt.ExamMode,
		PaymentID:     receipt.PaymentID,
		SubmittedAt:   receipt.SubmittedAt,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error":         err,
			"applicationId": output.ApplicationID,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error":         err,
			"applicationId": output.ApplicationID,
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
