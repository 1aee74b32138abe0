package validatestep

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/scholarship"
)

const (
	TaskType = "scholarship-validate-step"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

// Handler validates one wizard step and reports the step the applicant
// moves to. A failed validation completes the job with valid=false so the
// process can route back to the form.
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

func (h *Handler) execute(_ context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, apperrors.NewInvalidInputError("input cannot be nil")
	}
	kind, err := scholarship.ParseStepKind(input.Step)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("%v: %v", ErrInvalidInput, err))
	}

	session := scholarship.Session{
		Current: kind,
		Form:    scholarship.NewForm(input.Form),
		Status:  scholarship.SessionEditing,
	}
	next, err := h.wizard.Next(session, nil)

	output := &Output{
		Valid:    err == nil,
		Step:     kind.String(),
		NextStep: next.Current.String(),
		Steps:    stepNames(h.wizard.Steps(next.Form)),
	}
	if err != nil {
		stdErr, ok := apperrors.As(err)
		if !ok || stdErr.Code != apperrors.ErrCodeApplicationValidationFailed {
			return nil, err
		}
		output.Errors = stdErr.Fields
	}
	return output, nil
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
			"error": err,
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

func stepNames(steps []scholarship.Step) []string {
	out := make([]string, 0, len(steps))
	for _, s := range steps {
		out = append(out, s.Kind.String())
	}
	return out
}
