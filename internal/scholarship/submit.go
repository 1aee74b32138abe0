package scholarship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scholarship-workers/internal/blob"
	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/common/observability"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

// Listener is told about every committed application. Listener errors are
// logged and never fail the submission.
type Listener interface {
	ApplicationSubmitted(ctx context.Context, app models.Application, payment *models.PaymentRecord) error
}

type ListenerFunc func(ctx context.Context, app models.Application, payment *models.PaymentRecord) error

func (f ListenerFunc) ApplicationSubmitted(ctx context.Context, app models.Application, payment *models.PaymentRecord) error {
	return f(ctx, app, payment)
}

// Submitter runs the commit protocol: pending payment (online only),
// sequential ID, uploads, application record, payment back-link.
// A payment written before a later failure is left in place for the
// reconciler.
type Submitter struct {
	docs      store.DocumentStore
	counter   store.AtomicCounter
	blobs     blob.Store
	settings  SettingsProvider
	listeners []Listener
	logger    logger.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

type SubmitterOption func(*Submitter)

func WithListeners(listeners ...Listener) SubmitterOption {
	return func(s *Submitter) { s.listeners = append(s.listeners, listeners...) }
}

func WithClock(now func() time.Time) SubmitterOption {
	return func(s *Submitter) { s.now = now }
}

func NewSubmitter(docs store.DocumentStore, counter store.AtomicCounter, blobs blob.Store, settings SettingsProvider, log logger.Logger, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		docs:     docs,
		counter:  counter,
		blobs:    blobs,
		settings: settings,
		logger:   log.WithFields(map[string]interface{}{"component": "scholarship-submitter"}),
		tracer:   observability.Tracer("scholarship"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if s.blobs == nil {
		s.blobs = blob.InlineStore{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Submitter) Commit(ctx context.Context, principal *models.Principal, sub Submission) (receipt *models.Receipt, err error) {
	if principal == nil || principal.ID == "" {
		return nil, apperrors.NewAuthenticationError("no signed-in user")
	}
	started := s.now()
	app := sub.Application
	mode := app.ExamMode

	ctx, span := s.tracer.Start(ctx, "scholarship.submit", trace.WithAttributes(
		attribute.String("exam_mode", string(mode)),
		attribute.String("user_id", principal.ID),
	))
	defer func() { observability.EndSpan(span, err) }()

	var payment *models.PaymentRecord
	if mode == models.ExamModeOnline {
		payment, err = s.preparePayment(ctx, principal, sub)
		if err != nil {
			return nil, err
		}
		if err := s.traced(ctx, "payment", func(ctx context.Context) error {
			id, err := s.docs.Add(ctx, models.CollectionPayments, payment)
			payment.ID = id
			return err
		}); err != nil {
			return nil, s.fail("payment", apperrors.NewPaymentRecordFailedError(err), nil)
		}
	}

	var n int64
	if err := s.traced(ctx, "counter", func(ctx context.Context) error {
		var err error
		n, err = s.counter.Next(ctx, models.ApplicationCounterKey)
		return err
	}); err != nil {
		return nil, s.fail("counter", apperrors.NewIDIssuanceFailedError(err), payment)
	}
	metrics.ApplicationIDsIssued.Inc()

	app.ID = store.FormatID(n)
	app.UserID = principal.ID
	app.Status = models.InitialStatus(mode)
	app.CreatedAt = s.now()
	if payment != nil {
		app.PaymentID = payment.ID
		app.Center1, app.Center2, app.Center3 = "", "", ""
	} else {
		app.PaymentID = ""
	}

	if err := s.traced(ctx, "uploads", func(ctx context.Context) error {
		return s.storeUploads(ctx, &app, sub)
	}); err != nil {
		return nil, s.fail("uploads", apperrors.NewDatabaseInsertFailedError(err), payment)
	}

	if err := s.traced(ctx, "application", func(ctx context.Context) error {
		return s.docs.Create(ctx, models.CollectionApplications, app.ID, app)
	}); err != nil {
		if errors.Is(err, store.ErrConflict) {
			s.logger.Error("Issued application ID is already taken; check the counter backend", map[string]interface{}{
				"applicationId": app.ID,
			})
		}
		return nil, s.fail("application", apperrors.NewDatabaseInsertFailedError(err), payment)
	}

	if payment != nil {
		if err := s.traced(ctx, "payment_link", func(ctx context.Context) error {
			return s.docs.Update(ctx, models.CollectionPayments, payment.ID, map[string]interface{}{
				"applicationId": app.ID,
			})
		}); err != nil {
			return nil, s.fail("payment_link", apperrors.NewPaymentLinkFailedError(payment.ID, err), nil)
		}
		payment.ApplicationID = app.ID
	}

	metrics.ApplicationsSubmitted.WithLabelValues(string(mode)).Inc()
	metrics.SubmissionDuration.WithLabelValues(string(mode)).Observe(s.now().Sub(started).Seconds())
	s.logger.Info("Scholarship application submitted", map[string]interface{}{
		"applicationId": app.ID,
		"examMode":      mode,
		"status":        app.Status,
		"paymentId":     app.PaymentID,
	})

	s.notify(ctx, app, payment)

	return &models.Receipt{
		ApplicationID: app.ID,
		Status:        app.Status,
		ExamMode:      mode,
		PaymentID:     app.PaymentID,
		SubmittedAt:   app.CreatedAt,
	}, nil
}

// preparePayment checks the fee precondition. Nothing is written on failure.
func (s *Submitter) preparePayment(ctx context.Context, principal *models.Principal, sub Submission) (*models.PaymentRecord, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, s.fail("settings", err, nil)
	}
	fee, ok := settings.Fee(models.ExamModeOnline)
	if !ok {
		return nil, apperrors.NewFeeNotConfiguredError(string(models.ExamModeOnline))
	}
	if sub.Payment == nil || sub.Payment.PayerMobile == "" {
		return nil, apperrors.NewApplicationValidationFailedError([]apperrors.FieldError{
			{Field: "payerMobile", Message: "is required"},
		})
	}
	return &models.PaymentRecord{
		UserID:         principal.ID,
		ExamMode:       models.ExamModeOnline,
		Amount:         fee,
		PayerMobile:    sub.Payment.PayerMobile,
		TransactionRef: sub.Payment.TransactionRef,
		Status:         models.PaymentStatusPending,
		CreatedAt:      s.now(),
	}, nil
}

func (s *Submitter) storeUploads(ctx context.Context, app *models.Application, sub Submission) error {
	if sub.Photo != nil {
		ref, err := s.blobs.Put(ctx, fmt.Sprintf("applications/%s/photo", app.ID), *sub.Photo)
		if err != nil {
			return fmt.Errorf("photo: %w", err)
		}
		app.Photo = ref
	}
	if sub.Signature != nil {
		ref, err := s.blobs.Put(ctx, fmt.Sprintf("applications/%s/signature", app.ID), *sub.Signature)
		if err != nil {
			return fmt.Errorf("signature: %w", err)
		}
		app.Signature = ref
	}
	return nil
}

func (s *Submitter) traced(ctx context.Context, step string, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "scholarship.submit."+step)
	err := fn(ctx)
	observability.EndSpan(span, err)
	return err
}

// fail logs the real cause and hands the caller a generic retryable error.
func (s *Submitter) fail(step string, cause error, orphan *models.PaymentRecord) error {
	fields := map[string]interface{}{
		"step":  step,
		"error": cause.Error(),
	}
	if orphan != nil && orphan.ID != "" {
		fields["orphanedPaymentId"] = orphan.ID
	}
	s.logger.Error("Scholarship submission failed", fields)
	metrics.SubmissionsFailed.WithLabelValues(step).Inc()
	return apperrors.NewSubmissionFailedError(cause)
}

func (s *Submitter) notify(ctx context.Context, app models.Application, payment *models.PaymentRecord) {
	for _, l := range s.listeners {
		if err := l.ApplicationSubmitted(ctx, app, payment); err != nil {
			s.logger.Warn("Post-submission listener failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
}
