package scholarship

import (
	"context"
	"errors"
	"fmt"
	"time"

	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/metrics"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

// ReconcileResult summarises one reconciliation pass.
type ReconcileResult struct {
	Scanned  int `json:"scanned"`
	Linked   int `json:"linked"`
	Orphaned int `json:"orphaned"`
}

// Reconciler repairs payments left behind by failed submissions. A pending
// payment with no applicationId older than the threshold is linked when an
// application references it, and marked orphaned otherwise. Nothing is
// deleted.
type Reconciler struct {
	docs      store.DocumentStore
	olderThan time.Duration
	logger    logger.Logger
	now       func() time.Time
}

func NewReconciler(docs store.DocumentStore, olderThan time.Duration, log logger.Logger) *Reconciler {
	return &Reconciler{
		docs:      docs,
		olderThan: olderThan,
		logger:    log.WithFields(map[string]interface{}{"component": "payment-reconciler"}),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) Run(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	docs, err := r.docs.Query(ctx, models.CollectionPayments, store.Where("status", string(models.PaymentStatusPending)))
	if err != nil {
		return result, fmt.Errorf("query pending payments: %w", err)
	}
	cutoff := r.now().Add(-r.olderThan)

	for _, doc := range docs {
		var payment models.PaymentRecord
		if err := doc.Decode(&payment); err != nil {
			r.logger.Warn("Skipping unreadable payment", map[string]interface{}{"paymentId": doc.ID, "error": err.Error()})
			continue
		}
		if payment.ApplicationID != "" || payment.CreatedAt.After(cutoff) {
			continue
		}
		result.Scanned++

		if err := r.reconcile(ctx, doc.ID, &result); err != nil {
			return result, err
		}
	}

	r.logger.Info("Payment reconciliation finished", map[string]interface{}{
		"scanned":  result.Scanned,
		"linked":   result.Linked,
		"orphaned": result.Orphaned,
	})
	return result, nil
}

func (r *Reconciler) reconcile(ctx context.Context, paymentID string, result *ReconcileResult) error {
	apps, err := r.docs.Query(ctx, models.CollectionApplications, store.Where("paymentId", paymentID))
	if err != nil {
		return fmt.Errorf("find application for payment %s: %w", paymentID, err)
	}

	if len(apps) > 0 {
		err = r.docs.Update(ctx, models.CollectionPayments, paymentID, map[string]interface{}{
			"applicationId": apps[0].ID,
		})
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("link payment %s: %w", paymentID, err)
		}
		result.Linked++
		r.logger.Info("Linked payment to application", map[string]interface{}{
			"paymentId":     paymentID,
			"applicationId": apps[0].ID,
		})
		return nil
	}

	err = r.docs.Update(ctx, models.CollectionPayments, paymentID, map[string]interface{}{
		"status":     string(models.PaymentStatusOrphaned),
		"orphanedAt": r.now(),
	})
	if err != nil {
		return fmt.Errorf("mark payment %s orphaned: %w", paymentID, err)
	}
	result.Orphaned++
	metrics.OrphanedPayments.Inc()
	r.logger.Warn("Marked payment orphaned", map[string]interface{}{"paymentId": paymentID})
	return nil
}
