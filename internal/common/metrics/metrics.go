package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Worker job metrics, labelled by Zeebe task type.
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Scholarship and checkout metrics.
var (
	ApplicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarship_applications_submitted_total",
			Help: "Applications persisted, by exam mode",
		},
		[]string{"exam_mode"},
	)

	SubmissionsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scholarship_submissions_failed_total",
			Help: "Submissions that failed, by failing step",
		},
		[]string{"step"},
	)

	ApplicationIDsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scholarship_application_ids_issued_total",
			Help: "Sequential application IDs issued",
		},
	)

	OrphanedPayments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scholarship_orphaned_payments_total",
			Help: "Pending payment records marked orphaned by reconciliation",
		},
	)

	SubmissionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scholarship_submission_duration_seconds",
			Help:    "End to end duration of the submission commit",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"exam_mode"},
	)

	CouponRedemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_coupon_redemptions_total",
			Help: "Coupon validations, by result",
		},
		[]string{"result"},
	)

	OrdersPlaced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_orders_placed_total",
			Help: "Orders persisted, by item type",
		},
		[]string{"item_type"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests served, by route pattern and status",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)
