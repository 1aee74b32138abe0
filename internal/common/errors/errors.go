// Package errors provides standardized error handling for BPMN workflow integration
// and the HTTP surface.
package errors

import (
	"context"
	"database/sql/driver"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Scholarship submission
const (
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
	ErrCodeFeeNotConfigured            ErrorCode = "FEE_NOT_CONFIGURED"
	ErrCodeAuthentication              ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeSubmissionFailed            ErrorCode = "SUBMISSION_FAILED"
	ErrCodePaymentRecordFailed         ErrorCode = "PAYMENT_RECORD_FAILED"
	ErrCodeIDIssuanceFailed            ErrorCode = "ID_ISSUANCE_FAILED"
	ErrCodeDatabaseInsertFailed        ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodePaymentLinkFailed           ErrorCode = "PAYMENT_LINK_FAILED"
	ErrCodeApplicationNotFound         ErrorCode = "APPLICATION_NOT_FOUND"
)

// Checkout
const (
	ErrCodeCouponInvalid   ErrorCode = "COUPON_INVALID"
	ErrCodeCouponExpired   ErrorCode = "COUPON_EXPIRED"
	ErrCodeCouponExhausted ErrorCode = "COUPON_EXHAUSTED"
	ErrCodeItemNotFound    ErrorCode = "ITEM_NOT_FOUND"
	ErrCodeOrderFailed     ErrorCode = "ORDER_FAILED"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed          ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout                  ErrorCode = "QUERY_TIMEOUT"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeNotificationSendFailed        ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInvalidInput                  ErrorCode = "INVALID_INPUT"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// FieldError is a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// As extracts a *StandardError from an error chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewApplicationValidationFailedError(fields []FieldError) *StandardError {
	details := make([]string, 0, len(fields))
	for _, f := range fields {
		details = append(details, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return &StandardError{
		Code:      ErrCodeApplicationValidationFailed,
		Message:   "Application data validation failed",
		Details:   strings.Join(details, "; "),
		Fields:    fields,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewFeeNotConfiguredError(examMode string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeeNotConfigured,
		Message:   "Scholarship fee is not configured",
		Details:   fmt.Sprintf("examMode: %s", examMode),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSubmissionFailedError hides the failing step from the caller; the cause
// stays reachable through Unwrap for logging.
func NewSubmissionFailedError(cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubmissionFailed,
		Message:   "Submission failed, please try again",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewPaymentRecordFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentRecordFailed,
		Message:   "Payment record could not be created",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewIDIssuanceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeIDIssuanceFailed,
		Message:   "Application ID could not be issued",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewPaymentLinkFailedError(paymentID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePaymentLinkFailed,
		Message:   "Payment record could not be linked to application",
		Details:   fmt.Sprintf("paymentId: %s, error: %s", paymentID, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"paymentId": paymentID},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewApplicationNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCouponInvalidError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCouponInvalid,
		Message:   "Invalid coupon code",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCouponExpiredError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCouponExpired,
		Message:   "Coupon has expired",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewCouponExhaustedError(code string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCouponExhausted,
		Message:   "Coupon usage limit reached",
		Details:   fmt.Sprintf("code: %s", code),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewItemNotFoundError(itemType, itemID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeItemNotFound,
		Message:   "Item not found",
		Details:   fmt.Sprintf("itemType: %s, itemId: %s", itemType, itemID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewOrderFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeOrderFailed,
		Message:   "Order could not be placed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewQueryTimeoutError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreError classifies a failed store or counter call: deadlines become
// QUERY_TIMEOUT, lost or refused connections DATABASE_CONNECTION_FAILED and
// anything else QUERY_EXECUTION_FAILED.
func NewStoreError(queryType string, err error) *StandardError {
	var opErr *net.OpError
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		stdErr := NewQueryTimeoutError(queryType)
		stdErr.cause = err
		return stdErr
	case stderrors.Is(err, driver.ErrBadConn),
		stderrors.Is(err, syscall.ECONNREFUSED),
		stderrors.Is(err, syscall.ECONNRESET),
		stderrors.As(err, &opErr):
		return NewDatabaseConnectionFailedError(err)
	default:
		return NewQueryExecutionFailedError(queryType, err)
	}
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Elasticsearch query error",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewSearchTimeoutError(index string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Elasticsearch query timeout",
		Details:   fmt.Sprintf("index: %s", index),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeApplicationValidationFailed:   "APPLICATION_VALIDATION_FAILED",
	ErrCodeFeeNotConfigured:              "FEE_NOT_CONFIGURED",
	ErrCodeAuthentication:                "AUTHENTICATION_ERROR",
	ErrCodeSubmissionFailed:              "SUBMISSION_FAILED",
	ErrCodePaymentRecordFailed:           "SUBMISSION_FAILED",
	ErrCodeIDIssuanceFailed:              "SUBMISSION_FAILED",
	ErrCodeDatabaseInsertFailed:          "SUBMISSION_FAILED",
	ErrCodePaymentLinkFailed:             "SUBMISSION_FAILED",
	ErrCodeApplicationNotFound:           "APPLICATION_NOT_FOUND",
	ErrCodeCouponInvalid:                 "COUPON_INVALID",
	ErrCodeCouponExpired:                 "COUPON_INVALID",
	ErrCodeCouponExhausted:               "COUPON_INVALID",
	ErrCodeItemNotFound:                  "ITEM_NOT_FOUND",
	ErrCodeOrderFailed:                   "ORDER_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeInvalidInput:                  "INVALID_INPUT",
}

// GetRetryCount returns how many engine-side retries an error code gets.
// Submission failures are retried by the applicant, never by the engine.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeOrderFailed:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodeSearchTimeout:
		return 2

	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.Fields) > 0 {
		vars["fieldErrors"] = stdErr.Fields
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "AUTHENTICATION"):
		return "AUTH"
	case strings.Contains(codeStr, "COUPON") || strings.Contains(codeStr, "ORDER") || strings.Contains(codeStr, "ITEM"):
		return "CHECKOUT"
	case strings.Contains(codeStr, "PAYMENT") || strings.Contains(codeStr, "SUBMISSION") ||
		strings.Contains(codeStr, "ID_ISSUANCE") || strings.Contains(codeStr, "FEE"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
