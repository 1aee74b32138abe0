package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/scholarship"
)

const maxBodyBytes = 4 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names rather than Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    apperrors.ErrorCode    `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var stdErr *apperrors.StandardError
	switch {
	case errors.Is(err, scholarship.ErrAlreadySubmitted), errors.Is(err, scholarship.ErrNotReadyToSubmit):
		writeJSON(w, http.StatusConflict, errorBody{Code: apperrors.ErrorCode(err.Error()), Message: "Wizard is not in a submittable state"})
		return
	default:
		stdErr = apperrors.Normalize(err)
	}

	status := statusFor(stdErr.Code)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", map[string]interface{}{
			"path":    r.URL.Path,
			"code":    stdErr.Code,
			"error":   stdErr.Error(),
			"details": stdErr.Details,
		})
		// Internal causes stay in the log.
		writeJSON(w, status, errorBody{Code: stdErr.Code, Message: stdErr.Message})
		return
	}
	writeJSON(w, status, errorBody{
		Code:    stdErr.Code,
		Message: stdErr.Message,
		Details: stdErr.Details,
		Fields:  stdErr.Fields,
	})
}

func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrCodeApplicationValidationFailed,
		apperrors.ErrCodeCouponInvalid,
		apperrors.ErrCodeCouponExpired,
		apperrors.ErrCodeCouponExhausted:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeAuthentication:
		return http.StatusUnauthorized
	case apperrors.ErrCodeApplicationNotFound, apperrors.ErrCodeItemNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeFeeNotConfigured:
		return http.StatusPreconditionFailed
	case apperrors.ErrCodeQueryTimeout, apperrors.ErrCodeSearchTimeout, apperrors.ErrCodeDatabaseConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst and runs its validate tags.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return apperrors.NewInvalidInputError(fmt.Sprintf("parse body: %v", err))
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return apperrors.NewInvalidInputError(err.Error())
		}
		stdErr := apperrors.NewInvalidInputError("request body failed validation")
		for _, fe := range verrs {
			stdErr.Fields = append(stdErr.Fields, apperrors.FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return stdErr
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
