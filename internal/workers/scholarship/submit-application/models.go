package submitapplication

import (
	"time"

	"scholarship-workers/internal/models"
)

// Input carries the applicant and the full set of wizard answers.
type Input struct {
	Applicant models.Principal       `json:"applicant"`
	Form      map[string]interface{} `json:"form"`
}

type Output struct {
	ApplicationID string                   `json:"applicationId"`
	Status        models.ApplicationStatus `json:"status"`
	ExamMode      models.ExamMode          `json:"examMode"`
	PaymentID     string                   `json:"paymentId,omitempty"`
	SubmittedAt   time.Time                `json:"submittedAt"`
}
