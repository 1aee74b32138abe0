package models

import "time"

// Collection names in the document store.
const (
	CollectionApplications = "scholarshipApplications"
	CollectionPayments     = "scholarshipPayments"
	CollectionCounters     = "counters"
	CollectionSettings     = "settings"

	// ApplicationCounterKey names the counter that issues application IDs.
	ApplicationCounterKey = "scholarshipApplications"
	// PaymentSettingsID is the settings document holding scholarship fees.
	PaymentSettingsID = "payment"
)

// ExamMode selects which branch of the application wizard applies.
type ExamMode string

const (
	ExamModeOnline  ExamMode = "online"
	ExamModeOffline ExamMode = "offline"
)

func (m ExamMode) Valid() bool {
	return m == ExamModeOnline || m == ExamModeOffline
}

// ApplicationStatus only moves forward: submitted -> approved|rejected.
// Offline applications are created approved.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// InitialStatus is the status an application is persisted with.
func InitialStatus(mode ExamMode) ApplicationStatus {
	if mode == ExamModeOffline {
		return ApplicationStatusApproved
	}
	return ApplicationStatusSubmitted
}

// Application is a submitted scholarship application. ID is the five digit
// sequential identifier issued at submission and never changes afterwards.
type Application struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	Name               string            `json:"name"`
	FatherName         string            `json:"fatherName"`
	DateOfBirth        string            `json:"dateOfBirth"`
	Gender             string            `json:"gender"`
	Mobile             string            `json:"mobile"`
	Email              string            `json:"email"`
	Class              string            `json:"class"`
	School             string            `json:"school"`
	PreviousPercentage float64           `json:"previousPercentage"`
	ExamMode           ExamMode          `json:"examMode"`
	Center1            string            `json:"center1,omitempty"`
	Center2            string            `json:"center2,omitempty"`
	Center3            string            `json:"center3,omitempty"`
	Photo              string            `json:"photo,omitempty"`
	Signature          string            `json:"signature,omitempty"`
	PaymentID          string            `json:"paymentId,omitempty"`
	Status             ApplicationStatus `json:"status"`
	AllottedCenter     string            `json:"allottedCenter,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
}

// Centers returns the non-empty center preferences in order.
func (a Application) Centers() []string {
	out := make([]string, 0, 3)
	for _, c := range []string{a.Center1, a.Center2, a.Center3} {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Receipt is returned to the applicant after a successful submission.
type Receipt struct {
	ApplicationID string            `json:"applicationId"`
	Status        ApplicationStatus `json:"status"`
	ExamMode      ExamMode          `json:"examMode"`
	PaymentID     string            `json:"paymentId,omitempty"`
	SubmittedAt   time.Time         `json:"submittedAt"`
}
