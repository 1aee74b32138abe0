package sendnotification

import "scholarship-workers/internal/models"

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID string                `json:"applicationId"`
	Status        string                `json:"notificationStatus"` // sent, partial, disabled
	Notifications []models.Notification `json:"notifications"`
}

const (
	StatusSent     = "sent"
	StatusPartial  = "partial"
	StatusDisabled = "disabled"
)
