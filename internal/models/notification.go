package models

// Principal is the authenticated user as reported by the identity provider.
type Principal struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type Notification struct {
	ApplicationID string `json:"applicationId"`
	RecipientID   string `json:"recipientId"`
	Type          string `json:"type"`    // "application_submitted", "payment_pending"
	Channel       string `json:"channel"` // "email", "sms"
	Status        string `json:"status"`  // "sent", "failed", "disabled"
	MessageID     string `json:"messageId,omitempty"`
}

type NotificationTemplate struct {
	Type     string `json:"type"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	SMSBody  string `json:"smsBody"`
	HTMLBody string `json:"htmlBody,omitempty"`
}
