package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	// PaymentStatusOrphaned marks a pending payment whose application was never written.
	PaymentStatusOrphaned PaymentStatus = "orphaned"
)

// PaymentRecord is the applicant's claim of having paid the online fee.
// Amount always comes from PaymentSettings, never from the client.
type PaymentRecord struct {
	ID             string        `json:"id,omitempty"`
	UserID         string        `json:"userId"`
	ExamMode       ExamMode      `json:"examMode"`
	Amount         float64       `json:"amount"`
	PayerMobile    string        `json:"payerMobile"`
	TransactionRef string        `json:"transactionRef,omitempty"`
	Status         PaymentStatus `json:"status"`
	ApplicationID  string        `json:"applicationId,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// PaymentSettings is the admin-maintained fee configuration document.
type PaymentSettings struct {
	OnlineScholarshipFee  *float64 `json:"onlineScholarshipFee,omitempty"`
	OfflineScholarshipFee *float64 `json:"offlineScholarshipFee,omitempty"`
	QRCodeURL             string   `json:"qrCodeUrl,omitempty"`
	UPIID                 string   `json:"upiId,omitempty"`
	PayeeName             string   `json:"payeeName,omitempty"`
}

// Fee returns the configured fee for an exam mode and whether one is set.
func (s PaymentSettings) Fee(mode ExamMode) (float64, bool) {
	var fee *float64
	switch mode {
	case ExamModeOnline:
		fee = s.OnlineScholarshipFee
	case ExamModeOffline:
		fee = s.OfflineScholarshipFee
	}
	if fee == nil || *fee <= 0 {
		return 0, false
	}
	return *fee, true
}

// Counter is the stored state of a sequential ID counter.
type Counter struct {
	CurrentID int64 `json:"currentId"`
}
