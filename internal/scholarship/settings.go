package scholarship

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

// SettingsProvider returns the current payment configuration.
type SettingsProvider interface {
	Get(ctx context.Context) (models.PaymentSettings, error)
}

// StoreSettings reads settings/payment. A missing document means nothing is
// configured yet.
type StoreSettings struct {
	docs store.DocumentStore
}

func NewStoreSettings(docs store.DocumentStore) *StoreSettings {
	return &StoreSettings{docs: docs}
}

func (s *StoreSettings) Get(ctx context.Context) (models.PaymentSettings, error) {
	var settings models.PaymentSettings
	err := store.GetAs(ctx, s.docs, models.CollectionSettings, models.PaymentSettingsID, &settings)
	if errors.Is(err, store.ErrNotFound) {
		return models.PaymentSettings{}, nil
	}
	return settings, err
}

const settingsCacheKey = "scholarship:settings:payment"

// CachedSettings fronts another provider with a Redis copy. Redis errors are
// logged and the underlying provider is used.
type CachedSettings struct {
	next   SettingsProvider
	client redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSettings(next SettingsProvider, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedSettings {
	return &CachedSettings{next: next, client: client, ttl: ttl, logger: log}
}

func (c *CachedSettings) Get(ctx context.Context) (models.PaymentSettings, error) {
	raw, err := c.client.Get(ctx, settingsCacheKey).Bytes()
	switch {
	case err == nil:
		var settings models.PaymentSettings
		if jsonErr := json.Unmarshal(raw, &settings); jsonErr == nil {
			return settings, nil
		}
		c.logger.Warn("Discarding unreadable cached payment settings", nil)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Payment settings cache read failed", map[string]interface{}{"error": err.Error()})
	}

	settings, err := c.next.Get(ctx)
	if err != nil {
		return models.PaymentSettings{}, err
	}
	if payload, err := json.Marshal(settings); err == nil {
		if err := c.client.Set(ctx, settingsCacheKey, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("Payment settings cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return settings, nil
}

// PaymentInfo is what the payment step shows the applicant.
type PaymentInfo struct {
	Fee        float64 `json:"fee"`
	Configured bool    `json:"configured"`
	UPIID      string  `json:"upiId,omitempty"`
	PayeeName  string  `json:"payeeName,omitempty"`
	QRCodeURL  string  `json:"qrCodeUrl,omitempty"`
	UPILink    string  `json:"upiLink,omitempty"`
}

// NewPaymentInfo builds the online fee details and UPI deep link.
func NewPaymentInfo(settings models.PaymentSettings) PaymentInfo {
	fee, ok := settings.Fee(models.ExamModeOnline)
	info := PaymentInfo{
		Fee:        fee,
		Configured: ok,
		UPIID:      settings.UPIID,
		PayeeName:  settings.PayeeName,
		QRCodeURL:  settings.QRCodeURL,
	}
	if ok && settings.UPIID != "" {
		info.UPILink = PaymentLink(settings, fee, "Scholarship exam fee")
	}
	return info
}

// PaymentLink renders a upi://pay deep link.
func PaymentLink(settings models.PaymentSettings, amount float64, note string) string {
	q := url.Values{}
	q.Set("pa", settings.UPIID)
	q.Set("pn", settings.PayeeName)
	q.Set("am", strconv.FormatFloat(amount, 'f', 2, 64))
	q.Set("cu", "INR")
	q.Set("tn", note)
	return "upi://pay?" + q.Encode()
}
