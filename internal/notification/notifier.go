// Package notification sends applicants their confirmation email and SMS
// once an application ID has been issued.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/common/validation"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

const (
	TypeApplicationSubmitted = "application_submitted"
	TypePaymentPending       = "payment_pending"

	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

type EmailSender interface {
	Send(ctx context.Context, to, subject, text, html string) (string, error)
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) (string, error)
}

// ContactResolver completes a principal's contact details, e.g. from Keycloak.
type ContactResolver interface {
	Enrich(ctx context.Context, p *models.Principal) (*models.Principal, error)
}

type Options struct {
	EmailEnabled bool
	SMSEnabled   bool
}

type Notifier struct {
	docs      store.DocumentStore
	email     EmailSender
	sms       SMSSender
	contacts  ContactResolver
	templates map[string]models.NotificationTemplate
	opts      Options
	logger    logger.Logger
}

type NotifierOption func(*Notifier)

func WithContactResolver(r ContactResolver) NotifierOption {
	return func(n *Notifier) { n.contacts = r }
}

func WithTemplates(templates ...models.NotificationTemplate) NotifierOption {
	return func(n *Notifier) {
		for _, t := range templates {
			n.templates[t.Type] = t
		}
	}
}

// NewNotifier builds a notifier. A nil sender disables its channel.
func NewNotifier(docs store.DocumentStore, email EmailSender, sms SMSSender, opts Options, log logger.Logger, options ...NotifierOption) *Notifier {
	n := &Notifier{
		docs:      docs,
		email:     email,
		sms:       sms,
		templates: DefaultTemplates(),
		opts:      opts,
		logger:    log.WithFields(map[string]interface{}{"component": "notification"}),
	}
	for _, o := range options {
		o(n)
	}
	return n
}

// DefaultTemplates returns the built-in confirmation messages.
func DefaultTemplates() map[string]models.NotificationTemplate {
	return map[string]models.NotificationTemplate{
		TypeApplicationSubmitted: {
			Type:    TypeApplicationSubmitted,
			Subject: "Scholarship application {{applicationId}} received",
			Body: "Dear {{name}},\n\nYour scholarship application has been received. " +
				"Your application ID is {{applicationId}}.\nExam mode: {{examMode}}\nStatus: {{status}}\n" +
				"Preferred centers: {{centers}}\n\nPlease quote your application ID in all correspondence.",
			SMSBody: "Scholarship application {{applicationId}} received ({{examMode}}). Status: {{status}}.",
		},
		TypePaymentPending: {
			Type:    TypePaymentPending,
			Subject: "Scholarship application {{applicationId}}: payment under review",
			Body: "Dear {{name}},\n\nYour scholarship application {{applicationId}} has been submitted. " +
				"Your payment of INR {{amount}} (reference {{paymentId}}) is being verified. " +
				"We will confirm once it is approved.",
			SMSBody: "Application {{applicationId}} submitted. Payment of INR {{amount}} is under review.",
		},
	}
}

// ApplicationSubmitted sends the confirmation for a just-committed application.
func (n *Notifier) ApplicationSubmitted(ctx context.Context, app models.Application, payment *models.PaymentRecord) error {
	_, err := n.Notify(ctx, app, payment)
	return err
}

// NotifyApplication loads an application and its payment and sends the confirmation.
func (n *Notifier) NotifyApplication(ctx context.Context, applicationID string) ([]models.Notification, error) {
	var app models.Application
	if err := store.GetAs(ctx, n.docs, models.CollectionApplications, applicationID, &app); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NewApplicationNotFoundError(applicationID)
		}
		return nil, apperrors.NewStoreError("get_application", err)
	}
	app.ID = applicationID

	var payment *models.PaymentRecord
	if app.PaymentID != "" {
		var p models.PaymentRecord
		if err := store.GetAs(ctx, n.docs, models.CollectionPayments, app.PaymentID, &p); err == nil {
			p.ID = app.PaymentID
			payment = &p
		} else {
			n.logger.Warn("Payment record not readable", map[string]interface{}{
				"applicationId": applicationID,
				"paymentId":     app.PaymentID,
				"error":         err.Error(),
			})
		}
	}
	return n.Notify(ctx, app, payment)
}

// Notify renders the template for app and delivers it on every enabled
// channel with a known address. It fails only when every attempted
// channel failed.
func (n *Notifier) Notify(ctx context.Context, app models.Application, payment *models.PaymentRecord) ([]models.Notification, error) {
	kind := TypeApplicationSubmitted
	if payment != nil {
		kind = TypePaymentPending
	}
	tmpl, ok := n.templates[kind]
	if !ok {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("no template for %s", kind))
	}

	recipient := n.recipient(ctx, app)
	data := templateData(app, payment, recipient)
	base := models.Notification{ApplicationID: app.ID, RecipientID: app.UserID, Type: kind}

	var (
		out      []models.Notification
		attempts int
		lastErr  error
	)
	if n.opts.EmailEnabled && n.email != nil && recipient.Email != "" {
		attempts++
		note := base
		note.Channel = ChannelEmail
		id, err := n.email.Send(ctx, recipient.Email, render(tmpl.Subject, data), render(tmpl.Body, data), render(tmpl.HTMLBody, data))
		note.Status, note.MessageID = outcome(id, err)
		if err != nil {
			lastErr = apperrors.NewNotificationSendFailedError(ChannelEmail, err)
		}
		out = append(out, note)
	}
	if n.opts.SMSEnabled && n.sms != nil && recipient.PhoneNumber != "" {
		attempts++
		note := base
		note.Channel = ChannelSMS
		body := tmpl.SMSBody
		if body == "" {
			body = tmpl.Body
		}
		id, err := n.sms.Send(ctx, recipient.PhoneNumber, render(body, data))
		note.Status, note.MessageID = outcome(id, err)
		if err != nil {
			lastErr = apperrors.NewNotificationSendFailedError(ChannelSMS, err)
		}
		out = append(out, note)
	}

	if attempts == 0 {
		n.logger.Info("No notification channel available", map[string]interface{}{
			"applicationId": app.ID,
		})
		base.Status = StatusDisabled
		return []models.Notification{base}, nil
	}

	failed := 0
	for _, note := range out {
		if note.Status == StatusFailed {
			failed++
		}
	}
	n.logger.Info("Notification dispatched", map[string]interface{}{
		"applicationId": app.ID,
		"type":          kind,
		"attempted":     attempts,
		"failed":        failed,
	})
	if failed == attempts {
		return out, lastErr
	}
	return out, nil
}

// recipient prefers the contact details typed into the form and falls back
// to the identity provider for anything missing. Unusable addresses are
// dropped so their channel is skipped.
func (n *Notifier) recipient(ctx context.Context, app models.Application) *models.Principal {
	p := &models.Principal{ID: app.UserID, DisplayName: app.Name, Email: app.Email, PhoneNumber: app.Mobile}
	if n.contacts != nil && app.UserID != "" {
		enriched, err := n.contacts.Enrich(ctx, p)
		if err != nil {
			n.logger.Warn("Contact lookup failed", map[string]interface{}{
				"userId": app.UserID,
				"error":  err.Error(),
			})
		} else {
			p = enriched
		}
	}
	return n.usable(app.ID, p)
}

func (n *Notifier) usable(applicationID string, p *models.Principal) *models.Principal {
	out := *p
	if out.Email != "" && !validation.ValidateEmail(out.Email) {
		n.logger.Warn("Skipping invalid email address", map[string]interface{}{"applicationId": applicationID})
		out.Email = ""
	}
	if out.PhoneNumber != "" {
		if validation.ValidateMobile(out.PhoneNumber) {
			out.PhoneNumber = validation.NormalizeMobile(out.PhoneNumber)
		} else {
			n.logger.Warn("Skipping invalid mobile number", map[string]interface{}{"applicationId": applicationID})
			out.PhoneNumber = ""
		}
	}
	return &out
}

func outcome(messageID string, err error) (string, string) {
	if err != nil {
		return StatusFailed, ""
	}
	return StatusSent, messageID
}

func templateData(app models.Application, payment *models.PaymentRecord, recipient *models.Principal) map[string]interface{} {
	data := map[string]interface{}{
		"applicationId": app.ID,
		"name":          recipient.DisplayName,
		"examMode":      string(app.ExamMode),
		"status":        string(app.Status),
		"centers":       strings.Join(app.Centers(), ", "),
	}
	if payment != nil {
		data["paymentId"] = payment.ID
		data["amount"] = fmt.Sprintf("%.2f", payment.Amount)
	}
	return data
}

// render replaces {{key}} placeholders and drops any left unresolved.
func render(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
