package notification

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "scholarship-workers/internal/common/errors"
	"scholarship-workers/internal/common/logger"
	"scholarship-workers/internal/models"
	"scholarship-workers/internal/store"
)

type MockEmail struct{ mock.Mock }

func (m *MockEmail) Send(ctx context.Context, to, subject, text, html string) (string, error) {
	args := m.Called(ctx, to, subject, text, html)
	return args.String(0), args.Error(1)
}

type MockSMS struct{ mock.Mock }

func (m *MockSMS) Send(ctx context.Context, phone, message string) (string, error) {
	args := m.Called(ctx, phone, message)
	return args.String(0), args.Error(1)
}

type staticContacts struct {
	principal *models.Principal
	err       error
}

func (s staticContacts) Enrich(_ context.Context, p *models.Principal) (*models.Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := *p
	if out.Email == "" {
		out.Email = s.principal.Email
	}
	if out.PhoneNumber == "" {
		out.PhoneNumber = s.principal.PhoneNumber
	}
	return &out, nil
}

func offlineApplication() models.Application {
	return models.Application{
		ID: "10001", UserID: "u1", Name: "Asha Verma", Mobile: "9876543210", Email: "asha@example.com",
		ExamMode: models.ExamModeOffline, Status: models.ApplicationStatusApproved,
		Center1: "Delhi", Center2: "Noida", Center3: "Agra",
	}
}

func allChannels() Options { return Options{EmailEnabled: true, SMSEnabled: true} }

func TestNotify_OfflineSendsEmailAndSMS(t *testing.T) {
	email, sms := new(MockEmail), new(MockSMS)
	email.On("Send", mock.Anything, "asha@example.com", "Scholarship application 10001 received",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "Dear Asha Verma") &&
				strings.Contains(body, "Preferred centers: Delhi, Noida, Agra") &&
				!strings.Contains(body, "{{")
		}), "").Return("email-1", nil)
	sms.On("Send", mock.Anything, "9876543210",
		"Scholarship application 10001 received (offline). Status: approved.").Return("sms-1", nil)

	n := NewNotifier(store.NewMemoryStore(), email, sms, allChannels(), logger.NewTestLogger(t))
	notes, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, models.Notification{ApplicationID: "10001", RecipientID: "u1", Type: TypeApplicationSubmitted,
		Channel: ChannelEmail, Status: StatusSent, MessageID: "email-1"}, notes[0])
	assert.Equal(t, ChannelSMS, notes[1].Channel)
	assert.Equal(t, "sms-1", notes[1].MessageID)
	email.AssertExpectations(t)
	sms.AssertExpectations(t)
}

func TestNotify_OnlineUsesPaymentTemplate(t *testing.T) {
	email := new(MockEmail)
	email.On("Send", mock.Anything, "asha@example.com", "Scholarship application 10002: payment under review",
		mock.MatchedBy(func(body string) bool {
			return strings.Contains(body, "INR 30.00") && strings.Contains(body, "reference pay-1")
		}), "").Return("email-2", nil)

	app := offlineApplication()
	app.ID, app.ExamMode, app.Status, app.PaymentID = "10002", models.ExamModeOnline, models.ApplicationStatusSubmitted, "pay-1"
	n := NewNotifier(store.NewMemoryStore(), email, nil, allChannels(), logger.NewTestLogger(t))

	notes, err := n.Notify(context.Background(), app, &models.PaymentRecord{ID: "pay-1", Amount: 30})

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, TypePaymentPending, notes[0].Type)
	email.AssertExpectations(t)
}

func TestNotify_PartialFailureIsNotAnError(t *testing.T) {
	email, sms := new(MockEmail), new(MockSMS)
	email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("throttled"))
	sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("sms-1", nil)

	n := NewNotifier(store.NewMemoryStore(), email, sms, allChannels(), logger.NewTestLogger(t))
	notes, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, notes[0].Status)
	assert.Equal(t, StatusSent, notes[1].Status)
}

func TestNotify_AllChannelsFailing(t *testing.T) {
	email := new(MockEmail)
	email.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("ses down"))

	n := NewNotifier(store.NewMemoryStore(), email, nil, Options{EmailEnabled: true}, logger.NewTestLogger(t))
	_, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationSendFailed))
}

func TestNotify_DisabledChannels(t *testing.T) {
	email := new(MockEmail)
	n := NewNotifier(store.NewMemoryStore(), email, nil, Options{}, logger.NewTestLogger(t))

	notes, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, StatusDisabled, notes[0].Status)
	email.AssertNotCalled(t, "Send")
}

func TestNotify_ContactResolverFillsGaps(t *testing.T) {
	sms := new(MockSMS)
	sms.On("Send", mock.Anything, "9000000001", mock.Anything).Return("sms-1", nil)

	app := offlineApplication()
	app.Mobile, app.Email = "", ""
	n := NewNotifier(store.NewMemoryStore(), nil, sms, allChannels(), logger.NewTestLogger(t),
		WithContactResolver(staticContacts{principal: &models.Principal{PhoneNumber: "9000000001"}}))

	notes, err := n.Notify(context.Background(), app, nil)

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ChannelSMS, notes[0].Channel)
	sms.AssertExpectations(t)
}

func TestNotify_ContactResolverErrorKeepsFormDetails(t *testing.T) {
	sms := new(MockSMS)
	sms.On("Send", mock.Anything, "9876543210", mock.Anything).Return("sms-1", nil)

	n := NewNotifier(store.NewMemoryStore(), nil, sms, allChannels(), logger.NewTestLogger(t),
		WithContactResolver(staticContacts{err: errors.New("keycloak down")}))

	_, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.NoError(t, err)
	sms.AssertExpectations(t)
}

func TestNotify_SkipsInvalidEmailAndNormalizesMobile(t *testing.T) {
	email, sms := new(MockEmail), new(MockSMS)
	sms.On("Send", mock.Anything, "9876543210", mock.Anything).Return("sms-1", nil)

	app := offlineApplication()
	app.Email, app.Mobile = "asha-at-example", "+91 98765-43210"
	n := NewNotifier(store.NewMemoryStore(), email, sms, allChannels(), logger.NewTestLogger(t))

	notes, err := n.Notify(context.Background(), app, nil)

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, ChannelSMS, notes[0].Channel)
	email.AssertNotCalled(t, "Send")
	sms.AssertExpectations(t)
}

func TestNotifyApplication_LoadsFromStore(t *testing.T) {
	ctx := context.Background()
	docs := store.NewMemoryStore()
	app := offlineApplication()
	app.ExamMode, app.Status, app.PaymentID = models.ExamModeOnline, models.ApplicationStatusSubmitted, "pay-9"
	require.NoError(t, docs.Set(ctx, models.CollectionApplications, app.ID, app))
	require.NoError(t, docs.Set(ctx, models.CollectionPayments, "pay-9", models.PaymentRecord{Amount: 45, Status: models.PaymentStatusPending}))

	sms := new(MockSMS)
	sms.On("Send", mock.Anything, "9876543210", "Application 10001 submitted. Payment of INR 45.00 is under review.").Return("sms-1", nil)
	n := NewNotifier(docs, nil, sms, Options{SMSEnabled: true}, logger.NewTestLogger(t))

	notes, err := n.NotifyApplication(ctx, "10001")

	require.NoError(t, err)
	assert.Equal(t, TypePaymentPending, notes[0].Type)
	sms.AssertExpectations(t)
}

func TestNotifyApplication_NotFound(t *testing.T) {
	n := NewNotifier(store.NewMemoryStore(), nil, nil, Options{}, logger.NewTestLogger(t))

	_, err := n.NotifyApplication(context.Background(), "99999")

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeApplicationNotFound))
}

func TestRender_DropsUnknownPlaceholders(t *testing.T) {
	assert.Equal(t, "Hello Asha, ID ", render("Hello {{name}}, ID {{missing}}", map[string]interface{}{"name": "Asha"}))
	assert.Equal(t, "", render("", nil))
}

func TestWithTemplates_OverridesDefault(t *testing.T) {
	sms := new(MockSMS)
	sms.On("Send", mock.Anything, mock.Anything, "ID 10001").Return("sms-1", nil)

	n := NewNotifier(store.NewMemoryStore(), nil, sms, Options{SMSEnabled: true}, logger.NewTestLogger(t),
		WithTemplates(models.NotificationTemplate{Type: TypeApplicationSubmitted, Subject: "s", Body: "b", SMSBody: "ID {{applicationId}}"}))

	_, err := n.Notify(context.Background(), offlineApplication(), nil)

	require.NoError(t, err)
	sms.AssertCalled(t, "Send", mock.Anything, "9876543210", "ID 10001")
}
