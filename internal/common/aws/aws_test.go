package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSES struct{ mock.Mock }

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*ses.SendEmailOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockSNS struct{ mock.Mock }

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestEmailSender_Send(t *testing.T) {
	api := new(MockSES)
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "no-reply@example.com" &&
			in.Destination.ToAddresses[0] == "asha@example.com" &&
			aws.ToString(in.Message.Subject.Data) == "Application 10001 received" &&
			in.Message.Body.Html == nil
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil)

	id, err := NewEmailSender(api, "no-reply@example.com").
		Send(context.Background(), "asha@example.com", "Application 10001 received", "body", "")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	api.AssertExpectations(t)
}

func TestEmailSender_Error(t *testing.T) {
	api := new(MockSES)
	api.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewEmailSender(api, "x@example.com").Send(context.Background(), "a@example.com", "s", "b", "<p>b</p>")
	assert.ErrorContains(t, err, "throttled")
}

func TestSMSSender_Send(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		_, hasSender := in.MessageAttributes["AWS.SNS.SMS.SenderID"]
		return aws.ToString(in.PhoneNumber) == "+919876543210" && hasSender
	})).Return(&sns.PublishOutput{MessageId: aws.String("sms-1")}, nil)

	id, err := NewSMSSender(api, "SCHLR").Send(context.Background(), "9876543210", "Your ID is 10001")

	require.NoError(t, err)
	assert.Equal(t, "sms-1", id)
	api.AssertExpectations(t)
}

func TestToE164(t *testing.T) {
	assert.Equal(t, "+919876543210", toE164("9876543210"))
	assert.Equal(t, "+919876543210", toE164("+919876543210"))
	assert.Equal(t, "+919876543210", toE164("919876543210"))
}
