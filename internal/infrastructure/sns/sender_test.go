package sns

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/blog-otp-auth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func TestSender_SendOTP(t *testing.T) {
	pub := new(mockPublisher)
	s := &Sender{client: pub, topicARN: "arn:aws:sns:us-east-1:123:otp", cfg: &config.Config{OTPTTL: 5 * time.Minute}}

	pub.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return aws.ToString(in.TopicArn) == "arn:aws:sns:us-east-1:123:otp" &&
			aws.ToString(in.MessageAttributes["email"].StringValue) == "a@x.com" &&
			aws.ToString(in.Message) == "Your OTP for login is 123456. It expires in 5 minutes."
	})).Return(&sns.PublishOutput{MessageId: aws.String("m1")}, nil)

	require.NoError(t, s.SendOTP(context.Background(), "a@x.com", "123456"))
	pub.AssertExpectations(t)
}

func TestSender_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	s := &Sender{client: pub, topicARN: "arn", cfg: &config.Config{OTPTTL: 5 * time.Minute}}
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("denied"))

	err := s.SendOTP(context.Background(), "a@x.com", "123456")
	assert.ErrorContains(t, err, "denied")
}
