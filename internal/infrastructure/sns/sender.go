// Package sns hands OTP deliveries to an SNS topic. A subscriber on the
// topic owns the actual email send; the message carries the recipient as
// an attribute so subscription filter policies can route on it.
package sns

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/blog-otp-auth/internal/config"
	"github.com/blog-otp-auth/internal/infrastructure/awscfg"
	"github.com/blog-otp-auth/internal/infrastructure/notify"
)

type publisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Sender struct {
	client   publisher
	topicARN string
	cfg      *config.Config
}

func NewSender(ctx context.Context, cfg *config.Config) (*Sender, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	opts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &Sender{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.SNSTopicARN, cfg: cfg}, nil
}

func (s *Sender) SendOTP(ctx context.Context, email, code string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(notify.Subject),
		Message:  aws.String(notify.PlainText(code, s.cfg.OTPTTL)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"email": {DataType: aws.String("String"), StringValue: aws.String(email)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
