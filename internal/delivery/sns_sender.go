package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// SNSAPI is the subset of the SNS client used for SMS delivery.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends SMS notifications via AWS SNS
type SNSSender struct {
	client SNSAPI
	logger *zap.Logger
}

type SNSConfig struct {
	Region string
}

// NewSNSSender creates a new SNS sender for SMS notifications
func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}
	return NewSNSSenderWithClient(sns.NewFromConfig(awsCfg), logger), nil
}

func NewSNSSenderWithClient(client SNSAPI, logger *zap.Logger) *SNSSender {
	return &SNSSender{
		client: client,
		logger: logger,
	}
}

func (s *SNSSender) Channel() string { return ChannelSMS }

// Accepts is true when the resident has a phone number on file
func (s *SNSSender) Accepts(msg Message) bool {
	return hasValue(msg.RecipientPhone)
}

// Send texts the notification message. Reminders are transactional, so the
// SMS type attribute is set accordingly.
func (s *SNSSender) Send(ctx context.Context, msg Message) error {
	if !s.Accepts(msg) {
		return fmt.Errorf("recipient %s has no phone number", msg.RecipientID)
	}

	input := &sns.PublishInput{
		PhoneNumber: msg.RecipientPhone,
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("sns publish failed: %w", err)
	}

	s.logger.Info("SMS sent via SNS",
		zap.String("notification_id", msg.NotificationID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}
