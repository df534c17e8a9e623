package delivery

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

// SESAPI is the subset of the SES client used for email delivery.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender emails residents via AWS SES
type SESSender struct {
	client SESAPI
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("ses sender requires a from address")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return NewSESSenderWithClient(ses.NewFromConfig(awsCfg), cfg.FromEmail, logger), nil
}

// NewSESSenderWithClient builds a sender around an existing client.
func NewSESSenderWithClient(client SESAPI, from string, logger *zap.Logger) *SESSender {
	return &SESSender{
		client: client,
		from:   from,
		logger: logger,
	}
}

func (s *SESSender) Channel() string { return ChannelEmail }

// Accepts is true when the resident has an email address on file
func (s *SESSender) Accepts(msg Message) bool {
	return hasValue(msg.RecipientEmail)
}

// Send emails the notification title and message as plain text
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	if !s.Accepts(msg) {
		return fmt.Errorf("recipient %s has no email address", msg.RecipientID)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{*msg.RecipientEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Title),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data:    aws.String(msg.Body),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("ses send failed: %w", err)
	}

	s.logger.Info("email sent via SES",
		zap.String("notification_id", msg.NotificationID),
		zap.String("recipient_id", msg.RecipientID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return nil
}
