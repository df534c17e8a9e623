package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/delivery"
)

// maxBatch is the SNS PublishBatch entry limit.
const maxBatch = 10

// API is the subset of the SNS client used for topic publishing.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	PublishBatch(ctx context.Context, params *sns.PublishBatchInput, optFns ...func(*sns.Options)) (*sns.PublishBatchOutput, error)
}

// Publisher broadcasts written notifications to an SNS topic. Subscribers
// filter on the "type" attribute (payment_reminder, payment_overdue).
type Publisher struct {
	client   API
	topicARN string
	logger   *zap.Logger
}

// NewPublisher creates an SNS publisher for the given topic
func NewPublisher(ctx context.Context, topicARN string, logger *zap.Logger, optFns ...func(*config.LoadOptions) error) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewPublisherWithClient(sns.NewFromConfig(cfg), topicARN, logger), nil
}

// NewPublisherWithEndpoint creates a publisher with custom endpoint (for LocalStack)
func NewPublisherWithEndpoint(ctx context.Context, topicARN, endpoint, region string, logger *zap.Logger) (*Publisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := sns.NewFromConfig(cfg, func(o *sns.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	return NewPublisherWithClient(client, topicARN, logger), nil
}

func NewPublisherWithClient(client API, topicARN string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

func (p *Publisher) Channel() string { return delivery.ChannelTopic }

func (p *Publisher) Accepts(delivery.Message) bool { return p.topicARN != "" }

func (p *Publisher) Send(ctx context.Context, msg delivery.Message) error {
	_, err := p.Publish(ctx, msg)
	return err
}

// Publish sends one notification to the topic
func (p *Publisher) Publish(ctx context.Context, msg delivery.Message) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn:          aws.String(p.topicARN),
		Message:           aws.String(string(payload)),
		MessageAttributes: attributes(msg),
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish to SNS: %w", err)
	}

	p.logger.Debug("notification published to topic",
		zap.String("notification_id", msg.NotificationID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)

	return aws.ToString(result.MessageId), nil
}

// PublishBatch sends up to ten notifications in one call
func (p *Publisher) PublishBatch(ctx context.Context, messages []delivery.Message) ([]string, error) {
	if len(messages) == 0 {
		return nil, nil
	}

	if len(messages) > maxBatch {
		return nil, fmt.Errorf("batch size exceeds SNS limit of %d", maxBatch)
	}

	entries := make([]types.PublishBatchRequestEntry, len(messages))
	for i, msg := range messages {
		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message %d: %w", i, err)
		}

		entries[i] = types.PublishBatchRequestEntry{
			Id:                aws.String(msg.NotificationID),
			Message:           aws.String(string(payload)),
			MessageAttributes: attributes(msg),
		}
	}

	result, err := p.client.PublishBatch(ctx, &sns.PublishBatchInput{
		TopicArn:                   aws.String(p.topicARN),
		PublishBatchRequestEntries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to publish batch to SNS: %w", err)
	}

	if len(result.Failed) > 0 {
		return nil, fmt.Errorf("partial batch failure: %d messages failed", len(result.Failed))
	}

	messageIDs := make([]string, len(result.Successful))
	for i, entry := range result.Successful {
		messageIDs[i] = aws.ToString(entry.MessageId)
	}

	return messageIDs, nil
}

func attributes(msg delivery.Message) map[string]types.MessageAttributeValue {
	return map[string]types.MessageAttributeValue{
		"type": {
			DataType:    aws.String("String"),
			StringValue: aws.String(msg.Type),
		},
		"recipient_id": {
			DataType:    aws.String("String"),
			StringValue: aws.String(msg.RecipientID),
		},
	}
}
