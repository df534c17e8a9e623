package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/delivery"
)

// API is the subset of the SQS client the producer needs.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
}

// Event is the body enqueued for every written reminder notification.
// Downstream consumers (billing, analytics) read it off the queue.
type Event struct {
	EventType string           `json:"event_type"`
	Message   delivery.Message `json:"notification"`
	EmittedAt int64            `json:"emitted_at"`
}

const eventNotificationCreated = "notification.created"

// Producer sends notification events to SQS.
type Producer struct {
	client   API
	queueURL string
	logger   *zap.Logger
	now      func() time.Time
}

// NewProducer creates a new SQS producer.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("sqs producer initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return NewProducerWithClient(sqs.NewFromConfig(awsCfg), cfg.QueueURL, logger), nil
}

func NewProducerWithClient(client API, queueURL string, logger *zap.Logger) *Producer {
	return &Producer{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		now:      time.Now,
	}
}

func (p *Producer) Channel() string { return delivery.ChannelQueue }

func (p *Producer) Accepts(delivery.Message) bool { return p.queueURL != "" }

// Send enqueues msg. The notification type travels as a message attribute
// so consumers can filter without decoding the body.
func (p *Producer) Send(ctx context.Context, msg delivery.Message) error {
	_, err := p.Enqueue(ctx, msg)
	return err
}

// Enqueue sends one event and returns the SQS message ID.
func (p *Producer) Enqueue(ctx context.Context, msg delivery.Message) (string, error) {
	body, err := json.Marshal(Event{
		EventType: eventNotificationCreated,
		Message:   msg,
		EmittedAt: p.now().UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.Type),
			},
		},
	}

	result, err := p.client.SendMessage(ctx, input)
	if err != nil {
		p.logger.Error("failed to send message to sqs",
			zap.Error(err),
			zap.String("notification_id", msg.NotificationID),
		)
		return "", fmt.Errorf("sqs send failed: %w", err)
	}

	return aws.ToString(result.MessageId), nil
}
