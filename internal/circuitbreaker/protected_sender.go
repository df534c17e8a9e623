package circuitbreaker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lalithlochan/rentals/internal/delivery"
)

// ProtectedSender wraps a delivery.Sender with a CircuitBreaker.
// While the circuit is open, Send fails fast without touching the channel.
type ProtectedSender struct {
	sender  delivery.Sender
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewProtectedSender wraps a sender with circuit breaker protection.
func NewProtectedSender(sender delivery.Sender, breaker *CircuitBreaker, logger *zap.Logger) *ProtectedSender {
	return &ProtectedSender{
		sender:  sender,
		breaker: breaker,
		logger:  logger,
	}
}

// Wrap guards sender with a breaker named after its channel.
func Wrap(sender delivery.Sender, logger *zap.Logger) *ProtectedSender {
	return NewProtectedSender(sender, New(DefaultConfig(sender.Channel()), logger), logger)
}

func (p *ProtectedSender) Channel() string { return p.sender.Channel() }

// Accepts delegates to the underlying sender.
func (p *ProtectedSender) Accepts(msg delivery.Message) bool {
	return p.sender.Accepts(msg)
}

// Send attempts delivery through the circuit breaker.
// If the circuit is open, returns ErrCircuitOpen immediately.
func (p *ProtectedSender) Send(ctx context.Context, msg delivery.Message) error {
	if !p.breaker.Allow() {
		p.logger.Debug("delivery skipped, channel breaker open",
			zap.String("channel", p.breaker.cfg.Channel),
			zap.String("notification_id", msg.NotificationID),
		)
		return fmt.Errorf("%w: %s sender unavailable", ErrCircuitOpen, p.breaker.cfg.Channel)
	}

	err := p.sender.Send(ctx, msg)
	if err != nil {
		p.breaker.RecordFailure()
		return err
	}

	p.breaker.RecordSuccess()
	return nil
}

// Breaker returns the underlying circuit breaker for monitoring.
func (p *ProtectedSender) Breaker() *CircuitBreaker {
	return p.breaker
}
