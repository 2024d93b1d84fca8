package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lumiere-jewels/service-coupon/internal/application"
	userDomain "github.com/lumiere-jewels/service-coupon/internal/domain/user"
	"github.com/lumiere-jewels/service-coupon/pkg/domain"
	"github.com/lumiere-jewels/service-coupon/pkg/events"
	"github.com/lumiere-jewels/service-coupon/pkg/kafka"
)

// DiscountIssuer issues per-user coupons from a discount.
type DiscountIssuer interface {
	AssignUsersToDiscountCoupons(ctx context.Context, caller *userDomain.Identity, discountID uuid.UUID, userIDs []uuid.UUID) (*application.DiscountIssueDTO, error)
}

// DiscountEventConsumer listens to discount events and issues coupons for
// the users they name.
type DiscountEventConsumer struct {
	consumer *kafka.Consumer
	issuer   DiscountIssuer
	logger   *zap.Logger
}

// NewDiscountEventConsumer creates a new consumer for discount events.
func NewDiscountEventConsumer(
	brokers []string,
	groupID string,
	issuer DiscountIssuer,
	logger *zap.Logger,
) *DiscountEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, events.TopicDiscountEvents, logger)
	return &DiscountEventConsumer{
		consumer: consumer,
		issuer:   issuer,
		logger:   logger,
	}
}

// Start begins consuming discount events. It blocks until the context is cancelled.
func (c *DiscountEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// handleMessage routes incoming Kafka messages to the appropriate handler.
func (c *DiscountEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from discount topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil
	}

	c.logger.Info("received discount event",
		zap.String("type", cloudEvent.Type),
		zap.String("id", cloudEvent.ID),
	)

	switch {
	case strings.EqualFold(cloudEvent.Type, events.DiscountUsersAssigned):
		return c.handleUsersAssigned(ctx, cloudEvent)

	default:
		c.logger.Debug("ignoring unhandled discount event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

// handleUsersAssigned processes a DiscountUsersAssignedEvent. Requests that
// can never succeed are logged and dropped; other errors are returned so the
// message is retried.
func (c *DiscountEventConsumer) handleUsersAssigned(ctx context.Context, ce kafka.CloudEvent) error {
	var event events.DiscountUsersAssignedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse DiscountUsersAssignedEvent data", zap.Error(err))
		return nil
	}

	result, err := c.issuer.AssignUsersToDiscountCoupons(ctx, nil, event.DiscountID, event.UserIDs)
	if err != nil {
		if domain.IsNotFound(err) || domain.IsValidation(err) {
			c.logger.Warn("dropping discount event",
				zap.String("discount_id", event.DiscountID.String()),
				zap.String("reason", domain.MessageOf(err)),
			)
			return nil
		}
		return err
	}

	c.logger.Info("issued coupons from discount event",
		zap.String("discount_id", event.DiscountID.String()),
		zap.Int("coupons", len(result.Coupons)),
	)
	return nil
}

// Close closes the underlying Kafka consumer.
func (c *DiscountEventConsumer) Close() error {
	return c.consumer.Close()
}
