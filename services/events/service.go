package events

import (
	"context"

	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
)

// NewEventPublisher connects to RabbitMQ, or returns a publisher that only logs when no url
// is configured.
func NewEventPublisher(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (interfaces.EventPublisher, error) {
	if rabbitmqURL == "" {
		log.Warn("RABBITMQ_URL not set, violation events will not be published")
		return &noopPublisher{log: log}, nil
	}
	return NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
}

type noopPublisher struct {
	log logger.Logger
}

func (p *noopPublisher) PublishViolationCreated(_ context.Context, violation *models.Violation) error {
	p.log.Debugf("skipping violation.created event for %s", violation.ID)
	return nil
}

func (p *noopPublisher) PublishNotificationFailed(_ context.Context, attempt *models.NotificationAttempt) error {
	p.log.Debugf("skipping notification.failed event for violation %s", attempt.ViolationID)
	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}
