package interfaces

import (
	"context"

	"github.com/customeros/violationstack/internal/models"
)

type EventPublisher interface {
	PublishViolationCreated(ctx context.Context, violation *models.Violation) error
	PublishNotificationFailed(ctx context.Context, attempt *models.NotificationAttempt) error
	Close() error
}
