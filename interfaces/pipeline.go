package interfaces

import (
	"context"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/models"
)

type MailFetcher interface {
	Fetch(ctx context.Context, tenant *models.Tenant) ([]dto.RawMessage, error)
}

type MessageProcessor interface {
	ProcessFetched(ctx context.Context, tenant *models.Tenant, message dto.RawMessage) dto.Outcome
}
