package interfaces

import (
	"context"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/models"
)

type TenantRepository interface {
	ListTenantsWithMailCredentials(ctx context.Context) ([]*models.Tenant, error)
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
}

type DriverRepository interface {
	FindDriversByExternalId(ctx context.Context, tenantID, externalID string) ([]*models.Driver, error)
	FindDriversByVehicleNumber(ctx context.Context, tenantID, vehicleNumber string) ([]*models.Driver, error)
	GetDriver(ctx context.Context, tenantID, driverID string) (*models.Driver, error)
}

type InboundMessageRepository interface {
	// CreateIfAbsent returns the existing row for (tenant, messageId) when one exists.
	CreateIfAbsent(ctx context.Context, message *models.InboundMessage) (*models.InboundMessage, bool, error)
	GetByID(ctx context.Context, id string) (*models.InboundMessage, error)
	MarkProcessed(ctx context.Context, id string, status enum.InboundStatus, extraction models.JSONMap, reason string) error
	SetStorageKey(ctx context.Context, id, key string) error
	ListPending(ctx context.Context, tenantID string, limit int) ([]*models.InboundMessage, error)
}

type ViolationRepository interface {
	FindByKey(ctx context.Context, key models.ViolationKey) (*models.Violation, error)
	FindBySourceRef(ctx context.Context, tenantID, sourceRef string) ([]*models.Violation, error)
	Insert(ctx context.Context, violation *models.Violation) error
}

type NotificationAttemptRepository interface {
	Create(ctx context.Context, attempt *models.NotificationAttempt) error
	ListByViolation(ctx context.Context, violationID string) ([]*models.NotificationAttempt, error)
}
