package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/interfaces"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
)

type tenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) interfaces.TenantRepository {
	return &tenantRepository{db: db}
}

// ListTenantsWithMailCredentials returns active tenants that have a provider, username and password.
func (r *tenantRepository) ListTenantsWithMailCredentials(ctx context.Context) ([]*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.ListTenantsWithMailCredentials")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	var tenants []*models.Tenant
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("mail_provider IS NOT NULL AND mail_provider <> ''").
		Where("mailbox_username IS NOT NULL AND mailbox_username <> ''").
		Where("mailbox_password IS NOT NULL AND mailbox_password <> ''").
		Order("id ASC").
		Find(&tenants).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogKV("result.count", len(tenants))
	return tenants, nil
}

func (r *tenantRepository) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "tenantRepository.GetTenant")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	if id == "" {
		return nil, coreerr.ErrInvalidInput
	}

	var tenant models.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coreerr.ErrTenantNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &tenant, nil
}
