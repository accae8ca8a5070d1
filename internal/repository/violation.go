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

type violationRepository struct {
	db *gorm.DB
}

func NewViolationRepository(db *gorm.DB) interfaces.ViolationRepository {
	return &violationRepository{db: db}
}

// FindByKey returns nil when no violation exists for the key.
func (r *violationRepository) FindByKey(ctx context.Context, key models.ViolationKey) (*models.Violation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "violationRepository.FindByKey")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, key.TenantID)
	tracing.LogObjectAsJson(span, "key", key)

	var violation models.Violation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND driver_id = ? AND violation_type = ? AND source_ref = ?",
			key.TenantID, key.DriverID, key.Category, key.SourceRef).
		First(&violation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &violation, nil
}

func (r *violationRepository) FindBySourceRef(ctx context.Context, tenantID, sourceRef string) ([]*models.Violation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "violationRepository.FindBySourceRef")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	var violations []*models.Violation
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_ref = ?", tenantID, sourceRef).
		Order("created_at ASC").
		Find(&violations).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return violations, nil
}

// Insert reports ErrViolationExists when the dedup key is already taken.
func (r *violationRepository) Insert(ctx context.Context, violation *models.Violation) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "violationRepository.Insert")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if violation == nil {
		return coreerr.ErrInvalidInput
	}
	tracing.TagTenant(span, violation.TenantID)

	err := r.db.WithContext(ctx).Create(violation).Error
	if err != nil {
		if isUniqueViolation(err) {
			span.SetTag("duplicate", true)
			return coreerr.ErrViolationExists
		}
		tracing.TraceErr(span, err)
		return err
	}

	tracing.TagEntity(span, violation.ID)
	return nil
}
