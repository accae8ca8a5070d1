package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/interfaces"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
)

type notificationAttemptRepository struct {
	db *gorm.DB
}

func NewNotificationAttemptRepository(db *gorm.DB) interfaces.NotificationAttemptRepository {
	return &notificationAttemptRepository{db: db}
}

func (r *notificationAttemptRepository) Create(ctx context.Context, attempt *models.NotificationAttempt) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationAttemptRepository.Create")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if attempt == nil || attempt.ViolationID == "" {
		return coreerr.ErrInvalidInput
	}
	tracing.TagTenant(span, attempt.TenantID)

	if err := r.db.WithContext(ctx).Create(attempt).Error; err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *notificationAttemptRepository) ListByViolation(ctx context.Context, violationID string) ([]*models.NotificationAttempt, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationAttemptRepository.ListByViolation")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, violationID)

	var attempts []*models.NotificationAttempt
	err := r.db.WithContext(ctx).
		Where("violation_id = ?", violationID).
		Order("attempted_at ASC").
		Find(&attempts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return attempts, nil
}
