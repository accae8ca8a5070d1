package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

type inboundMessageRepository struct {
	db *gorm.DB
}

func NewInboundMessageRepository(db *gorm.DB) interfaces.InboundMessageRepository {
	return &inboundMessageRepository{db: db}
}

func (r *inboundMessageRepository) CreateIfAbsent(ctx context.Context, message *models.InboundMessage) (*models.InboundMessage, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "inboundMessageRepository.CreateIfAbsent")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)

	if message == nil || message.TenantID == "" || message.MessageID == "" {
		return nil, false, coreerr.ErrInvalidInput
	}
	tracing.TagTenant(span, message.TenantID)

	existing, err := r.getByMessageID(ctx, message.TenantID, message.MessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if existing != nil {
		span.SetTag("duplicate", true)
		return existing, false, nil
	}

	message.Status = enum.InboundStatusPending
	err = r.db.WithContext(ctx).Create(message).Error
	if err == nil {
		return message, true, nil
	}
	if !isUniqueViolation(err) {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	// lost the race against a concurrent insert of the same message
	span.SetTag("duplicate", true)
	existing, err = r.getByMessageID(ctx, message.TenantID, message.MessageID)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if existing == nil {
		return nil, false, coreerr.ErrInboundMessageNotFound
	}
	return existing, false, nil
}

func (r *inboundMessageRepository) getByMessageID(ctx context.Context, tenantID, messageID string) (*models.InboundMessage, error) {
	var message models.InboundMessage
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND message_id = ?", tenantID, messageID).
		First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *inboundMessageRepository) GetByID(ctx context.Context, id string) (*models.InboundMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "inboundMessageRepository.GetByID")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	var message models.InboundMessage
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coreerr.ErrInboundMessageNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &message, nil
}

// MarkProcessed moves a pending message to parsed or failed. The update is guarded on the
// current status so a terminal message is never rewritten.
func (r *inboundMessageRepository) MarkProcessed(ctx context.Context, id string, status enum.InboundStatus, extraction models.JSONMap, reason string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "inboundMessageRepository.MarkProcessed")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)
	span.LogKV("status", status.String())

	if !enum.InboundStatusPending.CanTransitionTo(status) {
		return coreerr.ErrInvalidStatusTransition
	}

	result := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Where("id = ? AND parsed_status = ?", id, enum.InboundStatusPending).
		Updates(map[string]interface{}{
			"parsed_status": status,
			"extraction":    extraction,
			"reason":        reason,
			"updated_at":    utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		err := coreerr.ErrInvalidStatusTransition
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *inboundMessageRepository) SetStorageKey(ctx context.Context, id, key string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "inboundMessageRepository.SetStorageKey")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagEntity(span, id)

	err := r.db.WithContext(ctx).
		Model(&models.InboundMessage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"storage_key": key,
			"updated_at":  utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
	}
	return err
}

// ListPending returns pending messages oldest first. An empty tenantID lists across tenants.
func (r *inboundMessageRepository) ListPending(ctx context.Context, tenantID string, limit int) ([]*models.InboundMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "inboundMessageRepository.ListPending")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if limit <= 0 {
		limit = 100
	}

	query := r.db.WithContext(ctx).Where("parsed_status = ?", enum.InboundStatusPending)
	if tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var messages []*models.InboundMessage
	err := query.Order("received_at ASC").Limit(limit).Find(&messages).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogKV("result.count", len(messages))
	return messages, nil
}
