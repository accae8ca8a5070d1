package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/interfaces"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
)

// candidateLimit bounds lookups; two rows already prove ambiguity.
const candidateLimit = 3

type driverRepository struct {
	db *gorm.DB
}

func NewDriverRepository(db *gorm.DB) interfaces.DriverRepository {
	return &driverRepository{db: db}
}

func (r *driverRepository) FindDriversByExternalId(ctx context.Context, tenantID, externalID string) ([]*models.Driver, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "driverRepository.FindDriversByExternalId")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("externalId", externalID)

	return r.findBy(ctx, span, tenantID, "external_driver_id", externalID)
}

func (r *driverRepository) FindDriversByVehicleNumber(ctx context.Context, tenantID, vehicleNumber string) ([]*models.Driver, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "driverRepository.FindDriversByVehicleNumber")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("vehicleNumber", vehicleNumber)

	return r.findBy(ctx, span, tenantID, "vehicle_number", vehicleNumber)
}

func (r *driverRepository) findBy(ctx context.Context, span opentracing.Span, tenantID, column, value string) ([]*models.Driver, error) {
	value = strings.ToUpper(strings.TrimSpace(value))
	if tenantID == "" || value == "" {
		return nil, coreerr.ErrInvalidInput
	}

	var drivers []*models.Driver
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("UPPER("+column+") = ?", value).
		Order("id ASC").
		Limit(candidateLimit).
		Find(&drivers).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogKV("result.count", len(drivers))
	return drivers, nil
}

func (r *driverRepository) GetDriver(ctx context.Context, tenantID, driverID string) (*models.Driver, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "driverRepository.GetDriver")
	defer span.Finish()
	tracing.SetDefaultPostgresRepositorySpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	tracing.TagEntity(span, driverID)

	var driver models.Driver
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, driverID).
		First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, coreerr.ErrDriverNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &driver, nil
}
