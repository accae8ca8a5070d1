package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	apierrors "github.com/customeros/violationstack/api/errors"
	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services/pipeline"
)

const (
	maxSourceLength    = 64
	maxSourceRefLength = 256
)

type ViolationsHandler struct {
	log           logger.Logger
	pipeline      Pipeline
	defaultTenant string
}

func NewViolationsHandler(log logger.Logger, p Pipeline, defaultTenant string) *ViolationsHandler {
	return &ViolationsHandler{
		log:           log.With(zap.String("component", "violations")),
		pipeline:      p,
		defaultTenant: defaultTenant,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func allowedViolationTypes() []string {
	out := make([]string, 0, len(enum.ViolationCategories))
	for _, c := range enum.ViolationCategories {
		out = append(out, c.String())
	}
	return out
}

// parseOccurredAt accepts RFC 3339 with or without an offset; no offset means UTC.
func parseOccurredAt(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("%q is not a valid datetime", raw)
}

func toManual(r dto.CreateViolationRequest, headerTenant, defaultTenant string) (pipeline.ManualViolation, *apierrors.MultiErrors) {
	validation := apierrors.NewMultiErrors()
	m := pipeline.ManualViolation{
		TenantID:  firstNonEmpty(r.TenantID, r.TenantIDCamel, headerTenant, defaultTenant),
		DriverID:  firstNonEmpty(r.DriverID, r.DriverIDCamel),
		SourceRef: firstNonEmpty(r.SourceRef, r.SourceRefCamel),
	}

	if m.TenantID == "" {
		validation.Add("tenant_id", "tenant_id (or tenantId) is required", coreerr.ErrTenantMissing)
	}
	if m.DriverID == "" {
		validation.Add("driver_id", "driver_id (or driverId) is required", coreerr.ErrInvalidInput)
	}

	rawType := firstNonEmpty(r.ViolationType, r.ViolationTypeCamel)
	if category, ok := enum.ParseViolationCategory(rawType); ok {
		m.Category = category
	} else {
		validation.Add("violation_type", "Invalid violation_type", coreerr.ErrInvalidInput)
	}

	if raw := firstNonEmpty(r.OccurredAt, r.OccurredAtCamel); raw != "" {
		occurredAt, err := parseOccurredAt(raw)
		if err != nil {
			validation.Add("occurred_at", "occurred_at is not a valid datetime", err)
		}
		m.OccurredAt = occurredAt
	}

	if source := strings.ToLower(strings.TrimSpace(r.Source)); source != "" {
		m.Source = enum.ViolationSource(source)
		if len(source) > maxSourceLength || !m.Source.IsValid() {
			validation.Add("source", "source must be one of email, manual, api", coreerr.ErrInvalidInput)
		}
	}
	if len(m.SourceRef) > maxSourceRefLength {
		validation.Add("source_ref", "source_ref is too long", coreerr.ErrInvalidInput)
	}
	return m, validation
}

// Create records a violation against a known driver. A repeat of the same
// (tenant, driver, type, source_ref) answers 409 with the stored record.
func (h *ViolationsHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "ViolationsHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.CreateViolationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}

		manual, validation := toManual(req, utils.GetTenantFromContext(ctx), h.defaultTenant)
		if validation.HasErrors() {
			tracing.TraceErr(span, validation)
			body := gin.H{"error": "Invalid payload", "details": validation.Fields()}
			if _, bad := validation.Errors["violation_type"]; bad {
				body["allowed"] = allowedViolationTypes()
			}
			c.JSON(http.StatusBadRequest, body)
			return
		}
		tracing.TagTenant(span, manual.TenantID)

		violation, created, err := h.pipeline.CreateManual(ctx, manual)
		switch {
		case errors.Is(err, coreerr.ErrDriverNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver not found or not in your tenant"})
			return
		case errors.Is(err, coreerr.ErrInvalidInput), errors.Is(err, coreerr.ErrTenantMissing):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			tracing.TraceErr(span, err)
			h.log.Errorf("violation create failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create violation"})
			return
		}

		if !created {
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Duplicate violation (tenant_id, driver_id, type, source_ref)",
				"violation": violation,
			})
			return
		}
		tracing.TagEntity(span, violation.ID)
		c.JSON(http.StatusCreated, gin.H{"violation": violation})
	}
}
