package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/dto"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services/pipeline"
)

const InboundSecretHeader = "X-Inbound-Secret"

type InboundHandler struct {
	log      logger.Logger
	pipeline Pipeline
	cfg      *config.InboundConfig
}

func NewInboundHandler(log logger.Logger, p Pipeline, cfg *config.InboundConfig) *InboundHandler {
	return &InboundHandler{
		log:      log.With(zap.String("component", "inbound")),
		pipeline: p,
		cfg:      cfg,
	}
}

// PushEmail runs one webhook-delivered email through the pipeline and reports the outcome.
func (h *InboundHandler) PushEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "InboundHandler.PushEmail")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.InboundEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, failed("Invalid JSON"))
			return
		}

		secret := req.Secret
		if secret == "" {
			secret = c.GetHeader(InboundSecretHeader)
		}
		if !h.secretMatches(secret) {
			c.JSON(http.StatusUnauthorized, failed("Unauthorized"))
			return
		}

		tenantID := strings.TrimSpace(req.TenantId)
		if tenantID == "" {
			tenantID = utils.GetTenantFromContext(ctx)
		}
		if tenantID == "" {
			tenantID = h.cfg.DefaultTenantID
		}
		tracing.TagTenant(span, tenantID)

		message := pipeline.PushMessage{
			MessageID: req.MessageId,
			Subject:   req.Subject,
			From:      req.From,
			Text:      req.Text,
			HTML:      req.HTML,
		}
		if req.ReceivedAt != nil {
			message.ReceivedAt = req.ReceivedAt.UTC()
		}

		outcome := h.pipeline.ProcessPush(ctx, tenantID, message)
		span.SetTag("outcome", string(outcome.Kind))
		if outcome.Err != nil {
			tracing.TraceErr(span, outcome.Err)
		}
		status, body := h.outcomeResponse(outcome)
		c.JSON(status, body)
	}
}

func (h *InboundHandler) secretMatches(secret string) bool {
	expected := h.cfg.SharedSecret
	if expected == "" || secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(secret), []byte(expected)) == 1
}

func failed(message string) dto.InboundEmailResponse {
	return dto.InboundEmailResponse{Ok: false, Error: message}
}

func (h *InboundHandler) outcomeResponse(outcome dto.Outcome) (int, dto.InboundEmailResponse) {
	switch outcome.Kind {
	case dto.OutcomeCreated, dto.OutcomeDuplicate:
		if outcome.DriverId == "" {
			return http.StatusOK, dto.InboundEmailResponse{Ok: true, Dedupe: utils.ToPtr(true)}
		}
		violations := make([]string, 0, len(outcome.Created))
		for _, category := range outcome.Created {
			violations = append(violations, category.String())
		}
		return http.StatusOK, dto.InboundEmailResponse{
			Ok:           true,
			DriverId:     outcome.DriverId,
			CreatedCount: utils.ToPtr(outcome.CreatedCount()),
			Violations:   violations,
			Dedupe:       utils.ToPtr(outcome.CreatedCount() == 0),
		}
	case dto.OutcomeSenderNotAllowed:
		return http.StatusForbidden, failed("Sender not allowed")
	case dto.OutcomeNoDriverReference:
		return http.StatusUnprocessableEntity, failed("No driver reference detected")
	case dto.OutcomeNoViolations:
		return http.StatusUnprocessableEntity, failed("No violation keywords found")
	case dto.OutcomeDriverNotFound:
		return http.StatusNotFound, failed("Driver not found")
	case dto.OutcomeDriverAmbiguous:
		return http.StatusConflict, failed("Multiple drivers match this reference")
	}

	if errors.Is(outcome.Err, coreerr.ErrTenantMissing) || errors.Is(outcome.Err, coreerr.ErrTenantNotFound) {
		return http.StatusInternalServerError, failed("Default tenant not configured")
	}
	h.log.Errorf("inbound email processing failed: %v", outcome.Err)
	return http.StatusInternalServerError, failed("Failed to process email")
}

// Reprocess runs stored pending messages through the pipeline again.
func (h *InboundHandler) Reprocess() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "InboundHandler.Reprocess")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.ReprocessRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				tracing.TraceErr(span, err)
				c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "Invalid JSON"})
				return
			}
		}
		if req.Limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "limit must not be negative"})
			return
		}
		if req.Limit == 0 {
			req.Limit = h.cfg.ReprocessDefaultLimit
		}
		tenantID := strings.TrimSpace(req.TenantId)
		if tenantID == "" {
			tenantID = utils.GetTenantFromContext(ctx)
		}
		tracing.TagTenant(span, tenantID)

		report, err := h.pipeline.Reprocess(ctx, tenantID, req.Limit)
		if err != nil {
			tracing.TraceErr(span, err)
			h.log.Errorf("reprocess failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "Reprocess failed", "report": report})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "report": report})
	}
}
