package handlers

import (
	"context"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/services/pipeline"
)

// Pipeline is the part of the violation pipeline exposed over HTTP.
type Pipeline interface {
	ProcessPush(ctx context.Context, tenantID string, message pipeline.PushMessage) dto.Outcome
	CreateManual(ctx context.Context, m pipeline.ManualViolation) (*models.Violation, bool, error)
	Reprocess(ctx context.Context, tenantID string, limit int) (pipeline.ReprocessReport, error)
}

type APIHandlers struct {
	Inbound    *InboundHandler
	Violations *ViolationsHandler
}

func InitHandlers(log logger.Logger, p Pipeline, cfg *config.InboundConfig) *APIHandlers {
	return &APIHandlers{
		Inbound:    NewInboundHandler(log, p, cfg),
		Violations: NewViolationsHandler(log, p, cfg.DefaultTenantID),
	}
}
