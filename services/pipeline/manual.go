package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services/ledger"
)

// ManualViolation is a violation reported directly through the API rather than by email.
type ManualViolation struct {
	TenantID   string
	DriverID   string
	Category   enum.ViolationCategory
	OccurredAt time.Time
	Source     enum.ViolationSource
	SourceRef  string
}

// CreateManual records a violation against a known driver of the tenant. Manual records start
// as pending_match. A duplicate returns the existing record with created=false.
func (p *Pipeline) CreateManual(ctx context.Context, m ManualViolation) (*models.Violation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.CreateManual")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, m.TenantID)
	tracing.LogObjectAsJson(span, "input", m)

	if strings.TrimSpace(m.TenantID) == "" {
		return nil, false, coreerr.ErrTenantMissing
	}
	if !m.Category.IsValid() {
		return nil, false, errors.Wrapf(coreerr.ErrInvalidInput, "unknown violation type %q", m.Category)
	}
	source := m.Source
	if source == "" {
		source = enum.ViolationSourceAPI
	}
	if !source.IsValid() {
		return nil, false, errors.Wrapf(coreerr.ErrInvalidInput, "unknown source %q", source)
	}

	driver, err := p.repos.DriverRepository.GetDriver(ctx, m.TenantID, strings.TrimSpace(m.DriverID))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	sourceRef := strings.TrimSpace(m.SourceRef)
	if sourceRef == "" {
		sourceRef = "manual:" + utils.GenerateNanoIDWithPrefix("", 21)
	}

	violation, created, err := p.ledger.CreateIfAbsent(ctx, ledger.Entry{
		TenantID:   m.TenantID,
		DriverID:   driver.ID,
		Category:   m.Category,
		Source:     source,
		Status:     enum.ViolationStatusPendingMatch,
		SourceRef:  sourceRef,
		OccurredAt: m.OccurredAt,
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	if created {
		violationsCreated.WithLabelValues(m.Category.String()).Inc()
		p.publishCreated(ctx, violation)
	}
	span.SetTag("created", created)
	return violation, created, nil
}
