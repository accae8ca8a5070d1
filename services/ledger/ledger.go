package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

type Entry struct {
	TenantID         string
	DriverID         string
	Category         enum.ViolationCategory
	Source           enum.ViolationSource
	Status           enum.ViolationStatus
	SourceRef        string
	OccurredAt       time.Time
	RawExcerpt       string
	InboundMessageID *string
}

func (e Entry) Key() models.ViolationKey {
	return models.ViolationKey{
		TenantID:  e.TenantID,
		DriverID:  e.DriverID,
		Category:  e.Category,
		SourceRef: e.SourceRef,
	}
}

func (e Entry) validate() error {
	switch {
	case e.TenantID == "":
		return coreerr.ErrTenantMissing
	case e.DriverID == "":
		return errors.Wrap(coreerr.ErrInvalidInput, "driver id is required")
	case !e.Category.IsValid():
		return errors.Wrapf(coreerr.ErrInvalidInput, "unknown violation type %q", e.Category)
	case strings.TrimSpace(e.SourceRef) == "":
		return errors.Wrap(coreerr.ErrInvalidInput, "source reference is required")
	}
	return nil
}

// Ledger is the only writer of violation records.
type Ledger struct {
	log        logger.Logger
	violations interfaces.ViolationRepository
}

func New(log logger.Logger, violations interfaces.ViolationRepository) *Ledger {
	return &Ledger{log: log, violations: violations}
}

// CreateIfAbsent stores the entry unless a record with the same dedup key exists. A unique
// constraint hit on insert means a concurrent writer won; the stored record is returned with
// created=false.
func (l *Ledger) CreateIfAbsent(ctx context.Context, entry Entry) (*models.Violation, bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Ledger.CreateIfAbsent")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTenant(span, entry.TenantID)
	tracing.LogObjectAsJson(span, "key", entry.Key())

	if err := entry.validate(); err != nil {
		tracing.TraceErr(span, err)
		return nil, false, err
	}

	existing, err := l.violations.FindByKey(ctx, entry.Key())
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrap(err, "find violation by key")
	}
	if existing != nil {
		span.SetTag("created", false)
		return existing, false, nil
	}

	source := entry.Source
	if source == "" {
		source = enum.ViolationSourceEmail
	}
	status := entry.Status
	if status == "" {
		status = enum.ViolationStatusPendingMatch
	}
	occurredAt := entry.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = utils.Now()
	}

	violation := &models.Violation{
		TenantID:         entry.TenantID,
		DriverID:         entry.DriverID,
		Category:         entry.Category,
		SourceRef:        entry.SourceRef,
		Source:           source,
		Status:           status,
		OccurredAt:       occurredAt.UTC(),
		RawExcerpt:       entry.RawExcerpt,
		InboundMessageID: entry.InboundMessageID,
	}

	err = l.violations.Insert(ctx, violation)
	if err == nil {
		span.SetTag("created", true)
		tracing.TagEntity(span, violation.ID)
		return violation, true, nil
	}
	if !errors.Is(err, coreerr.ErrViolationExists) {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrap(err, "insert violation")
	}

	l.log.Debugf("violation insert lost race for tenant %s driver %s type %s ref %s",
		entry.TenantID, entry.DriverID, entry.Category, entry.SourceRef)
	existing, err = l.violations.FindByKey(ctx, entry.Key())
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, false, errors.Wrap(err, "reload violation after conflict")
	}
	if existing == nil {
		err = errors.Wrap(coreerr.ErrViolationExists, "conflicting violation not visible")
		tracing.TraceErr(span, err)
		return nil, false, err
	}
	span.SetTag("created", false)
	return existing, false, nil
}

func (l *Ledger) FindBySourceRef(ctx context.Context, tenantID, sourceRef string) ([]*models.Violation, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Ledger.FindBySourceRef")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTenant(span, tenantID)

	if tenantID == "" {
		return nil, coreerr.ErrTenantMissing
	}
	violations, err := l.violations.FindBySourceRef(ctx, tenantID, sourceRef)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "find violations by source ref")
	}
	return violations, nil
}
