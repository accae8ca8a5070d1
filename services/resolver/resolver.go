package resolver

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/interfaces"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
)

type Outcome string

const (
	Resolved  Outcome = "resolved"
	NotFound  Outcome = "not_found"
	Ambiguous Outcome = "ambiguous"
)

type Resolution struct {
	Outcome Outcome
	Driver  *models.Driver
	// MatchedBy is "external_id" or "vehicle_number" when resolved or ambiguous.
	MatchedBy  string
	Candidates int
}

func (r Resolution) IsResolved() bool {
	return r.Outcome == Resolved && r.Driver != nil
}

type Resolver struct {
	log     logger.Logger
	drivers interfaces.DriverRepository
}

func New(log logger.Logger, drivers interfaces.DriverRepository) *Resolver {
	return &Resolver{log: log, drivers: drivers}
}

// Resolve looks up the external id first and the vehicle number second. Ambiguity on the
// first key is final; it never falls through to the vehicle number.
func (r *Resolver) Resolve(ctx context.Context, tenantID, externalID, vehicleNumber string) (Resolution, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Resolver.Resolve")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("externalId", externalID, "vehicleNumber", vehicleNumber)

	if tenantID == "" {
		return Resolution{}, coreerr.ErrTenantMissing
	}

	externalID = strings.TrimSpace(externalID)
	vehicleNumber = strings.TrimSpace(vehicleNumber)

	if externalID != "" {
		drivers, err := r.drivers.FindDriversByExternalId(ctx, tenantID, externalID)
		if err != nil {
			tracing.TraceErr(span, err)
			return Resolution{}, errors.Wrap(err, "find drivers by external id")
		}
		if res, done := decide(drivers, "external_id"); done {
			r.logResolution(tenantID, externalID, res)
			span.SetTag("outcome", string(res.Outcome))
			return res, nil
		}
	}

	if vehicleNumber != "" {
		drivers, err := r.drivers.FindDriversByVehicleNumber(ctx, tenantID, vehicleNumber)
		if err != nil {
			tracing.TraceErr(span, err)
			return Resolution{}, errors.Wrap(err, "find drivers by vehicle number")
		}
		if res, done := decide(drivers, "vehicle_number"); done {
			r.logResolution(tenantID, vehicleNumber, res)
			span.SetTag("outcome", string(res.Outcome))
			return res, nil
		}
	}

	span.SetTag("outcome", string(NotFound))
	return Resolution{Outcome: NotFound}, nil
}

func decide(drivers []*models.Driver, matchedBy string) (Resolution, bool) {
	switch len(drivers) {
	case 0:
		return Resolution{}, false
	case 1:
		return Resolution{Outcome: Resolved, Driver: drivers[0], MatchedBy: matchedBy, Candidates: 1}, true
	default:
		return Resolution{Outcome: Ambiguous, MatchedBy: matchedBy, Candidates: len(drivers)}, true
	}
}

func (r *Resolver) logResolution(tenantID, key string, res Resolution) {
	if res.Outcome == Ambiguous {
		r.log.Warnf("ambiguous driver match for tenant %s on %s %q: %d candidates", tenantID, res.MatchedBy, key, res.Candidates)
	}
}
