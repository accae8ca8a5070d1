// Package testutil holds in-memory repository implementations used by service and handler tests.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/repository"
	"github.com/customeros/violationstack/internal/utils"
)

// MemStore enforces the same uniqueness constraints as the postgres schema.
type MemStore struct {
	mu         sync.Mutex
	tenants    map[string]*models.Tenant
	drivers    map[string]*models.Driver
	inbound    map[string]*models.InboundMessage
	violations map[string]*models.Violation
	attempts   []*models.NotificationAttempt

	// InsertHook runs inside Insert before the uniqueness check, outside the lock.
	InsertHook func(v *models.Violation)
}

func NewMemStore() *MemStore {
	return &MemStore{
		tenants:    map[string]*models.Tenant{},
		drivers:    map[string]*models.Driver{},
		inbound:    map[string]*models.InboundMessage{},
		violations: map[string]*models.Violation{},
	}
}

func (s *MemStore) Repositories() *repository.Repositories {
	return &repository.Repositories{
		TenantRepository:              &tenantRepo{s},
		DriverRepository:              &driverRepo{s},
		InboundMessageRepository:      &inboundRepo{s},
		ViolationRepository:           &violationRepo{s},
		NotificationAttemptRepository: &attemptRepo{s},
	}
}

func (s *MemStore) AddTenant(t *models.Tenant) *models.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = t.BeforeCreate(nil)
	s.tenants[t.ID] = t
	return t
}

func (s *MemStore) AddDriver(d *models.Driver) *models.Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = d.BeforeCreate(nil)
	s.drivers[d.ID] = d
	return d
}

func (s *MemStore) Violations() []*models.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Violation, 0, len(s.violations))
	for _, v := range s.violations {
		copied := *v
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) InboundMessages() []*models.InboundMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.InboundMessage, 0, len(s.inbound))
	for _, m := range s.inbound {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

func (s *MemStore) Attempts() []*models.NotificationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.NotificationAttempt(nil), s.attempts...)
}

type tenantRepo struct{ s *MemStore }

func (r *tenantRepo) ListTenantsWithMailCredentials(_ context.Context) ([]*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Tenant
	for _, t := range r.s.tenants {
		if t.Active && t.HasMailCredentials() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *tenantRepo) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, coreerr.ErrTenantNotFound
	}
	return t, nil
}

type driverRepo struct{ s *MemStore }

func (r *driverRepo) FindDriversByExternalId(_ context.Context, tenantID, externalID string) ([]*models.Driver, error) {
	return r.find(tenantID, func(d *models.Driver) bool {
		return strings.EqualFold(d.ExternalDriverID, strings.TrimSpace(externalID))
	}), nil
}

func (r *driverRepo) FindDriversByVehicleNumber(_ context.Context, tenantID, vehicleNumber string) ([]*models.Driver, error) {
	return r.find(tenantID, func(d *models.Driver) bool {
		return d.VehicleNumber != nil && strings.EqualFold(*d.VehicleNumber, strings.TrimSpace(vehicleNumber))
	}), nil
}

func (r *driverRepo) find(tenantID string, match func(d *models.Driver) bool) []*models.Driver {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*models.Driver{}
	for _, d := range r.s.drivers {
		if d.TenantID == tenantID && match(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *driverRepo) GetDriver(_ context.Context, tenantID, driverID string) (*models.Driver, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.drivers[driverID]
	if !ok || d.TenantID != tenantID {
		return nil, coreerr.ErrDriverNotFound
	}
	return d, nil
}

type inboundRepo struct{ s *MemStore }

func (r *inboundRepo) CreateIfAbsent(_ context.Context, message *models.InboundMessage) (*models.InboundMessage, bool, error) {
	if message == nil || message.TenantID == "" || message.MessageID == "" {
		return nil, false, coreerr.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.inbound {
		if m.TenantID == message.TenantID && m.MessageID == message.MessageID {
			copied := *m
			return &copied, false, nil
		}
	}
	_ = message.BeforeCreate(nil)
	message.Status = enum.InboundStatusPending
	stored := *message
	r.s.inbound[message.ID] = &stored
	return message, true, nil
}

func (r *inboundRepo) GetByID(_ context.Context, id string) (*models.InboundMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.inbound[id]
	if !ok {
		return nil, coreerr.ErrInboundMessageNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *inboundRepo) MarkProcessed(_ context.Context, id string, status enum.InboundStatus, extraction models.JSONMap, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.inbound[id]
	if !ok {
		return coreerr.ErrInboundMessageNotFound
	}
	if !m.Status.CanTransitionTo(status) {
		return coreerr.ErrInvalidStatusTransition
	}
	m.Status = status
	m.Extraction = extraction
	m.Reason = reason
	m.UpdatedAt = utils.Now()
	return nil
}

func (r *inboundRepo) SetStorageKey(_ context.Context, id, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.inbound[id]
	if !ok {
		return coreerr.ErrInboundMessageNotFound
	}
	m.StorageKey = key
	return nil
}

func (r *inboundRepo) ListPending(_ context.Context, tenantID string, limit int) ([]*models.InboundMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.InboundMessage
	for _, m := range r.s.inbound {
		if m.Status != enum.InboundStatusPending {
			continue
		}
		if tenantID != "" && m.TenantID != tenantID {
			continue
		}
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type violationRepo struct{ s *MemStore }

func (r *violationRepo) FindByKey(_ context.Context, key models.ViolationKey) (*models.Violation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.violations {
		if v.Key() == key {
			return v, nil
		}
	}
	return nil, nil
}

func (r *violationRepo) FindBySourceRef(_ context.Context, tenantID, sourceRef string) ([]*models.Violation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Violation
	for _, v := range r.s.violations {
		if v.TenantID == tenantID && v.SourceRef == sourceRef {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *violationRepo) Insert(_ context.Context, violation *models.Violation) error {
	if violation == nil {
		return coreerr.ErrInvalidInput
	}
	if r.s.InsertHook != nil {
		r.s.InsertHook(violation)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.violations {
		if v.Key() == violation.Key() {
			return coreerr.ErrViolationExists
		}
	}
	_ = violation.BeforeCreate(nil)
	violation.CreatedAt = utils.Now()
	violation.UpdatedAt = violation.CreatedAt
	r.s.violations[violation.ID] = violation
	return nil
}

type attemptRepo struct{ s *MemStore }

func (r *attemptRepo) Create(_ context.Context, attempt *models.NotificationAttempt) error {
	if attempt == nil || attempt.ViolationID == "" {
		return coreerr.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_ = attempt.BeforeCreate(nil)
	r.s.attempts = append(r.s.attempts, attempt)
	return nil
}

func (r *attemptRepo) ListByViolation(_ context.Context, violationID string) ([]*models.NotificationAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.NotificationAttempt
	for _, a := range r.s.attempts {
		if a.ViolationID == violationID {
			out = append(out, a)
		}
	}
	return out, nil
}
