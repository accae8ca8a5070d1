// Package scheduler drives the polling cycle: every eligible tenant's mailbox is fetched and each
// message is run through the pipeline, with one session per tenant and a global session cap.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

const (
	ModeTimer = "timer"
	ModeTight = "tight"
	ModeCron  = "cron"

	defaultInterval      = 15 * time.Minute
	defaultTightInterval = 30 * time.Second
	defaultMaxSessions   = 4
	defaultWorkers       = 8
	defaultTenantTimeout = 2 * time.Minute

	// how long a session past its deadline may still hand back an already collected batch
	fetchSettleGrace = 250 * time.Millisecond
)

type Scheduler struct {
	log       logger.Logger
	tenants   interfaces.TenantRepository
	fetcher   interfaces.MailFetcher
	processor interfaces.MessageProcessor

	mode          string
	interval      time.Duration
	workers       int
	tenantTimeout time.Duration
	sessions      *semaphore.Weighted

	locksMu     sync.Mutex
	tenantLocks map[string]*sync.Mutex

	running atomic.Bool
	cycles  atomic.Int64

	statusMu  sync.RWMutex
	lastCycle *CycleReport
	statuses  map[string]TenantStatus
}

func New(log logger.Logger, tenants interfaces.TenantRepository, fetcher interfaces.MailFetcher, processor interfaces.MessageProcessor, cfg *config.SchedulerConfig) *Scheduler {
	s := &Scheduler{
		log:           log,
		tenants:       tenants,
		fetcher:       fetcher,
		processor:     processor,
		mode:          cfg.Mode,
		workers:       cfg.Workers,
		tenantTimeout: cfg.PerTenantTimeout,
		tenantLocks:   map[string]*sync.Mutex{},
		statuses:      map[string]TenantStatus{},
	}
	if s.mode == "" {
		s.mode = ModeTimer
	}

	s.interval = cfg.Interval
	if s.mode == ModeTight {
		s.interval = cfg.TightInterval
		if s.interval <= 0 {
			s.interval = defaultTightInterval
		}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	if s.workers <= 0 {
		s.workers = defaultWorkers
	}
	if s.tenantTimeout <= 0 {
		s.tenantTimeout = defaultTenantTimeout
	}
	maxSessions := cfg.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	s.sessions = semaphore.NewWeighted(int64(maxSessions))
	return s
}

func (s *Scheduler) Mode() string {
	return s.mode
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Start runs a cycle immediately and then once per interval until ctx is done. A tick that
// arrives while a cycle is still running is dropped.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Infof("scheduler started in %s mode, interval %s", s.mode, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.TryRunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.TryRunCycle(ctx)
		}
	}
}

// TryRunCycle runs a cycle unless one is already in progress.
func (s *Scheduler) TryRunCycle(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn("previous polling cycle still running, skipping tick")
		return false
	}
	defer s.running.Store(false)

	defer tracing.RecoverAndLogToJaeger(s.log)
	s.RunCycle(ctx)
	return true
}

// RunCycle polls every tenant with mailbox credentials once. Tenant failures are isolated and
// recorded; they never stop the cycle.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Scheduler.RunCycle")
	defer span.Finish()
	tracing.TagComponentScheduler(span)

	report := CycleReport{StartedAt: utils.Now(), Results: []TenantStatus{}}
	defer func() {
		report.FinishedAt = utils.Now()
		cycleDuration.Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
		s.cycles.Add(1)
		s.storeCycle(report)
	}()

	tenants, err := s.tenants.ListTenantsWithMailCredentials(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		s.log.Errorf("failed to list tenants: %v", err)
		report.Error = err.Error()
		return report
	}
	report.Tenants = len(tenants)
	span.SetTag("tenants", len(tenants))

	results := make([]TenantStatus, len(tenants))
	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, tenant := range tenants {
		g.Go(func() error {
			results[i] = s.runTenant(ctx, tenant)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		switch r.Result {
		case TenantSucceeded:
			report.Succeeded++
		case TenantFailed:
			report.Failed++
		case TenantBusy:
			report.Busy++
		}
		report.Messages += r.Fetched
	}
	report.Results = results
	span.LogKV("succeeded", report.Succeeded, "failed", report.Failed, "messages", report.Messages)
	s.log.Infof("polling cycle done: %d tenants, %d succeeded, %d failed, %d busy, %d messages",
		report.Tenants, report.Succeeded, report.Failed, report.Busy, report.Messages)
	return report
}

func (s *Scheduler) runTenant(ctx context.Context, tenant *models.Tenant) TenantStatus {
	status := TenantStatus{TenantID: tenant.ID, StartedAt: utils.Now(), Outcomes: map[dto.OutcomeKind]int{}}
	log := s.log.With(zap.String("tenant", tenant.ID))

	lock := s.tenantLock(tenant.ID)
	if !lock.TryLock() {
		status.Result = TenantBusy
		tenantRuns.WithLabelValues(string(TenantBusy)).Inc()
		s.storeTenant(status)
		return status
	}
	defer lock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic while polling tenant: %v", r)
			status.Result = TenantFailed
			status.Error = "panic during tenant run"
			status.Duration = time.Since(status.StartedAt)
			tenantRuns.WithLabelValues(string(TenantFailed)).Inc()
			s.storeTenant(status)
		}
	}()

	messages, err := s.fetch(ctx, tenant)
	if err != nil {
		log.Warnf("mailbox fetch failed: %v", err)
		status.Result = TenantFailed
		status.Error = err.Error()
		status.Duration = time.Since(status.StartedAt)
		tenantRuns.WithLabelValues(string(TenantFailed)).Inc()
		s.storeTenant(status)
		return status
	}

	status.Fetched = len(messages)
	// messages are already marked seen; a stopped cycle must not drop them before they are recorded
	processCtx := context.WithoutCancel(ctx)
	if ctx.Err() != nil {
		log.Warnf("cycle stopped, finishing %d fetched messages", len(messages))
	}
	for _, message := range messages {
		outcome := s.processor.ProcessFetched(processCtx, tenant, message)
		status.Outcomes[outcome.Kind]++
		status.Created += outcome.CreatedCount()
		if outcome.Err != nil {
			log.Errorf("message %s: %v", message.MessageID, outcome.Err)
		}
	}

	status.Result = TenantSucceeded
	status.Duration = time.Since(status.StartedAt)
	tenantRuns.WithLabelValues(string(TenantSucceeded)).Inc()
	s.storeTenant(status)
	return status
}

// fetch holds a global session slot and the tenant's own deadline for the mailbox session only.
func (s *Scheduler) fetch(ctx context.Context, tenant *models.Tenant) ([]dto.RawMessage, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.tenantTimeout)
	defer cancel()

	if err := s.sessions.Acquire(fetchCtx, 1); err != nil {
		return nil, errors.Wrap(err, "waiting for a mailbox session slot")
	}
	defer s.sessions.Release(1)

	type fetchResult struct {
		messages []dto.RawMessage
		err      error
	}
	done := make(chan fetchResult, 1)
	go func() {
		messages, err := s.fetcher.Fetch(fetchCtx, tenant)
		done <- fetchResult{messages: messages, err: err}
	}()

	select {
	case r := <-done:
		return sortedFetch(r.messages, r.err)
	case <-fetchCtx.Done():
	}

	// a session that completed at the deadline has already marked its messages seen
	grace := time.NewTimer(fetchSettleGrace)
	defer grace.Stop()
	select {
	case r := <-done:
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "mailbox session for tenant %s", tenant.ID)
		}
		return sortedFetch(r.messages, nil)
	case <-grace.C:
		return nil, errors.Wrapf(fetchCtx.Err(), "mailbox session for tenant %s", tenant.ID)
	}
}

func sortedFetch(messages []dto.RawMessage, err error) ([]dto.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	return messages, nil
}

func (s *Scheduler) tenantLock(tenantID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	lock, ok := s.tenantLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.tenantLocks[tenantID] = lock
	}
	return lock
}

func (s *Scheduler) storeTenant(status TenantStatus) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	prev := s.statuses[status.TenantID]
	status.LastOkAt = prev.LastOkAt
	switch status.Result {
	case TenantSucceeded:
		status.LastOkAt = utils.NowPtr()
		status.FailStreak = 0
	case TenantFailed:
		status.FailStreak = prev.FailStreak + 1
	default:
		status.FailStreak = prev.FailStreak
	}
	s.statuses[status.TenantID] = status
}

func (s *Scheduler) storeCycle(report CycleReport) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastCycle = &report
}

// Status is a snapshot of the last cycle and the latest result per tenant.
func (s *Scheduler) Status() Status {
	s.statusMu.RLock()
	defer s.statusMu.RUnlock()

	out := Status{
		Running: s.running.Load(),
		Cycles:  s.cycles.Load(),
		Tenants: make([]TenantStatus, 0, len(s.statuses)),
	}
	if s.lastCycle != nil {
		copied := *s.lastCycle
		out.LastCycle = &copied
	}
	for _, st := range s.statuses {
		out.Tenants = append(out.Tenants, st)
	}
	sort.Slice(out.Tenants, func(i, j int) bool { return out.Tenants[i].TenantID < out.Tenants[j].TenantID })
	return out
}
