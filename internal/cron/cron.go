package cron

import (
	"context"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/tracing"
)

const (
	ModeCron = "cron"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	electionGracePeriod = 5 * time.Second
)

// Poller is the mailbox polling loop driven by the manager.
type Poller interface {
	Start(ctx context.Context)
	TryRunCycle(ctx context.Context) bool
}

// CronManager owns the polling trigger. In cron mode cycles run on the configured schedule,
// otherwise the poller's own ticker loop runs. With leader election only the lease holder polls.
type CronManager struct {
	cfg    *config.SchedulerConfig
	log    logger.Logger
	k8s    kubernetes.Interface
	poller Poller

	mu       sync.Mutex
	cron     *cronv3.Cron
	cancel   context.CancelFunc
	loopDone chan struct{}
	jobIDs   map[string]cronv3.EntryID
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewCronManager(cfg *config.SchedulerConfig, log logger.Logger, k8s kubernetes.Interface, poller Poller) *CronManager {
	return &CronManager{
		cfg:    cfg,
		log:    log,
		k8s:    k8s,
		poller: poller,
		jobIDs: make(map[string]cronv3.EntryID),
		stopCh: make(chan struct{}),
	}
}

// Start begins polling. Without a k8s client or with leader election disabled it polls locally.
func (cm *CronManager) Start(ctx context.Context) error {
	if cm.k8s == nil || !cm.cfg.UseLeaderElection {
		cm.log.Info("Starting poll trigger in local mode")
		cm.StartPolling(ctx)
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      cm.cfg.LeaseName,
			Namespace: cm.cfg.Namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: cm.cfg.PodName,
		},
	}

	errCh := make(chan error, 1)
	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(leaderCtx context.Context) {
					cm.log.Infof("Acquired poller lease as %s", cm.cfg.PodName)
					cm.StartPolling(leaderCtx)
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping poll trigger")
					cm.StopPolling()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}
		le.Run(ctx)
	}()

	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartPolling(ctx)
	case <-time.After(electionGracePeriod):
	case <-ctx.Done():
	}
	return nil
}

// StartPolling starts the trigger for the configured mode. Calling it while polling is a no-op.
func (cm *CronManager) StartPolling(ctx context.Context) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cron != nil || cm.cancel != nil {
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	cm.cancel = cancel

	if cm.cfg.Mode == ModeCron {
		cm.cron = cm.newCron(pollCtx)
		cm.cron.Start()
		return
	}

	done := make(chan struct{})
	cm.loopDone = done
	go func() {
		defer close(done)
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.poller.Start(pollCtx)
	}()
}

func (cm *CronManager) newCron(ctx context.Context) *cronv3.Cron {
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	cm.registerJobs(ctx, c)
	return c
}

func (cm *CronManager) registerJobs(ctx context.Context, c *cronv3.Cron) {
	if cm.cfg.HeartbeatSchedule != "" {
		podName := cm.cfg.PodName
		id, err := c.AddFunc(cm.cfg.HeartbeatSchedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			cm.log.Errorf("Could not add heartbeat cron job: %v", err)
		} else {
			cm.jobIDs["heartbeat"] = id
		}
	}

	id, err := c.AddFunc(cm.cfg.CronSchedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		cm.poll(ctx)
	})
	if err != nil {
		cm.log.Errorf("Could not add mailbox poll cron job with schedule %q: %v", cm.cfg.CronSchedule, err)
		return
	}
	cm.jobIDs["mailbox_poll"] = id
	cm.log.Infof("Registered mailbox poll job with schedule: %s", cm.cfg.CronSchedule)
}

func (cm *CronManager) poll(ctx context.Context) {
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.poll")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	if !cm.poller.TryRunCycle(ctx) {
		span.LogKV("skipped", true)
	}
}

// StopPolling stops the trigger and waits for any running cycle to return.
func (cm *CronManager) StopPolling() {
	cm.mu.Lock()
	c, cancel, done := cm.cron, cm.cancel, cm.loopDone
	cm.cron, cm.cancel, cm.loopDone = nil, nil, nil
	cm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	if done != nil {
		<-done
	}
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.log.Info("Stopping poll trigger")
	cm.StopPolling()
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}

func (cm *CronManager) Done() <-chan struct{} {
	return cm.stopCh
}
