package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/kubernetes"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/logger"
)

type mockKubernetesInterface struct {
	kubernetes.Interface
	mock.Mock
}

type fakePoller struct {
	cycles  atomic.Int32
	loops   atomic.Int32
	stopped atomic.Bool
}

func (p *fakePoller) Start(ctx context.Context) {
	p.loops.Add(1)
	<-ctx.Done()
	p.stopped.Store(true)
}

func (p *fakePoller) TryRunCycle(_ context.Context) bool {
	p.cycles.Add(1)
	return true
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func TestNewCronManager(t *testing.T) {
	cfg := &config.SchedulerConfig{Mode: ModeCron}
	log := getLogger()
	k8s := &mockKubernetesInterface{}
	poller := &fakePoller{}

	cm := NewCronManager(cfg, log, k8s, poller)

	assert.NotNil(t, cm)
	assert.Equal(t, cfg, cm.cfg)
	assert.Equal(t, k8s, cm.k8s)
	assert.NotNil(t, cm.jobIDs)
}

func TestCronManager_CronModeRunsPollJob(t *testing.T) {
	cfg := &config.SchedulerConfig{
		Mode:              ModeCron,
		CronSchedule:      "* * * * * *",
		HeartbeatSchedule: "0 * * * * *",
		PodName:           "pod-a",
	}
	poller := &fakePoller{}
	cm := NewCronManager(cfg, getLogger(), nil, poller)

	require.NoError(t, cm.Start(context.Background()))
	assert.Contains(t, cm.jobIDs, "mailbox_poll")
	assert.Contains(t, cm.jobIDs, "heartbeat")

	require.Eventually(t, func() bool { return poller.cycles.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	assert.Equal(t, int32(0), poller.loops.Load())

	cm.Stop()
	select {
	case <-cm.Done():
	default:
		t.Error("Stop channel was not closed")
	}
}

func TestCronManager_InvalidScheduleIsNotRegistered(t *testing.T) {
	cfg := &config.SchedulerConfig{Mode: ModeCron, CronSchedule: "every now and then"}
	cm := NewCronManager(cfg, getLogger(), nil, &fakePoller{})

	cm.StartPolling(context.Background())
	defer cm.Stop()

	assert.NotContains(t, cm.jobIDs, "mailbox_poll")
}

func TestCronManager_TimerModeRunsPollerLoop(t *testing.T) {
	cfg := &config.SchedulerConfig{Mode: "timer", UseLeaderElection: true}
	poller := &fakePoller{}
	// leader election is skipped without a k8s client
	cm := NewCronManager(cfg, getLogger(), nil, poller)

	require.NoError(t, cm.Start(context.Background()))
	require.Eventually(t, func() bool { return poller.loops.Load() == 1 }, time.Second, 10*time.Millisecond)

	// already polling
	cm.StartPolling(context.Background())

	cm.Stop()
	assert.True(t, poller.stopped.Load())
	assert.Equal(t, int32(1), poller.loops.Load())
}

func TestCronManager_StopIsIdempotent(t *testing.T) {
	cm := NewCronManager(&config.SchedulerConfig{Mode: "timer"}, getLogger(), nil, &fakePoller{})
	cm.Stop()
	cm.Stop()
	<-cm.Done()
}
