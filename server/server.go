package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/violationstack/api"
	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/cron"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/repository"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

// NewServer builds the logger, tracer, repositories and services shared by every command.
func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Services() *services.Services {
	return s.services
}

func (s *Server) Logger() logger.Logger {
	return s.log
}

func (s *Server) Initialize() error {
	api.RegisterRoutes(s.router, s.log, s.config, s.services.Pipeline, s.services.Scheduler)

	var k8s kubernetes.Interface
	if s.config.SchedulerConfig.UseLeaderElection {
		client, err := newKubernetesClient()
		if err != nil {
			s.log.Warnf("Kubernetes client unavailable, polling without leader election: %v", err)
		} else {
			k8s = client
		}
	}
	s.cronManager = cron.NewCronManager(s.config.SchedulerConfig, s.log, k8s, s.services.Scheduler)
	return nil
}

func newKubernetesClient() (kubernetes.Interface, error) {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, err
	}
	return kubernetes.NewForConfig(restConfig)
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(
			fmt.Sprintf("panic.%s", name),
		)
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

// Run serves HTTP and polls mailboxes until SIGINT or SIGTERM.
func (s *Server) Run() error {
	ctx, cancel := context.WithCancel(utils.SetAppSourceInContext(context.Background(), s.config.AppConfig.AppSource))
	defer cancel()

	if err := s.Initialize(); err != nil {
		return err
	}

	s.log.Infof("Starting mailbox polling in %s mode", s.services.Scheduler.Mode())
	s.wrapGoroutine("poller", func() {
		if err := s.cronManager.Start(ctx); err != nil {
			s.log.Errorf("Poll trigger error: %v", err)
		}
	})

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})
	s.log.Info("violationstack is now running. Press Ctrl+C to exit.")

	return s.waitForShutdown(cancel)
}

// PollOnce runs a single polling cycle and returns its report.
func (s *Server) PollOnce(ctx context.Context) error {
	report := s.services.Scheduler.RunCycle(ctx)
	s.log.Infof("Cycle finished: %d tenants, %d succeeded, %d failed, %d messages",
		report.Tenants, report.Succeeded, report.Failed, report.Messages)
	if report.Error != "" {
		return errors.New(report.Error)
	}
	return nil
}

// Close flushes the tracer and releases service connections.
func (s *Server) Close() {
	if err := s.services.Close(); err != nil {
		s.log.Warnf("Closing services: %v", err)
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	_ = s.log.Sync()
}

func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("HTTP server shut down successfully")
	}

	stopDone := make(chan struct{})
	go s.wrapGoroutine("poller_shutdown", func() {
		defer close(stopDone)
		cancel()
		s.cronManager.Stop()
	})

	select {
	case <-stopDone:
		s.log.Info("Polling stopped gracefully")
	case <-time.After(10 * time.Second):
		s.log.Warn("Polling stop timed out, forcing exit")
	}

	s.Close()
	return nil
}
