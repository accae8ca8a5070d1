package services

import (
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/repository"
	"github.com/customeros/violationstack/services/dedup"
	"github.com/customeros/violationstack/services/events"
	"github.com/customeros/violationstack/services/mailfetcher"
	"github.com/customeros/violationstack/services/notifier"
	"github.com/customeros/violationstack/services/pipeline"
	"github.com/customeros/violationstack/services/scheduler"
	"github.com/customeros/violationstack/services/storage"
)

type Services struct {
	EventPublisher interfaces.EventPublisher
	Storage        interfaces.StorageService
	Dedup          interfaces.DedupFilter
	Notifier       *notifier.Service
	MailFetcher    *mailfetcher.Fetcher
	Pipeline       *pipeline.Pipeline
	Scheduler      *scheduler.Scheduler
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	publisher, err := events.NewEventPublisher(cfg.AppConfig.RabbitMQURL, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, errors.Wrap(err, "init event publisher")
	}

	rawStorage := storage.NewRawMessageStorage(cfg.R2StorageConfig)
	if rawStorage == nil {
		log.Warn("raw message archive not configured, inbound emails will not be archived")
	}
	dedupFilter := dedup.NewFromConfig(cfg.RedisConfig)

	notifierService := notifier.NewService(
		log,
		notifier.NewWhatsAppClient(cfg.WhatsAppConfig),
		repos.NotificationAttemptRepository,
		publisher,
		notifier.OptionsFromConfig(cfg.WhatsAppConfig),
	)

	p := pipeline.New(log, repos, notifierService,
		pipeline.WithStorage(rawStorage),
		pipeline.WithEvents(publisher),
		pipeline.WithDedup(dedupFilter),
		pipeline.WithAllowedSenderDomains(cfg.InboundConfig.AllowedSenderDomains),
	)

	fetcher := mailfetcher.NewFetcher(log, cfg.MailFetchConfig)

	return &Services{
		EventPublisher: publisher,
		Storage:        rawStorage,
		Dedup:          dedupFilter,
		Notifier:       notifierService,
		MailFetcher:    fetcher,
		Pipeline:       p,
		Scheduler:      scheduler.New(log, repos.TenantRepository, fetcher, p, cfg.SchedulerConfig),
	}, nil
}

// Close releases connections held by the services.
func (s *Services) Close() error {
	if s.EventPublisher != nil {
		return s.EventPublisher.Close()
	}
	return nil
}
