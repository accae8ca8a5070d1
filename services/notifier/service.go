package notifier

import (
	"context"
	"strings"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

type Delivery struct {
	TenantID    string
	ViolationID string
	Recipient   string
	Message     MessageData
}

type Result struct {
	Outcome    enum.NotificationOutcome
	Mode       enum.NotificationMode
	RetryCount int
	Err        error
}

func (r Result) Delivered() bool {
	return r.Outcome == enum.NotificationDelivered
}

type Options struct {
	TemplateName string
	TemplateLang string
	ForceText    bool
	Retry        RetryPolicy
}

func OptionsFromConfig(cfg *config.WhatsAppConfig) Options {
	policy := DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		policy.MaxAttempts = cfg.MaxRetries
	}
	if cfg.RetryBackoff > 0 {
		policy.InitialBackoff = cfg.RetryBackoff
	}
	return Options{
		TemplateName: strings.TrimSpace(cfg.TemplateName),
		TemplateLang: strings.TrimSpace(cfg.TemplateLang),
		ForceText:    cfg.ForceText,
		Retry:        policy,
	}
}

type Service struct {
	log       logger.Logger
	client    Client
	attempts  interfaces.NotificationAttemptRepository
	publisher interfaces.EventPublisher
	opts      Options
	sleep     sleepFunc
}

func NewService(log logger.Logger, client Client, attempts interfaces.NotificationAttemptRepository, publisher interfaces.EventPublisher, opts Options) *Service {
	return &Service{
		log:       log.With(zap.String("component", "notifier")),
		client:    client,
		attempts:  attempts,
		publisher: publisher,
		opts:      opts,
		sleep:     sleepContext,
	}
}

// Mode is fixed by configuration: template only when a template is named and text is not forced.
func (s *Service) Mode() enum.NotificationMode {
	if s.opts.ForceText || s.opts.TemplateName == "" {
		return enum.NotificationModeText
	}
	return enum.NotificationModeTemplate
}

// Notify sends one violation notice with retries and records the attempt. Failures never
// affect the violation record.
func (s *Service) Notify(ctx context.Context, d Delivery) Result {
	span, ctx := opentracing.StartSpanFromContext(ctx, "NotifierService.Notify")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagTenant(span, d.TenantID)
	tracing.TagEntity(span, d.ViolationID)

	mode := s.Mode()
	span.SetTag("mode", string(mode))
	result := Result{Mode: mode}

	if s.alreadyDelivered(ctx, d.ViolationID) {
		span.LogKV("result", "already delivered")
		result.Outcome = enum.NotificationDelivered
		return result
	}

	recipient := strings.TrimSpace(d.Recipient)
	if recipient == "" {
		result.Outcome = enum.NotificationSkipped
		result.Err = errors.New("driver has no whatsapp number")
		s.record(ctx, d, result)
		return result
	}

	retries, err := s.opts.Retry.Run(ctx, s.sleep, func(ctx context.Context) error {
		if mode == enum.NotificationModeTemplate {
			return s.client.SendTemplate(ctx, recipient, Template{
				Name:     s.opts.TemplateName,
				Language: s.opts.TemplateLang,
				Params:   TemplateParams(d.Message),
			})
		}
		return s.client.SendText(ctx, recipient, RenderMessage(d.Message))
	})
	result.RetryCount = retries
	result.Err = err

	switch {
	case err == nil:
		result.Outcome = enum.NotificationDelivered
	case IsTransient(err):
		result.Outcome = enum.NotificationFailedTransient
	default:
		result.Outcome = enum.NotificationFailedFatal
	}

	if err != nil {
		tracing.TraceErr(span, err)
		s.log.With(
			zap.String("tenant", d.TenantID),
			zap.String("violationId", d.ViolationID),
			zap.String("outcome", result.Outcome.String()),
			zap.Int("retries", retries),
		).Errorf("notification failed: %v", err)
	}

	s.record(ctx, d, result)
	return result
}

// alreadyDelivered guards against a second message to the driver for the same violation.
func (s *Service) alreadyDelivered(ctx context.Context, violationID string) bool {
	if s.attempts == nil || violationID == "" {
		return false
	}
	attempts, err := s.attempts.ListByViolation(ctx, violationID)
	if err != nil {
		s.log.Warnf("violation %s: list notification attempts: %v", violationID, err)
		return false
	}
	for _, attempt := range attempts {
		if attempt.Outcome == enum.NotificationDelivered {
			return true
		}
	}
	return false
}

func (s *Service) record(ctx context.Context, d Delivery, result Result) {
	notificationsTotal.WithLabelValues(result.Outcome.String()).Inc()

	attempt := &models.NotificationAttempt{
		TenantID:    d.TenantID,
		ViolationID: d.ViolationID,
		Channel:     enum.NotificationChannelWhatsApp,
		Recipient:   d.Recipient,
		Outcome:     result.Outcome,
		RetryCount:  result.RetryCount,
		AttemptedAt: utils.Now(),
	}
	if result.Err != nil {
		attempt.Error = result.Err.Error()
		var de *DeliveryError
		if errors.As(result.Err, &de) && de.StatusCode > 0 {
			attempt.StatusCode = utils.ToPtr(de.StatusCode)
		}
	}

	if s.attempts != nil {
		if err := s.attempts.Create(ctx, attempt); err != nil {
			s.log.Errorf("failed to record notification attempt for violation %s: %v", d.ViolationID, err)
		}
	}

	if result.Outcome == enum.NotificationFailedTransient || result.Outcome == enum.NotificationFailedFatal {
		if s.publisher != nil {
			if err := s.publisher.PublishNotificationFailed(ctx, attempt); err != nil {
				s.log.Warnf("failed to publish notification.failed for violation %s: %v", d.ViolationID, err)
			}
		}
	}
}
