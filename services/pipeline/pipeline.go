// Package pipeline runs one email through classification, driver resolution, the violation
// ledger and driver notification, recording the inbound message state as it goes.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/repository"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services/classifier"
	"github.com/customeros/violationstack/services/dedup"
	"github.com/customeros/violationstack/services/ledger"
	"github.com/customeros/violationstack/services/notifier"
	"github.com/customeros/violationstack/services/resolver"
	"github.com/customeros/violationstack/services/storage"
)

const (
	reasonNoKeywords        = "No violation keywords found"
	reasonNoDriverReference = "No driver reference detected"
	reasonDriverNotFound    = "Driver not found"
	reasonDriverAmbiguous   = "Multiple drivers match this reference"
	reasonDuplicate         = "Violations already recorded for this message"
)

var reasonKinds = map[string]dto.OutcomeKind{
	reasonNoKeywords:        dto.OutcomeNoViolations,
	reasonNoDriverReference: dto.OutcomeNoDriverReference,
	reasonDriverNotFound:    dto.OutcomeDriverNotFound,
	reasonDriverAmbiguous:   dto.OutcomeDriverAmbiguous,
}

type Notifier interface {
	Notify(ctx context.Context, d notifier.Delivery) notifier.Result
}

type Pipeline struct {
	log           logger.Logger
	repos         *repository.Repositories
	classifier    *classifier.Classifier
	resolver      *resolver.Resolver
	ledger        *ledger.Ledger
	notifier      Notifier
	storage       interfaces.StorageService
	events        interfaces.EventPublisher
	dedup         interfaces.DedupFilter
	senderDomains []string
}

type Option func(*Pipeline)

// WithStorage archives every inbound message under inbound/<tenant>/<id>.eml.
func WithStorage(s interfaces.StorageService) Option {
	return func(p *Pipeline) { p.storage = s }
}

func WithEvents(events interfaces.EventPublisher) Option {
	return func(p *Pipeline) { p.events = events }
}

func WithDedup(filter interfaces.DedupFilter) Option {
	return func(p *Pipeline) {
		if filter != nil {
			p.dedup = filter
		}
	}
}

// WithAllowedSenderDomains restricts push ingress to senders ending with one of domains.
func WithAllowedSenderDomains(domains []string) Option {
	return func(p *Pipeline) { p.senderDomains = domains }
}

func WithClassifier(c *classifier.Classifier) Option {
	return func(p *Pipeline) { p.classifier = c }
}

func New(log logger.Logger, repos *repository.Repositories, n Notifier, opts ...Option) *Pipeline {
	p := &Pipeline{
		log:        log,
		repos:      repos,
		classifier: classifier.New(),
		resolver:   resolver.New(log, repos.DriverRepository),
		ledger:     ledger.New(log, repos.ViolationRepository),
		notifier:   n,
		dedup:      dedup.NoopFilter{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) Ledger() *ledger.Ledger {
	return p.ledger
}

// ProcessFetched handles one message returned by the mail fetcher.
func (p *Pipeline) ProcessFetched(ctx context.Context, tenant *models.Tenant, message dto.RawMessage) dto.Outcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.ProcessFetched")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenant.ID)

	outcome := p.process(ctx, tenant.ID, enum.InboundChannelIMAP, message)
	if outcome.Err != nil {
		tracing.TraceErr(span, outcome.Err)
	}
	span.SetTag("outcome", string(outcome.Kind))
	return outcome
}

// process is shared by the fetch and push paths.
func (p *Pipeline) process(ctx context.Context, tenantID string, channel enum.InboundChannel, message dto.RawMessage) dto.Outcome {
	message.MessageID = utils.NormalizeMessageID(message.MessageID)
	if message.MessageID == "" {
		message.MessageID = utils.GenerateNanoIDWithPrefix(channel.String(), 21)
	}
	if message.ReceivedAt.IsZero() {
		message.ReceivedAt = utils.Now()
	}
	log := p.log.With(zap.String("tenant", tenantID), zap.String("messageId", message.MessageID), zap.String("channel", channel.String()))

	dedupKey := dedup.Key(tenantID, message.MessageID)
	if seen, err := p.dedup.Seen(ctx, dedupKey); err != nil {
		log.Warnf("dedup lookup failed: %v", err)
	} else if seen {
		return p.finish(channel, dto.Outcome{Kind: dto.OutcomeDuplicate})
	}

	inbound, created, err := p.repos.InboundMessageRepository.CreateIfAbsent(ctx, &models.InboundMessage{
		TenantID:   tenantID,
		MessageID:  message.MessageID,
		Channel:    channel,
		Subject:    utils.Truncate(message.Subject, 1000),
		FromAddr:   strings.ToLower(strings.TrimSpace(message.From)),
		BodyText:   message.Text,
		ReceivedAt: message.ReceivedAt.UTC(),
	})
	if err != nil {
		return p.finish(channel, dto.Outcome{Kind: dto.OutcomeError, Err: errors.Wrap(err, "record inbound message")})
	}
	if !created && inbound.Status.IsTerminal() {
		log.Debugf("message already processed with status %s", inbound.Status)
		outcome := p.duplicate(ctx, inbound)
		if outcome.Err == nil && len(outcome.Existing) == 0 {
			// nothing was recorded the first time; repeat that verdict
			if kind, ok := reasonKinds[inbound.Reason]; ok {
				outcome.Kind = kind
			}
		}
		return p.finish(channel, outcome)
	}
	if created {
		// a violation may already cite this message id, e.g. one recorded manually
		outcome := p.duplicate(ctx, inbound)
		if outcome.Err != nil || len(outcome.Existing) > 0 {
			if outcome.Err == nil {
				outcome = p.settle(ctx, inbound, enum.InboundStatusParsed, nil, reasonDuplicate, outcome)
			}
			return p.finish(channel, outcome)
		}
	}
	if inbound.StorageKey == "" {
		p.archive(ctx, inbound, message)
	}

	outcome := p.run(ctx, inbound, message)
	if outcome.Err != nil {
		log.Errorf("pipeline failed: %v", outcome.Err)
	} else if markable(outcome) {
		if err := p.dedup.Mark(ctx, dedupKey); err != nil {
			log.Warnf("dedup mark failed: %v", err)
		}
	}
	return p.finish(channel, outcome)
}

// markable reports whether a resend may be answered from the dedup cache. Only outcomes that
// answer "duplicate" on a resend qualify; every other verdict is repeated from the stored reason.
func markable(outcome dto.Outcome) bool {
	if outcome.Err != nil {
		return false
	}
	return outcome.Kind == dto.OutcomeCreated || outcome.Kind == dto.OutcomeDuplicate
}

// run classifies an already recorded inbound message and settles its status.
func (p *Pipeline) run(ctx context.Context, inbound *models.InboundMessage, message dto.RawMessage) dto.Outcome {
	outcome := dto.Outcome{InboundMessageId: inbound.ID}

	body := message.Text
	if strings.TrimSpace(body) == "" && message.HTML != "" {
		text, err := utils.HTMLToPlainText(message.HTML)
		if err != nil {
			p.log.Warnf("inbound %s: html conversion failed: %v", inbound.ID, err)
		}
		body = text
	}
	result := p.classifier.Classify(message.Subject, body)
	extraction := models.JSONMap(result.Extraction())

	switch {
	case !result.HasDriverReference():
		outcome.Kind = dto.OutcomeNoDriverReference
		status := enum.InboundStatusParsed
		if !result.HasCategories() {
			status = enum.InboundStatusFailed
		}
		return p.settle(ctx, inbound, status, extraction, reasonNoDriverReference, outcome)
	case !result.HasCategories():
		outcome.Kind = dto.OutcomeNoViolations
		return p.settle(ctx, inbound, enum.InboundStatusFailed, extraction, reasonNoKeywords, outcome)
	}

	resolution, err := p.resolver.Resolve(ctx, inbound.TenantID, result.DriverExternalID, result.VehicleNumber)
	if err != nil {
		outcome.Kind = dto.OutcomeError
		outcome.Err = errors.Wrap(err, "resolve driver")
		return outcome
	}
	switch resolution.Outcome {
	case resolver.NotFound:
		outcome.Kind = dto.OutcomeDriverNotFound
		return p.settle(ctx, inbound, enum.InboundStatusParsed, extraction, reasonDriverNotFound, outcome)
	case resolver.Ambiguous:
		outcome.Kind = dto.OutcomeDriverAmbiguous
		extraction["candidates"] = resolution.Candidates
		return p.settle(ctx, inbound, enum.InboundStatusParsed, extraction, reasonDriverAmbiguous, outcome)
	}

	driver := resolution.Driver
	outcome.DriverId = driver.ID
	extraction["driverId"] = driver.ID
	extraction["matchedBy"] = resolution.MatchedBy

	occurredAt := utils.GetOrDefault(result.OccurredAt, inbound.ReceivedAt)

	for _, category := range result.Categories {
		violation, created, err := p.ledger.CreateIfAbsent(ctx, ledger.Entry{
			TenantID:         inbound.TenantID,
			DriverID:         driver.ID,
			Category:         category,
			Source:           enum.ViolationSourceEmail,
			Status:           enum.ViolationStatusMatched,
			SourceRef:        inbound.MessageID,
			OccurredAt:       occurredAt,
			RawExcerpt:       result.RawExcerpt,
			InboundMessageID: utils.ToPtr(inbound.ID),
		})
		if err != nil {
			// leave the message pending so a reprocess run can finish it
			outcome.Kind = dto.OutcomeError
			outcome.Err = errors.Wrapf(err, "record %s violation", category)
			return outcome
		}
		if !created {
			outcome.Existing = append(outcome.Existing, category)
			continue
		}
		outcome.Created = append(outcome.Created, category)
		violationsCreated.WithLabelValues(category.String()).Inc()
		p.publishCreated(ctx, violation)
		if p.notifyDriver(ctx, driver, violation, result) {
			outcome.Notified++
		}
	}

	outcome.Kind = dto.OutcomeCreated
	if len(outcome.Created) == 0 {
		outcome.Kind = dto.OutcomeDuplicate
	}
	return p.settle(ctx, inbound, enum.InboundStatusParsed, extraction, "", outcome)
}

// duplicate reports the violations already recorded against the message id.
func (p *Pipeline) duplicate(ctx context.Context, inbound *models.InboundMessage) dto.Outcome {
	outcome := dto.Outcome{Kind: dto.OutcomeDuplicate, InboundMessageId: inbound.ID}
	existing, err := p.ledger.FindBySourceRef(ctx, inbound.TenantID, inbound.MessageID)
	if err != nil {
		outcome.Kind = dto.OutcomeError
		outcome.Err = err
		return outcome
	}
	for _, v := range existing {
		outcome.DriverId = v.DriverID
		outcome.Existing = append(outcome.Existing, v.Category)
	}
	return outcome
}

func (p *Pipeline) settle(ctx context.Context, inbound *models.InboundMessage, status enum.InboundStatus, extraction models.JSONMap, reason string, outcome dto.Outcome) dto.Outcome {
	err := p.repos.InboundMessageRepository.MarkProcessed(ctx, inbound.ID, status, extraction, reason)
	switch {
	case err == nil:
	case errors.Is(err, coreerr.ErrInvalidStatusTransition):
		// a concurrent run settled the message first
		p.log.Debugf("inbound %s already settled", inbound.ID)
	default:
		outcome.Err = errors.Wrapf(err, "mark inbound message %s", status)
	}
	return outcome
}

func (p *Pipeline) finish(channel enum.InboundChannel, outcome dto.Outcome) dto.Outcome {
	outcomesTotal.WithLabelValues(channel.String(), string(outcome.Kind)).Inc()
	return outcome
}

func (p *Pipeline) archive(ctx context.Context, inbound *models.InboundMessage, message dto.RawMessage) {
	if p.storage == nil {
		return
	}
	raw := message.Raw
	if len(raw) == 0 {
		raw = synthesizeRaw(message)
	}
	key := storage.RawMessageKey(inbound.TenantID, inbound.ID)
	if err := p.storage.Upload(ctx, key, raw, storage.RawMessageContentType); err != nil {
		p.log.Warnf("inbound %s: archive failed: %v", inbound.ID, err)
		return
	}
	if err := p.repos.InboundMessageRepository.SetStorageKey(ctx, inbound.ID, key); err != nil {
		p.log.Warnf("inbound %s: storing archive key failed: %v", inbound.ID, err)
		return
	}
	inbound.StorageKey = key
}

func (p *Pipeline) publishCreated(ctx context.Context, violation *models.Violation) {
	if p.events == nil {
		return
	}
	if err := p.events.PublishViolationCreated(ctx, violation); err != nil {
		p.log.Warnf("violation %s: publish violation.created failed: %v", violation.ID, err)
	}
}

func (p *Pipeline) notifyDriver(ctx context.Context, driver *models.Driver, violation *models.Violation, result classifier.Result) bool {
	if p.notifier == nil {
		return false
	}
	name := driver.Name
	if name == "" {
		name = result.DriverName
	}
	res := p.notifier.Notify(ctx, notifier.Delivery{
		TenantID:    violation.TenantID,
		ViolationID: violation.ID,
		Recipient:   driver.WhatsAppE164,
		Message: notifier.MessageData{
			DriverName:       name,
			DriverExternalID: driver.ExternalDriverID,
			Category:         violation.Category,
			VIN:              result.VIN,
			OccurredAt:       violation.OccurredAt,
		},
	})
	return res.Delivered()
}

// synthesizeRaw renders a pushed message as a minimal RFC 822 document for the archive.
func synthesizeRaw(message dto.RawMessage) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "Message-Id: <%s>\r\n", message.MessageID)
	fmt.Fprintf(&b, "From: %s\r\n", message.From)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(message.Subject, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", message.ReceivedAt.UTC().Format(time.RFC1123Z))
	if message.Text == "" && message.HTML != "" {
		b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(message.HTML)
	} else {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(message.Text)
	}
	return []byte(b.String())
}
