package pipeline

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/services/dedup"
	"github.com/customeros/violationstack/services/mailfetcher"
)

const DefaultReprocessLimit = 100

type ReprocessItem struct {
	InboundMessageId string          `json:"inboundMessageId"`
	TenantId         string          `json:"tenantId"`
	Outcome          dto.OutcomeKind `json:"outcome"`
	CreatedCount     int             `json:"createdCount"`
	Error            string          `json:"error,omitempty"`
}

type ReprocessReport struct {
	Scanned int                     `json:"scanned"`
	Counts  map[dto.OutcomeKind]int `json:"counts"`
	Items   []ReprocessItem         `json:"items"`
}

// Reprocess runs pending inbound messages again, oldest first. An empty tenantID covers all
// tenants.
func (p *Pipeline) Reprocess(ctx context.Context, tenantID string, limit int) (ReprocessReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.Reprocess")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)

	if limit <= 0 {
		limit = DefaultReprocessLimit
	}
	span.LogKV("limit", limit)

	report := ReprocessReport{Counts: map[dto.OutcomeKind]int{}, Items: []ReprocessItem{}}
	pending, err := p.repos.InboundMessageRepository.ListPending(ctx, tenantID, limit)
	if err != nil {
		tracing.TraceErr(span, err)
		return report, errors.Wrap(err, "list pending inbound messages")
	}

	for _, inbound := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		current, err := p.repos.InboundMessageRepository.GetByID(ctx, inbound.ID)
		if err != nil {
			p.log.Warnf("reprocess: reload inbound %s: %v", inbound.ID, err)
			continue
		}
		if current.Status != enum.InboundStatusPending {
			// settled by a concurrent run since the listing
			continue
		}
		inbound = current
		report.Scanned++

		outcome := p.runStored(ctx, inbound)
		p.finish(inbound.Channel, outcome)
		report.Counts[outcome.Kind]++

		item := ReprocessItem{
			InboundMessageId: inbound.ID,
			TenantId:         inbound.TenantID,
			Outcome:          outcome.Kind,
			CreatedCount:     outcome.CreatedCount(),
		}
		if outcome.Err != nil {
			item.Error = outcome.Err.Error()
			p.log.Warnf("reprocess of inbound %s failed: %v", inbound.ID, outcome.Err)
		} else if markable(outcome) {
			if err := p.dedup.Mark(ctx, dedup.Key(inbound.TenantID, inbound.MessageID)); err != nil {
				p.log.Warnf("dedup mark failed for inbound %s: %v", inbound.ID, err)
			}
		}
		report.Items = append(report.Items, item)
	}

	span.LogKV("scanned", report.Scanned)
	return report, nil
}

func (p *Pipeline) runStored(ctx context.Context, inbound *models.InboundMessage) dto.Outcome {
	message := dto.RawMessage{
		MessageID:  inbound.MessageID,
		Subject:    inbound.Subject,
		From:       inbound.FromAddr,
		Text:       inbound.BodyText,
		ReceivedAt: inbound.ReceivedAt,
	}

	if message.Text == "" && inbound.StorageKey != "" && p.storage != nil {
		raw, err := p.storage.Download(ctx, inbound.StorageKey)
		if err != nil {
			return dto.Outcome{Kind: dto.OutcomeError, InboundMessageId: inbound.ID, Err: errors.Wrap(err, "download archived message")}
		}
		parsed, err := mailfetcher.ParseMessage(raw, inbound.MessageID, inbound.ReceivedAt)
		if err != nil {
			p.log.Warnf("inbound %s: archived message unparseable: %v", inbound.ID, err)
		}
		message.Text = parsed.Text
		message.HTML = parsed.HTML
		if message.Subject == "" {
			message.Subject = parsed.Subject
		}
	}

	return p.run(ctx, inbound, message)
}
