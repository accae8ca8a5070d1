package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/enum"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/tracing"
)

// PushMessage is an email delivered by the inbound webhook.
type PushMessage struct {
	MessageID  string
	Subject    string
	From       string
	Text       string
	HTML       string
	ReceivedAt time.Time
}

// ProcessPush runs a webhook-delivered email synchronously for tenantID.
func (p *Pipeline) ProcessPush(ctx context.Context, tenantID string, message PushMessage) dto.Outcome {
	span, ctx := opentracing.StartSpanFromContext(ctx, "Pipeline.ProcessPush")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenantID)
	span.LogKV("messageId", message.MessageID, "from", message.From)

	if !SenderAllowed(message.From, p.senderDomains) {
		span.SetTag("outcome", string(dto.OutcomeSenderNotAllowed))
		return p.finish(enum.InboundChannelPush, dto.Outcome{Kind: dto.OutcomeSenderNotAllowed})
	}
	if strings.TrimSpace(tenantID) == "" {
		return p.finish(enum.InboundChannelPush, dto.Outcome{Kind: dto.OutcomeError, Err: coreerr.ErrTenantMissing})
	}
	if _, err := p.repos.TenantRepository.GetTenant(ctx, tenantID); err != nil {
		tracing.TraceErr(span, err)
		return p.finish(enum.InboundChannelPush, dto.Outcome{Kind: dto.OutcomeError, Err: errors.Wrapf(err, "tenant %s", tenantID)})
	}

	outcome := p.process(ctx, tenantID, enum.InboundChannelPush, dto.RawMessage{
		MessageID:  message.MessageID,
		Subject:    message.Subject,
		From:       SenderAddress(message.From),
		Text:       message.Text,
		HTML:       message.HTML,
		ReceivedAt: message.ReceivedAt,
	})
	if outcome.Err != nil {
		tracing.TraceErr(span, outcome.Err)
	}
	span.SetTag("outcome", string(outcome.Kind))
	return outcome
}
