// Package mailfetcher opens one IMAP session per tenant, collects unseen messages from
// allow-listed senders and marks them seen.
package mailfetcher

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	_ "github.com/emersion/go-message/charset"
	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/dto"
	coreerr "github.com/customeros/violationstack/internal/errors"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/tracing"
	"github.com/customeros/violationstack/internal/utils"
)

const (
	defaultAuthTimeout    = 3 * time.Second
	defaultCommandTimeout = 30 * time.Second
	defaultFolder         = "INBOX"
)

var (
	sessionsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "violationstack_mailbox_sessions_in_flight",
		Help: "Mailbox sessions currently open",
	})
	messagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "violationstack_mailbox_messages_fetched_total",
		Help: "Messages fetched from tenant mailboxes",
	})
)

type Fetcher struct {
	log            logger.Logger
	dial           dialFunc
	authTimeout    time.Duration
	commandTimeout time.Duration
	folder         string
	defaultSenders []string
	markSeen       bool
}

func NewFetcher(log logger.Logger, cfg *config.MailFetchConfig) *Fetcher {
	f := &Fetcher{
		log:            log,
		dial:           dialIMAP,
		authTimeout:    cfg.AuthTimeout,
		commandTimeout: cfg.DialTimeout,
		folder:         cfg.Folder,
		defaultSenders: normalizeSenders(cfg.AllowedSenders),
		markSeen:       cfg.MarkSeen,
	}
	if f.authTimeout <= 0 {
		f.authTimeout = defaultAuthTimeout
	}
	if f.commandTimeout <= 0 {
		f.commandTimeout = defaultCommandTimeout
	}
	if f.folder == "" {
		f.folder = defaultFolder
	}
	return f
}

// Fetch returns the tenant's qualifying unseen messages in received order. Tenants without
// complete mailbox credentials yield no messages and no error.
func (f *Fetcher) Fetch(ctx context.Context, tenant *models.Tenant) ([]dto.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "MailFetcher.Fetch")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagTenant(span, tenant.ID)

	if !tenant.HasMailCredentials() {
		span.LogFields(tracingLog.String("result", "skipped: incomplete credentials"))
		f.log.Debugf("tenant %s has incomplete mailbox credentials, skipping", tenant.ID)
		return nil, nil
	}

	server, err := ServerFor(tenant.MailProvider)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.SetTag("server", server.Host)

	senders := normalizeSenders(tenant.AllowedSenders)
	if len(senders) == 0 {
		senders = f.defaultSenders
	}
	if len(senders) == 0 {
		f.log.Warnf("tenant %s has no allowed senders configured, skipping", tenant.ID)
		return nil, nil
	}

	c, err := f.dial(ctx, server, f.authTimeout)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	sessionsInFlight.Inc()
	defer sessionsInFlight.Dec()

	// go-imap blocks without a context; closing the connection unblocks it.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Terminate()
		case <-done:
		}
	}()
	defer f.logout(tenant.ID, c)

	messages, err := f.collect(ctx, c, tenant, server, senders)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(coreerr.ErrConnectionTimeout, "tenant %s: %v", tenant.ID, err)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogFields(tracingLog.Int("messages", len(messages)))
	messagesFetched.Add(float64(len(messages)))
	return messages, nil
}

func (f *Fetcher) collect(ctx context.Context, c session, tenant *models.Tenant, server ServerConfig, senders []string) ([]dto.RawMessage, error) {
	c.SetTimeout(f.authTimeout)
	if err := c.Login(tenant.MailboxUsername, tenant.MailboxPassword); err != nil {
		return nil, errors.Wrapf(err, "failed to login as %s", tenant.MailboxUsername)
	}
	c.SetTimeout(f.commandTimeout)

	status, err := c.Select(f.folder, false)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to select %s", f.folder)
	}

	uids, err := c.UidSearch(searchCriteria(senders))
	if err != nil {
		return nil, errors.Wrap(err, "failed to search unseen messages")
	}
	if len(uids) == 0 {
		return []dto.RawMessage{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchInternalDate, imap.FetchUid}

	ch := make(chan *imap.Message, len(uids))
	fetchDone := make(chan error, 1)
	go func() {
		fetchDone <- c.UidFetch(seqSet, items, ch)
	}()

	var uidValidity uint32
	if status != nil {
		uidValidity = status.UidValidity
	}

	messages := make([]dto.RawMessage, 0, len(uids))
	fetched := new(imap.SeqSet)
	for msg := range ch {
		raw, err := readBody(msg, section)
		if err != nil {
			f.log.Warnf("tenant %s: skipping uid %d: %v", tenant.ID, msg.Uid, err)
			continue
		}
		fallbackID := fmt.Sprintf("imap:%s:%d:%d", server.Host, uidValidity, msg.Uid)
		parsed, err := ParseMessage(raw, fallbackID, msg.InternalDate)
		if err != nil {
			// keep the message; classification records the failure
			f.log.With(zap.String("tenant", tenant.ID), zap.Uint32("uid", msg.Uid)).Warnf("unparseable message: %v", err)
		}
		parsed.UID = msg.Uid
		if parsed.ReceivedAt.IsZero() {
			parsed.ReceivedAt = time.Now().UTC()
		}
		messages = append(messages, parsed)
		fetched.AddNum(msg.Uid)
	}
	if err := <-fetchDone; err != nil {
		return nil, errors.Wrap(err, "failed to fetch messages")
	}

	if f.markSeen && !fetched.Empty() {
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.UidStore(fetched, item, []interface{}{imap.SeenFlag}, nil); err != nil {
			return nil, errors.Wrap(err, "failed to mark messages seen")
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].ReceivedAt.Equal(messages[j].ReceivedAt) {
			return messages[i].UID < messages[j].UID
		}
		return messages[i].ReceivedAt.Before(messages[j].ReceivedAt)
	})
	return messages, nil
}

func (f *Fetcher) logout(tenantID string, c session) {
	c.SetTimeout(5 * time.Second)
	if err := c.Logout(); err != nil {
		f.log.Debugf("tenant %s: logout: %v", tenantID, err)
	}
}

func readBody(msg *imap.Message, section *imap.BodySectionName) ([]byte, error) {
	literal := msg.GetBody(section)
	if literal == nil {
		return nil, errors.New("message has no body")
	}
	return io.ReadAll(literal)
}

// searchCriteria matches unseen messages whose From header contains any of senders.
func searchCriteria(senders []string) *imap.SearchCriteria {
	criteria := fromCriteria(senders)
	criteria.WithoutFlags = []string{imap.SeenFlag}
	return criteria
}

func fromCriteria(senders []string) *imap.SearchCriteria {
	criteria := imap.NewSearchCriteria()
	switch len(senders) {
	case 0:
	case 1:
		criteria.Header.Add("From", senders[0])
	default:
		criteria.Or = [][2]*imap.SearchCriteria{{fromCriteria(senders[:1]), fromCriteria(senders[1:])}}
	}
	return criteria
}

func normalizeSenders(senders []string) []string {
	out := make([]string, 0, len(senders))
	for _, s := range utils.NormalizeList(senders) {
		if !utils.IsStringInSlice(s, out) {
			out = append(out, s)
		}
	}
	return out
}
