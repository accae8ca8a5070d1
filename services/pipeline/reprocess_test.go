package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/dto"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/interfaces"
	"github.com/customeros/violationstack/internal/models"
)

func seedPending(t *testing.T, f *fixture, messageID, body string, received time.Time) *models.InboundMessage {
	t.Helper()
	inbound, created, err := f.store.Repositories().InboundMessageRepository.CreateIfAbsent(context.Background(), &models.InboundMessage{
		TenantID:   tenantID,
		MessageID:  messageID,
		Channel:    enum.InboundChannelIMAP,
		Subject:    "Safety Alert",
		BodyText:   body,
		ReceivedAt: received,
	})
	require.NoError(t, err)
	require.True(t, created)
	return inbound
}

func TestReprocess_SettlesPendingOldestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := seedPending(t, f, "r-2", "Driver ID: DRV-9999 overspeeding", base.Add(time.Hour))
	older := seedPending(t, f, "r-1", "Driver ID: DRV-1001 overspeeding", base)
	blank := seedPending(t, f, "r-3", "nothing to see here", base.Add(2*time.Hour))

	report, err := f.pipeline.Reprocess(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	require.Len(t, report.Items, 3)
	assert.Equal(t, older.ID, report.Items[0].InboundMessageId)
	assert.Equal(t, dto.OutcomeCreated, report.Items[0].Outcome)
	assert.Equal(t, newer.ID, report.Items[1].InboundMessageId)
	assert.Equal(t, dto.OutcomeDriverNotFound, report.Items[1].Outcome)
	assert.Equal(t, blank.ID, report.Items[2].InboundMessageId)
	assert.Equal(t, 1, report.Counts[dto.OutcomeCreated])

	statuses := map[string]enum.InboundStatus{}
	for _, m := range f.store.InboundMessages() {
		statuses[m.ID] = m.Status
	}
	assert.Equal(t, enum.InboundStatusParsed, statuses[older.ID])
	assert.Equal(t, enum.InboundStatusParsed, statuses[newer.ID])
	assert.Equal(t, enum.InboundStatusFailed, statuses[blank.ID])

	again, err := f.pipeline.Reprocess(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
}

func TestReprocess_RespectsTenantAndLimit(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedPending(t, f, "a", "Driver ID: DRV-1001 overspeeding", base)
	seedPending(t, f, "b", "Driver ID: DRV-1001 seatbelt", base.Add(time.Minute))

	report, err := f.pipeline.Reprocess(context.Background(), tenantID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)

	other, err := f.pipeline.Reprocess(context.Background(), "tnt_other", 10)
	require.NoError(t, err)
	assert.Zero(t, other.Scanned)
}

func TestReprocess_LoadsArchivedBody(t *testing.T) {
	f := newFixture(t)
	inbound := seedPending(t, f, "arch-1", "", time.Now())
	raw := "From: noreply@amazon.com\r\nSubject: Safety Alert\r\nMessage-Id: <arch-1>\r\n\r\nDriver ID: DRV-1001 tailgating\r\n"
	key := "inbound/" + tenantID + "/" + inbound.ID + ".eml"
	require.NoError(t, f.storage.Upload(context.Background(), key, []byte(raw), "message/rfc822"))
	require.NoError(t, f.store.Repositories().InboundMessageRepository.SetStorageKey(context.Background(), inbound.ID, key))

	report, err := f.pipeline.Reprocess(context.Background(), tenantID, 10)

	require.NoError(t, err)
	require.Len(t, report.Items, 1)
	assert.Equal(t, dto.OutcomeCreated, report.Items[0].Outcome)
	require.Len(t, f.store.Violations(), 1)
	assert.Equal(t, enum.ViolationFollowingDistance, f.store.Violations()[0].Category)
}

// settlingInboundRepository settles the first listed row as if another replica got there first.
type settlingInboundRepository struct {
	interfaces.InboundMessageRepository
}

func (r settlingInboundRepository) ListPending(ctx context.Context, tenantID string, limit int) ([]*models.InboundMessage, error) {
	pending, err := r.InboundMessageRepository.ListPending(ctx, tenantID, limit)
	if err != nil || len(pending) == 0 {
		return pending, err
	}
	err = r.InboundMessageRepository.MarkProcessed(ctx, pending[0].ID, enum.InboundStatusParsed, nil, "")
	return pending, err
}

func TestReprocess_SkipsMessageSettledSinceListing(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	settled := seedPending(t, f, "c-1", "Driver ID: DRV-1001 overspeeding", base)
	open := seedPending(t, f, "c-2", "Driver ID: DRV-1001 seatbelt not worn", base.Add(time.Minute))

	repos := f.store.Repositories()
	repos.InboundMessageRepository = settlingInboundRepository{repos.InboundMessageRepository}
	p := New(getLogger(), repos, f.notifier, WithStorage(f.storage))

	report, err := p.Reprocess(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	require.Len(t, report.Items, 1)
	assert.Equal(t, open.ID, report.Items[0].InboundMessageId)
	for _, v := range f.store.Violations() {
		assert.NotEqual(t, "c-1", v.SourceRef, "settled message %s was run again", settled.ID)
	}
}
