package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/testutil"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendText(ctx context.Context, to, body string) error {
	return m.Called(ctx, to, body).Error(0)
}

func (m *mockClient) SendTemplate(ctx context.Context, to string, template Template) error {
	return m.Called(ctx, to, template).Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishViolationCreated(ctx context.Context, v *models.Violation) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockPublisher) PublishNotificationFailed(ctx context.Context, a *models.NotificationAttempt) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()
	return appLogger
}

func newService(client Client, store *testutil.MemStore, publisher *mockPublisher, opts Options) *Service {
	svc := NewService(getLogger(), client, store.Repositories().NotificationAttemptRepository, publisher, opts)
	svc.sleep = noSleep
	return svc
}

func delivery() Delivery {
	return Delivery{
		TenantID:    "tnt_1",
		ViolationID: "viol_1",
		Recipient:   "+15550001111",
		Message:     sampleMessage(),
	}
}

func TestNotify_TextMode(t *testing.T) {
	client := &mockClient{}
	client.On("SendText", mock.Anything, "+15550001111", RenderMessage(sampleMessage())).Return(nil).Once()
	store := testutil.NewMemStore()

	svc := newService(client, store, &mockPublisher{}, Options{ForceText: true, TemplateName: "tpl", Retry: DefaultRetryPolicy()})
	result := svc.Notify(context.Background(), delivery())

	assert.True(t, result.Delivered())
	assert.Equal(t, enum.NotificationModeText, result.Mode)
	client.AssertExpectations(t)

	attempts := store.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, enum.NotificationDelivered, attempts[0].Outcome)
	assert.Equal(t, enum.NotificationChannelWhatsApp, attempts[0].Channel)
	assert.Equal(t, "viol_1", attempts[0].ViolationID)
}

func TestNotify_TemplateMode(t *testing.T) {
	client := &mockClient{}
	client.On("SendTemplate", mock.Anything, "+15550001111", Template{
		Name:     "violation_alert",
		Language: "en_GB",
		Params:   TemplateParams(sampleMessage()),
	}).Return(nil).Once()

	svc := newService(client, testutil.NewMemStore(), &mockPublisher{}, Options{
		TemplateName: "violation_alert",
		TemplateLang: "en_GB",
		Retry:        DefaultRetryPolicy(),
	})
	result := svc.Notify(context.Background(), delivery())

	assert.True(t, result.Delivered())
	assert.Equal(t, enum.NotificationModeTemplate, result.Mode)
	client.AssertExpectations(t)
}

func TestNotify_TemplateWithoutNameFallsBackToText(t *testing.T) {
	svc := newService(&mockClient{}, testutil.NewMemStore(), &mockPublisher{}, Options{})

	assert.Equal(t, enum.NotificationModeText, svc.Mode())
}

func TestNotify_TransientRetriedThenDelivered(t *testing.T) {
	client := &mockClient{}
	client.On("SendText", mock.Anything, mock.Anything, mock.Anything).
		Return(transientErr(503, errors.New("unavailable"))).Once()
	client.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	store := testutil.NewMemStore()

	svc := newService(client, store, &mockPublisher{}, Options{Retry: RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}})
	result := svc.Notify(context.Background(), delivery())

	assert.True(t, result.Delivered())
	assert.Equal(t, 1, result.RetryCount)
	require.Len(t, store.Attempts(), 1)
	assert.Equal(t, 1, store.Attempts()[0].RetryCount)
}

func TestNotify_TransientExhaustedRecordsFailure(t *testing.T) {
	client := &mockClient{}
	client.On("SendText", mock.Anything, mock.Anything, mock.Anything).
		Return(transientErr(500, errors.New("boom"))).Times(3)
	publisher := &mockPublisher{}
	publisher.On("PublishNotificationFailed", mock.Anything, mock.MatchedBy(func(a *models.NotificationAttempt) bool {
		return a.Outcome == enum.NotificationFailedTransient && a.RetryCount == 2
	})).Return(nil).Once()
	store := testutil.NewMemStore()

	svc := newService(client, store, publisher, Options{Retry: RetryPolicy{MaxAttempts: 3}})
	result := svc.Notify(context.Background(), delivery())

	assert.Equal(t, enum.NotificationFailedTransient, result.Outcome)
	assert.Error(t, result.Err)
	client.AssertExpectations(t)
	publisher.AssertExpectations(t)

	attempts := store.Attempts()
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].StatusCode)
	assert.Equal(t, 500, *attempts[0].StatusCode)
}

func TestNotify_FatalNotRetried(t *testing.T) {
	client := &mockClient{}
	client.On("SendText", mock.Anything, mock.Anything, mock.Anything).
		Return(fatalErr(401, errors.New("token revoked"))).Once()
	publisher := &mockPublisher{}
	publisher.On("PublishNotificationFailed", mock.Anything, mock.Anything).Return(nil).Once()

	svc := newService(client, testutil.NewMemStore(), publisher, Options{Retry: RetryPolicy{MaxAttempts: 5}})
	result := svc.Notify(context.Background(), delivery())

	assert.Equal(t, enum.NotificationFailedFatal, result.Outcome)
	assert.Equal(t, 0, result.RetryCount)
	client.AssertNumberOfCalls(t, "SendText", 1)
}

func TestNotify_NoRecipientSkipped(t *testing.T) {
	client := &mockClient{}
	store := testutil.NewMemStore()
	d := delivery()
	d.Recipient = " "

	result := newService(client, store, &mockPublisher{}, Options{}).Notify(context.Background(), d)

	assert.Equal(t, enum.NotificationSkipped, result.Outcome)
	client.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, store.Attempts(), 1)
	assert.Equal(t, enum.NotificationSkipped, store.Attempts()[0].Outcome)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(&config.WhatsAppConfig{
		TemplateName: " alert ",
		TemplateLang: "en_US",
		ForceText:    false,
		MaxRetries:   4,
		RetryBackoff: time.Second,
	})

	assert.Equal(t, "alert", opts.TemplateName)
	assert.Equal(t, 4, opts.Retry.MaxAttempts)
	assert.Equal(t, time.Second, opts.Retry.InitialBackoff)
}

func TestNotify_SecondDeliveryForSameViolationIsNotSent(t *testing.T) {
	client := &mockClient{}
	client.On("SendText", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	store := testutil.NewMemStore()
	svc := newService(client, store, &mockPublisher{}, Options{ForceText: true, Retry: DefaultRetryPolicy()})

	first := svc.Notify(context.Background(), delivery())
	second := svc.Notify(context.Background(), delivery())

	assert.True(t, first.Delivered())
	assert.True(t, second.Delivered())
	client.AssertNumberOfCalls(t, "SendText", 1)
	assert.Len(t, store.Attempts(), 1)
}
