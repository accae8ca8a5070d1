package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/config"
)

func newTestClient(url string) *WhatsAppClient {
	return NewWhatsAppClient(&config.WhatsAppConfig{
		BaseURL:       url,
		Token:         "test-token",
		PhoneNumberID: "12345",
		Timeout:       2 * time.Second,
	})
}

func TestSendText_Payload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/12345/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer server.Close()

	err := newTestClient(server.URL).SendText(context.Background(), "+15551234567", "hello")

	require.NoError(t, err)
	assert.Equal(t, "whatsapp", got["messaging_product"])
	assert.Equal(t, "individual", got["recipient_type"])
	assert.Equal(t, "+15551234567", got["to"])
	assert.Equal(t, "text", got["type"])
	assert.Equal(t, map[string]interface{}{"preview_url": false, "body": "hello"}, got["text"])
}

func TestSendTemplate_Payload(t *testing.T) {
	var got templatePayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).SendTemplate(context.Background(), "+15551234567", Template{
		Name:   "violation_alert",
		Params: []string{"Jane", "DRV-1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "template", got.Type)
	assert.Equal(t, "violation_alert", got.Template.Name)
	assert.Equal(t, "en_US", got.Template.Language.Code)
	require.Len(t, got.Template.Components, 1)
	assert.Equal(t, "body", got.Template.Components[0].Type)
	assert.Equal(t, []templateParameter{{Type: "text", Text: "Jane"}, {Type: "text", Text: "DRV-1"}},
		got.Template.Components[0].Parameters)
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer server.Close()

			err := newTestClient(server.URL).SendText(context.Background(), "+1", "x")

			require.Error(t, err)
			var de *DeliveryError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.status, de.StatusCode)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestSend_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestClient(url).SendText(context.Background(), "+1", "x")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSend_TimeoutIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer server.Close()

	client := NewWhatsAppClient(&config.WhatsAppConfig{
		BaseURL:       server.URL,
		Token:         "t",
		PhoneNumberID: "1",
		Timeout:       50 * time.Millisecond,
	})
	err := client.SendText(context.Background(), "+1", "x")

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestSend_MissingCredentialsIsFatal(t *testing.T) {
	client := NewWhatsAppClient(&config.WhatsAppConfig{})

	err := client.SendText(context.Background(), "+1", "x")

	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestSendTemplate_EmptyNameIsFatal(t *testing.T) {
	err := newTestClient("http://unused").SendTemplate(context.Background(), "+1", Template{})

	require.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestSend_PropagatesTraceHeaders(t *testing.T) {
	tracer := mocktracer.New()
	previous := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(previous)

	var headers http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := newTestClient(server.URL).SendText(context.Background(), "+15551234567", "hello")

	require.NoError(t, err)
	assert.NotEmpty(t, headers.Get("Mockpfx-Ids-Traceid"))
	require.Len(t, tracer.FinishedSpans(), 1)
	assert.Equal(t, "WhatsAppClient.SendText", tracer.FinishedSpans()[0].OperationName)
}
