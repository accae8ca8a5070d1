package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/customeros/violationstack/api/handlers"
	"github.com/customeros/violationstack/api/middleware"
	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/models"
	"github.com/customeros/violationstack/internal/testutil"
	"github.com/customeros/violationstack/internal/utils"
	"github.com/customeros/violationstack/services/notifier"
	"github.com/customeros/violationstack/services/pipeline"
	"github.com/customeros/violationstack/services/scheduler"
)

const (
	testTenant = "tnt_acme"
	testSecret = "inbound-secret"
	testAPIKey = "api-key"
)

type silentNotifier struct{}

func (silentNotifier) Notify(context.Context, notifier.Delivery) notifier.Result {
	return notifier.Result{Outcome: enum.NotificationDelivered, Mode: enum.NotificationModeText}
}

type staticStatus struct{}

func (staticStatus) Status() scheduler.Status {
	return scheduler.Status{Cycles: 3, Tenants: []scheduler.TenantStatus{{TenantID: testTenant, Result: scheduler.TenantSucceeded}}}
}

type testServer struct {
	router *gin.Engine
	store  *testutil.MemStore
	driver *models.Driver
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	appLogger := logger.NewAppLogger(&logger.Config{DevMode: true})
	appLogger.InitLogger()

	store := testutil.NewMemStore()
	store.AddTenant(&models.Tenant{ID: testTenant, Name: "Acme", Active: true})
	driver := store.AddDriver(&models.Driver{
		TenantID:         testTenant,
		Name:             "Jane Doe",
		ExternalDriverID: "DRV-1001",
		VehicleNumber:    utils.ToPtr("KA01AB1234"),
		WhatsAppE164:     "+15550001111",
	})

	cfg := &config.Config{
		AppConfig: &config.AppConfig{APIKey: testAPIKey, AppSource: "violationstack"},
		InboundConfig: &config.InboundConfig{
			SharedSecret:          testSecret,
			AllowedSenderDomains:  []string{"amazon.com"},
			DefaultTenantID:       testTenant,
			ReprocessDefaultLimit: 100,
		},
	}
	p := pipeline.New(appLogger, store.Repositories(), silentNotifier{},
		pipeline.WithAllowedSenderDomains(cfg.InboundConfig.AllowedSenderDomains))

	router := gin.New()
	RegisterRoutes(router, appLogger, cfg, p, staticStatus{})
	return &testServer{router: router, store: store, driver: driver}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" && bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}
	return w, decoded
}

func inboundEmail(messageID, text string) map[string]any {
	return map[string]any{
		"secret":    testSecret,
		"subject":   "Safety Alert",
		"text":      text,
		"messageId": messageID,
		"from":      "Amazon <noreply@amazon.com>",
	}
}

func apiKey() map[string]string {
	return map[string]string{"X-VIOLATIONSTACK-API-KEY": testAPIKey}
}

func TestHealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIdHeader))

	w, body = s.do(t, http.MethodGet, "/status", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["cycles"])

	w, _ = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestIdIsEchoed(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", nil, map[string]string{middleware.RequestIdHeader: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(middleware.RequestIdHeader))
}

func TestInboundEmail_CreatesThenDedupes(t *testing.T) {
	s := newTestServer(t)
	payload := inboundEmail("<msg-1@amazon.com>", "Driver ID: DRV-1001 was overspeeding and seatbelt not worn")

	w, body := s.do(t, http.MethodPost, "/v1/inbound/email", payload, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, s.driver.ID, body["driver_id"])
	assert.Equal(t, float64(2), body["created_count"])
	assert.ElementsMatch(t, []any{"OverSpeeding", "SeatBelt"}, body["violations"])
	assert.Equal(t, false, body["dedupe"])

	w, body = s.do(t, http.MethodPost, "/v1/inbound/email", payload, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, true, body["dedupe"])
	assert.Len(t, s.store.Violations(), 2)
}

func TestInboundEmail_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	s.store.AddDriver(&models.Driver{TenantID: testTenant, Name: "Twin A", ExternalDriverID: "DRV-2000"})
	s.store.AddDriver(&models.Driver{TenantID: testTenant, Name: "Twin B", ExternalDriverID: "DRV-2000"})

	wrongSecret := inboundEmail("m-secret", "Driver ID: DRV-1001 overspeeding")
	wrongSecret["secret"] = "nope"
	badSender := inboundEmail("m-sender", "Driver ID: DRV-1001 overspeeding")
	badSender["from"] = "someone@evil.example"
	lookalikeSender := inboundEmail("m-lookalike", "Driver ID: DRV-1001 overspeeding")
	lookalikeSender["from"] = "alerts@notamazon.com"
	unknownTenant := inboundEmail("m-ghost", "Driver ID: DRV-1001 overspeeding")
	unknownTenant["tenantId"] = "tnt_ghost"

	tests := []struct {
		name    string
		payload any
		status  int
		err     string
	}{
		{"invalid json", "{not json", http.StatusBadRequest, "Invalid JSON"},
		{"wrong secret", wrongSecret, http.StatusUnauthorized, "Unauthorized"},
		{"sender not allowed", badSender, http.StatusForbidden, "Sender not allowed"},
		{"lookalike sender domain", lookalikeSender, http.StatusForbidden, "Sender not allowed"},
		{"unknown tenant", unknownTenant, http.StatusInternalServerError, "Default tenant not configured"},
		{"no driver reference", inboundEmail("m-noref", "someone was overspeeding"), http.StatusUnprocessableEntity, "No driver reference detected"},
		{"no keywords", inboundEmail("m-nokw", "Driver ID: DRV-1001 had a great day"), http.StatusUnprocessableEntity, "No violation keywords found"},
		{"driver not found", inboundEmail("m-missing", "Driver ID: DRV-9999 overspeeding"), http.StatusNotFound, "Driver not found"},
		{"ambiguous driver", inboundEmail("m-twins", "Driver ID: DRV-2000 overspeeding"), http.StatusConflict, "Multiple drivers match this reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := s.do(t, http.MethodPost, "/v1/inbound/email", tt.payload, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tt.err, body["error"])
		})
	}
	assert.Empty(t, s.store.Violations())
}

func TestInboundEmail_SecretFromHeader(t *testing.T) {
	s := newTestServer(t)
	payload := inboundEmail("m-header", "Driver ID: DRV-1001 overspeeding")
	delete(payload, "secret")

	w, _ := s.do(t, http.MethodPost, "/v1/inbound/email", payload, map[string]string{handlers.InboundSecretHeader: testSecret})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCreateViolation(t *testing.T) {
	s := newTestServer(t)
	payload := map[string]any{
		"driverId":       s.driver.ID,
		"violation_type": "phoneuse",
		"occurred_at":    "2025-03-01T10:15:00",
		"source_ref":     "ticket-7",
	}

	w, body := s.do(t, http.MethodPost, "/v1/violations", payload, apiKey())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	violation := body["violation"].(map[string]any)
	assert.Equal(t, "PhoneUse", violation["violationType"])
	assert.Equal(t, "pending_match", violation["status"])
	assert.Equal(t, "api", violation["source"])
	assert.Equal(t, "2025-03-01T10:15:00Z", violation["occurredAt"])

	w, body = s.do(t, http.MethodPost, "/v1/violations", payload, apiKey())
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, violation["id"], body["violation"].(map[string]any)["id"])
}

func TestCreateViolation_Validation(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/v1/violations", map[string]any{"driverId": s.driver.ID, "violationType": "Speeding"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, body := s.do(t, http.MethodPost, "/v1/violations", map[string]any{"driverId": s.driver.ID, "violationType": "Speeding"}, apiKey())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, body["allowed"], len(enum.ViolationCategories))

	w, body = s.do(t, http.MethodPost, "/v1/violations", map[string]any{"violationType": "SeatBelt", "occurredAt": "yesterday"}, apiKey())
	assert.Equal(t, http.StatusBadRequest, w.Code)
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "driver_id")
	assert.Contains(t, details, "occurred_at")

	w, _ = s.do(t, http.MethodPost, "/v1/violations", map[string]any{"driverId": "drv_unknown", "violationType": "SeatBelt"}, apiKey())
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/v1/violations", map[string]any{"driverId": s.driver.ID, "violationType": "SeatBelt"},
		map[string]string{"X-VIOLATIONSTACK-API-KEY": testAPIKey, "X-Tenant-Id": "tnt_other"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReprocess(t *testing.T) {
	s := newTestServer(t)

	w, body := s.do(t, http.MethodPost, "/v1/inbound/reprocess", nil, apiKey())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := body["report"].(map[string]any)
	assert.Equal(t, float64(0), report["scanned"])

	w, _ = s.do(t, http.MethodPost, "/v1/inbound/reprocess", map[string]any{"limit": -1}, apiKey())
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
