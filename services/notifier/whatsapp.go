package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/tracing"
)

const (
	defaultBaseURL      = "https://graph.facebook.com/v19.0"
	defaultTimeout      = 15 * time.Second
	defaultTemplateLang = "en_US"
	maxErrorBodyBytes   = 2048
)

// Client is one outbound call per invocation; retries belong to the caller.
type Client interface {
	SendText(ctx context.Context, to, body string) error
	SendTemplate(ctx context.Context, to string, template Template) error
}

type Template struct {
	Name     string
	Language string
	Params   []string
}

type WhatsAppClient struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
	limiter       *rate.Limiter
}

func NewWhatsAppClient(cfg *config.WhatsAppConfig) *WhatsAppClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	return &WhatsAppClient{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		token:         strings.TrimSpace(cfg.Token),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
		limiter:       rate.NewLimiter(limit, 1),
	}
}

type textPayload struct {
	MessagingProduct string      `json:"messaging_product"`
	RecipientType    string      `json:"recipient_type"`
	To               string      `json:"to"`
	Type             string      `json:"type"`
	Text             textContent `json:"text"`
}

type textContent struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templatePayload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templateContent `json:"template"`
}

type templateContent struct {
	Name       string              `json:"name"`
	Language   templateLanguage    `json:"language"`
	Components []templateComponent `json:"components"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateComponent struct {
	Type       string              `json:"type"`
	Parameters []templateParameter `json:"parameters"`
}

type templateParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (c *WhatsAppClient) SendText(ctx context.Context, to, body string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WhatsAppClient.SendText")
	defer span.Finish()
	tracing.TagComponentService(span)

	return c.post(ctx, span, textPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             textContent{PreviewURL: false, Body: body},
	})
}

func (c *WhatsAppClient) SendTemplate(ctx context.Context, to string, template Template) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "WhatsAppClient.SendTemplate")
	defer span.Finish()
	tracing.TagComponentService(span)
	span.LogKV("template", template.Name)

	if template.Name == "" {
		return fatalErr(0, errors.New("template name is empty"))
	}
	lang := template.Language
	if lang == "" {
		lang = defaultTemplateLang
	}

	components := []templateComponent{}
	if len(template.Params) > 0 {
		params := make([]templateParameter, 0, len(template.Params))
		for _, p := range template.Params {
			params = append(params, templateParameter{Type: "text", Text: p})
		}
		components = append(components, templateComponent{Type: "body", Parameters: params})
	}

	return c.post(ctx, span, templatePayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: templateContent{
			Name:       template.Name,
			Language:   templateLanguage{Code: lang},
			Components: components,
		},
	})
}

func (c *WhatsAppClient) post(ctx context.Context, span opentracing.Span, payload interface{}) error {
	if c.token == "" || c.phoneNumberID == "" {
		err := fatalErr(0, errors.New("whatsapp token or phone number id not configured"))
		tracing.TraceErr(span, err)
		return err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return transientErr(0, errors.Wrap(err, "rate limiter"))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fatalErr(0, errors.Wrap(err, "marshal payload"))
	}

	url := c.baseURL + "/" + c.phoneNumberID + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fatalErr(0, errors.Wrap(err, "create request"))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req = tracing.InjectSpanContextIntoHTTPRequest(req, span)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		sendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		derr := transientErr(0, err)
		tracing.TraceErr(span, derr)
		return derr
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	span.SetTag("http.status_code", resp.StatusCode)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		sendDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
		return nil
	}

	sendDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	derr := classifyStatus(resp.StatusCode, strings.TrimSpace(string(respBody)))
	tracing.TraceErr(span, derr)
	return derr
}
