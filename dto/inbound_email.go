package dto

import "time"

// InboundEmailRequest is the push-ingress webhook payload.
type InboundEmailRequest struct {
	Secret     string     `json:"secret"`
	TenantId   string     `json:"tenantId"`
	Subject    string     `json:"subject"`
	Text       string     `json:"text"`
	HTML       string     `json:"html"`
	MessageId  string     `json:"messageId"`
	From       string     `json:"from"`
	ReceivedAt *time.Time `json:"receivedAt"`
}

type InboundEmailResponse struct {
	Ok           bool     `json:"ok"`
	Error        string   `json:"error,omitempty"`
	DriverId     string   `json:"driver_id,omitempty"`
	CreatedCount *int     `json:"created_count,omitempty"`
	Violations   []string `json:"violations,omitempty"`
	Dedupe       *bool    `json:"dedupe,omitempty"`
}

// CreateViolationRequest accepts snake_case and camelCase keys; snake_case wins when both are set.
type CreateViolationRequest struct {
	TenantID           string `json:"tenant_id"`
	TenantIDCamel      string `json:"tenantId"`
	DriverID           string `json:"driver_id"`
	DriverIDCamel      string `json:"driverId"`
	ViolationType      string `json:"violation_type"`
	ViolationTypeCamel string `json:"violationType"`
	OccurredAt         string `json:"occurred_at"`
	OccurredAtCamel    string `json:"occurredAt"`
	Source             string `json:"source"`
	SourceRef          string `json:"source_ref"`
	SourceRefCamel     string `json:"sourceRef"`
}

type ReprocessRequest struct {
	TenantId string `json:"tenantId"`
	Limit    int    `json:"limit"`
}
