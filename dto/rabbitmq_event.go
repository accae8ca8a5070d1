package dto

import (
	"time"

	"github.com/customeros/violationstack/internal/enum"
)

type Event struct {
	Event    EventDetails  `json:"event"`
	Metadata EventMetadata `json:"metadata"`
}

type EventDetails struct {
	Id         string          `json:"id"`
	Tenant     string          `json:"tenant"`
	EntityId   string          `json:"entityId"`
	EntityType enum.EntityType `json:"entityType"`
	EventType  string          `json:"eventType"`
	Data       interface{}     `json:"data"`
}

type EventMetadata struct {
	UberTraceId string `json:"uber-trace-id"`
	AppSource   string `json:"appSource"`
	RequestId   string `json:"requestId,omitempty"`
	Timestamp   string `json:"timestamp"`
}

type ViolationCreated struct {
	ViolationId   string                 `json:"violationId"`
	DriverId      string                 `json:"driverId"`
	ViolationType enum.ViolationCategory `json:"violationType"`
	Source        enum.ViolationSource   `json:"source"`
	SourceRef     string                 `json:"sourceRef"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

type NotificationFailed struct {
	ViolationId string                   `json:"violationId"`
	Channel     enum.NotificationChannel `json:"channel"`
	Outcome     enum.NotificationOutcome `json:"outcome"`
	RetryCount  int                      `json:"retryCount"`
	Error       string                   `json:"error"`
}
