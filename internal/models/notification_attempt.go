package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/utils"
)

type NotificationAttempt struct {
	ID          string                   `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID    string                   `gorm:"column:tenant_id;type:varchar(50);not null;index" json:"tenantId"`
	ViolationID string                   `gorm:"column:violation_id;type:varchar(50);not null;index" json:"violationId"`
	Channel     enum.NotificationChannel `gorm:"column:channel;type:varchar(20);not null" json:"channel"`
	Recipient   string                   `gorm:"column:recipient;type:varchar(64)" json:"recipient"`
	Outcome     enum.NotificationOutcome `gorm:"column:outcome;type:varchar(30);not null" json:"outcome"`
	RetryCount  int                      `gorm:"column:retry_count;type:integer;not null;default:0" json:"retryCount"`
	StatusCode  *int                     `gorm:"column:status_code;type:integer" json:"statusCode,omitempty"`
	Error       string                   `gorm:"column:error;type:text" json:"error,omitempty"`
	AttemptedAt time.Time                `gorm:"column:attempted_at;type:timestamp" json:"attemptedAt"`
}

func (NotificationAttempt) TableName() string {
	return "notification_attempts"
}

func (n *NotificationAttempt) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = utils.GenerateNanoIDWithPrefix("ntf", 16)
	}
	return nil
}
