package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/utils"
)

// InboundMessage is one fetched or pushed email. Status only moves out of pending.
type InboundMessage struct {
	ID         string              `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID   string              `gorm:"column:tenant_id;type:varchar(50);not null;index;uniqueIndex:idx_inbound_tenant_message" json:"tenantId"`
	MessageID  string              `gorm:"column:message_id;type:varchar(255);not null;uniqueIndex:idx_inbound_tenant_message" json:"messageId"`
	Channel    enum.InboundChannel `gorm:"column:channel;type:varchar(20);not null" json:"channel"`
	Subject    string              `gorm:"column:subject;type:varchar(1000)" json:"subject"`
	FromAddr   string              `gorm:"column:from_address;type:varchar(255);index" json:"from"`
	BodyText   string              `gorm:"column:body_text;type:text" json:"-"`
	StorageKey string              `gorm:"column:storage_key;type:varchar(500)" json:"storageKey,omitempty"`
	ReceivedAt time.Time           `gorm:"column:received_at;type:timestamp;index" json:"receivedAt"`
	Status     enum.InboundStatus  `gorm:"column:parsed_status;type:varchar(20);not null;default:pending;index" json:"status"`
	Extraction JSONMap             `gorm:"column:extraction;type:jsonb" json:"extraction,omitempty"`
	Reason     string              `gorm:"column:reason;type:text" json:"reason,omitempty"`
	CreatedAt  time.Time           `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt  time.Time           `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (InboundMessage) TableName() string {
	return "inbound_messages"
}

func (m *InboundMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("inb", 16)
	}
	if m.Status == "" {
		m.Status = enum.InboundStatusPending
	}
	return nil
}
