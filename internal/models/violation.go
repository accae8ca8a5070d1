package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/utils"
)

// Violation is unique on (tenant, driver, category, source reference).
type Violation struct {
	ID               string                 `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID         string                 `gorm:"column:tenant_id;type:varchar(50);not null;uniqueIndex:idx_violation_dedup,priority:1" json:"tenantId"`
	DriverID         string                 `gorm:"column:driver_id;type:varchar(50);not null;index;uniqueIndex:idx_violation_dedup,priority:2" json:"driverId"`
	Category         enum.ViolationCategory `gorm:"column:violation_type;type:varchar(50);not null;uniqueIndex:idx_violation_dedup,priority:3" json:"violationType"`
	SourceRef        string                 `gorm:"column:source_ref;type:varchar(255);not null;index;uniqueIndex:idx_violation_dedup,priority:4" json:"sourceRef"`
	Source           enum.ViolationSource   `gorm:"column:source;type:varchar(20);not null" json:"source"`
	Status           enum.ViolationStatus   `gorm:"column:status;type:varchar(20);not null" json:"status"`
	OccurredAt       time.Time              `gorm:"column:occurred_at;type:timestamp" json:"occurredAt"`
	RawExcerpt       string                 `gorm:"column:raw_excerpt;type:text" json:"rawExcerpt,omitempty"`
	InboundMessageID *string                `gorm:"column:inbound_message_id;type:varchar(50);index" json:"inboundMessageId,omitempty"`
	CreatedAt        time.Time              `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Violation) TableName() string {
	return "violations"
}

func (v *Violation) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = utils.GenerateNanoIDWithPrefix("viol", 16)
	}
	return nil
}

// ViolationKey is the dedup key of a violation event.
type ViolationKey struct {
	TenantID  string
	DriverID  string
	Category  enum.ViolationCategory
	SourceRef string
}

func (v *Violation) Key() ViolationKey {
	return ViolationKey{
		TenantID:  v.TenantID,
		DriverID:  v.DriverID,
		Category:  v.Category,
		SourceRef: v.SourceRef,
	}
}
