package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/customeros/violationstack/internal/utils"
)

type Driver struct {
	ID               string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	TenantID         string    `gorm:"column:tenant_id;type:varchar(50);not null;uniqueIndex:idx_driver_tenant_external;uniqueIndex:idx_driver_tenant_vehicle" json:"tenantId"`
	Name             string    `gorm:"column:name;type:varchar(255)" json:"name"`
	ExternalDriverID string    `gorm:"column:external_driver_id;type:varchar(100);uniqueIndex:idx_driver_tenant_external" json:"externalDriverId"`
	VehicleNumber    *string   `gorm:"column:vehicle_number;type:varchar(100);uniqueIndex:idx_driver_tenant_vehicle" json:"vehicleNumber,omitempty"`
	WhatsAppE164     string    `gorm:"column:whatsapp_e164;type:varchar(32)" json:"whatsappE164"`
	CreatedAt        time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt        time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Driver) TableName() string {
	return "drivers"
}

func (d *Driver) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = utils.GenerateNanoIDWithPrefix("drv", 16)
	}
	return nil
}
