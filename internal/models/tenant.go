package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/customeros/violationstack/internal/enum"
	"github.com/customeros/violationstack/internal/utils"
)

// Tenant is owned by the administrative layer; the pipeline only reads it.
type Tenant struct {
	ID        string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Name      string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"column:slug;type:varchar(255);uniqueIndex" json:"slug"`
	Active    bool      `gorm:"column:active;type:boolean;default:true;index" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`

	// Mailbox credentials
	MailProvider    enum.MailProvider `gorm:"column:mail_provider;type:varchar(50)" json:"mailProvider"`
	MailboxUsername string            `gorm:"column:mailbox_username;type:varchar(255)" json:"mailboxUsername"`
	MailboxPassword string            `gorm:"column:mailbox_password;type:varchar(255)" json:"-"`
	AllowedSenders  pq.StringArray    `gorm:"column:allowed_senders;type:text[]" json:"allowedSenders"`

	// Notification binding
	WhatsAppSenderID string `gorm:"column:whatsapp_sender_id;type:varchar(100)" json:"whatsappSenderId"`
	ContactEmail     string `gorm:"column:contact_email;type:varchar(255)" json:"contactEmail"`
}

func (Tenant) TableName() string {
	return "tenants"
}

func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = utils.GenerateNanoIDWithPrefix("tnt", 16)
	}
	return nil
}

// HasMailCredentials reports whether every field needed to open a mailbox session is set.
func (t *Tenant) HasMailCredentials() bool {
	return t.MailProvider != "" &&
		strings.TrimSpace(t.MailboxUsername) != "" &&
		t.MailboxPassword != ""
}
