package notifier

import (
	"fmt"
	"time"

	"github.com/customeros/violationstack/internal/enum"
)

type MessageData struct {
	DriverName       string
	DriverExternalID string
	Category         enum.ViolationCategory
	VIN              string
	OccurredAt       time.Time
}

// FormatDate renders t in UTC as 2006-01-02T15:04:05+0000.
func FormatDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "+0000"
}

func (m MessageData) vin() string {
	if m.VIN == "" {
		return "N/A"
	}
	return m.VIN
}

func RenderMessage(m MessageData) string {
	return fmt.Sprintf("🚨 Safety Violation 🚨\nDriver: %s (%s)\nViolation: %s\nVIN: %s\nDate: %s",
		m.DriverName, m.DriverExternalID, m.Category.Label(), m.vin(), FormatDate(m.OccurredAt))
}

// TemplateParams are the positional body parameters of the approved template.
func TemplateParams(m MessageData) []string {
	return []string{m.DriverName, m.DriverExternalID, m.Category.Label(), m.vin(), FormatDate(m.OccurredAt)}
}
