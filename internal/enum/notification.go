package enum

type NotificationChannel string

const (
	NotificationChannelWhatsApp NotificationChannel = "whatsapp"
)

func (c NotificationChannel) String() string {
	return string(c)
}

type NotificationOutcome string

const (
	NotificationDelivered       NotificationOutcome = "delivered"
	NotificationFailedTransient NotificationOutcome = "failed_transient"
	NotificationFailedFatal     NotificationOutcome = "failed_fatal"
	NotificationSkipped         NotificationOutcome = "skipped"
)

func (o NotificationOutcome) String() string {
	return string(o)
}

type NotificationMode string

const (
	NotificationModeText     NotificationMode = "text"
	NotificationModeTemplate NotificationMode = "template"
)
