package config

import (
	"time"
)

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"12222"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
	AppSource   string `env:"APP_SOURCE" envDefault:"violationstack"`
}

type DatabaseConfig struct {
	Host            string `env:"VIOLATIONSTACK_POSTGRES_HOST,required"`
	Port            string `env:"VIOLATIONSTACK_POSTGRES_PORT,required"`
	User            string `env:"VIOLATIONSTACK_POSTGRES_USER,required"`
	DBName          string `env:"VIOLATIONSTACK_POSTGRES_DB_NAME,required"`
	Password        string `env:"VIOLATIONSTACK_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"VIOLATIONSTACK_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"VIOLATIONSTACK_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"VIOLATIONSTACK_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"VIOLATIONSTACK_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"VIOLATIONSTACK_POSTGRES_SSL_MODE" envDefault:"require"`
}

// R2StorageConfig holds the raw message archive bucket. An empty AccountID disables archiving.
type R2StorageConfig struct {
	AccountID        string `env:"CLOUDFLARE_R2_ACCOUNT_ID"`
	AccessKeyID      string `env:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	AccessKeySecret  string `env:"CLOUDFLARE_R2_ACCESS_KEY_SECRET"`
	RawMessageBucket string `env:"BUCKET_NAME_RAW_MESSAGE" envDefault:"inbound-messages"`
}

// RedisConfig backs the push-ingress fast dedup filter. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	DedupTTL time.Duration `env:"REDIS_DEDUP_TTL" envDefault:"72h"`
}

type WhatsAppConfig struct {
	BaseURL       string        `env:"WHATSAPP_BASE_URL" envDefault:"https://graph.facebook.com/v19.0"`
	Token         string        `env:"WHATSAPP_TOKEN"`
	PhoneNumberID string        `env:"WHATSAPP_PHONE_NUMBER_ID"`
	TemplateName  string        `env:"WHATSAPP_TEMPLATE_NAME"`
	TemplateLang  string        `env:"WHATSAPP_TEMPLATE_LANG" envDefault:"en_US"`
	ForceText     bool          `env:"WHATSAPP_FORCE_TEXT" envDefault:"true"`
	Timeout       time.Duration `env:"WHATSAPP_TIMEOUT" envDefault:"15s"`
	RatePerSecond float64       `env:"WHATSAPP_RATE_PER_SECOND" envDefault:"10"`
	MaxRetries    int           `env:"WHATSAPP_MAX_RETRIES" envDefault:"3"`
	RetryBackoff  time.Duration `env:"WHATSAPP_RETRY_BACKOFF" envDefault:"500ms"`
}

type MailFetchConfig struct {
	AuthTimeout    time.Duration `env:"MAIL_AUTH_TIMEOUT" envDefault:"3s"`
	DialTimeout    time.Duration `env:"MAIL_DIAL_TIMEOUT" envDefault:"10s"`
	Folder         string        `env:"MAIL_FOLDER" envDefault:"INBOX"`
	AllowedSenders []string      `env:"MAIL_DEFAULT_ALLOWED_SENDERS" envSeparator:"," envDefault:"noreply@amazon.com"`
	MarkSeen       bool          `env:"MAIL_MARK_SEEN" envDefault:"true"`
}

type SchedulerConfig struct {
	Mode              string        `env:"SCHEDULER_MODE" envDefault:"timer"`
	Interval          time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"15m"`
	TightInterval     time.Duration `env:"SCHEDULER_TIGHT_INTERVAL" envDefault:"30s"`
	CronSchedule      string        `env:"SCHEDULER_CRON" envDefault:"0 */15 * * * *"`
	MaxSessions       int           `env:"SCHEDULER_MAX_SESSIONS" envDefault:"4"`
	Workers           int           `env:"SCHEDULER_WORKERS" envDefault:"8"`
	PerTenantTimeout  time.Duration `env:"SCHEDULER_TENANT_TIMEOUT" envDefault:"2m"`
	HeartbeatSchedule string        `env:"SCHEDULER_HEARTBEAT_CRON" envDefault:"0 * * * * *"`
	UseLeaderElection bool          `env:"SCHEDULER_LEADER_ELECTION" envDefault:"false"`
	LeaseName         string        `env:"SCHEDULER_LEASE_NAME" envDefault:"violationstack-poller-leader"`
	PodName           string        `env:"POD_NAME" envDefault:"local"`
	Namespace         string        `env:"POD_NAMESPACE" envDefault:"default"`
}

type InboundConfig struct {
	SharedSecret          string   `env:"INBOUND_SHARED_SECRET"`
	AllowedSenderDomains  []string `env:"INBOUND_ALLOWED_SENDER_DOMAINS" envSeparator:","`
	DefaultTenantID       string   `env:"INBOUND_DEFAULT_TENANT_ID"`
	ReprocessDefaultLimit int      `env:"INBOUND_REPROCESS_LIMIT" envDefault:"100"`
}
