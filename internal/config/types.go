package config

// Config is the full runtime configuration. Files may be JSON or YAML; unknown
// keys are rejected so typos surface at load time instead of silently
// falling back to defaults.
type Config struct {
	Slack     SlackConfig     `json:"slack"`
	Kanbanize KanbanizeConfig `json:"kanbanize"`
	Feed      FeedConfig      `json:"feed"`

	// Sink selects where notifications go: "slack" (default) or "telegram".
	Sink     string         `json:"sink"`
	Telegram TelegramConfig `json:"telegram"`
	Delivery DeliveryConfig `json:"delivery"`

	Storage  StorageConfig  `json:"storage"`
	Logging  LoggingConfig  `json:"logging"`
	Schedule ScheduleConfig `json:"schedule"`
	Metrics  MetricsConfig  `json:"metrics"`
	Sentry   SentryConfig   `json:"sentry"`
}

type SlackConfig struct {
	Token     string `json:"token"`
	Channel   string `json:"channel"`
	Username  string `json:"username"`
	IconEmoji string `json:"icon_emoji"`
	Header    string `json:"header"`
	// APIURL overrides the Web API base; mostly useful against a stub.
	APIURL string `json:"api_url,omitempty"`
}

type KanbanizeConfig struct {
	APIKey    string `json:"api_key"`
	BoardID   string `json:"board_id"`
	Subdomain string `json:"subdomain"`
	BaseURL   string `json:"base_url,omitempty"`
	// Timeout is a Go duration string (e.g. "30s").
	Timeout string `json:"timeout,omitempty"`
}

// FeedConfig shapes what one pass fetches and how it is rendered.
//
// Defaults (when omitted):
//   - collect_minutes: 60
//   - formatter: "default"
//   - task_url: the public board card URL
//   - timezone: process local zone
type FeedConfig struct {
	CollectMinutes int    `json:"collect_minutes"`
	Formatter      string `json:"formatter"`
	TaskURL        string `json:"task_url,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// DeliveryConfig opts into retrying a failed post within one pass. Off by
// default: a failed post fails the pass, and a retry after a lost reply can
// post the same activities twice.
type DeliveryConfig struct {
	RetryMax int `json:"retry_max"`
	// RetryBase is a Go duration string; the delay doubles per attempt.
	RetryBase string `json:"retry_base,omitempty"`
}

// StorageConfig controls where the watermark lives.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./watermark.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
	Chat    LoggingChat `json:"chat"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingChat mirrors warn+ log lines into the notification channel.
type LoggingChat struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ScheduleConfig is used by the serve command only.
type ScheduleConfig struct {
	// Spec accepts a cron expression, "@every 5m", a bare duration, or "HH:MM".
	Spec     string `json:"spec"`
	Timezone string `json:"timezone,omitempty"`
}

type MetricsConfig struct {
	// PushURL sends one-shot run metrics to a Pushgateway when set.
	PushURL string `json:"push_url,omitempty"`
	Job     string `json:"job,omitempty"`
	// Addr is the serve-mode listen address for /metrics and /healthz.
	Addr string `json:"addr,omitempty"`
	// Pprof mounts /debug on the same listener.
	Pprof bool `json:"pprof,omitempty"`
}

type SentryConfig struct {
	DSN         string `json:"dsn"`
	Environment string `json:"environment,omitempty"`
}
