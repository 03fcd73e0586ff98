package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variables that override file values.
const (
	EnvSlackToken      = "SLACK_TOKEN"
	EnvSlackChannel    = "SLACK_CHANNEL"
	EnvKanbanizeKey    = "KANBANIZE_API_KEY"
	EnvKanbanizeBoard  = "KANBANIZE_BOARD_ID"
	EnvKanbanizeDomain = "KANBANIZE_SUBDOMAIN"
	EnvTelegramToken   = "TELEGRAM_TOKEN"
	EnvTelegramChat    = "TELEGRAM_CHAT_ID"
	EnvSentryDSN       = "SENTRY_DSN"
	EnvLogLevel        = "LOG_LEVEL"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays non-empty environment values onto cfg. A nil lookup uses os.LookupEnv.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	if cfg == nil {
		return
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set(&cfg.Slack.Token, EnvSlackToken)
	set(&cfg.Slack.Channel, EnvSlackChannel)
	set(&cfg.Kanbanize.APIKey, EnvKanbanizeKey)
	set(&cfg.Kanbanize.BoardID, EnvKanbanizeBoard)
	set(&cfg.Kanbanize.Subdomain, EnvKanbanizeDomain)
	set(&cfg.Telegram.Token, EnvTelegramToken)
	set(&cfg.Sentry.DSN, EnvSentryDSN)
	set(&cfg.Logging.Level, EnvLogLevel)

	if v, ok := lookup(EnvTelegramChat); ok {
		if id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
}
