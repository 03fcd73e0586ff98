package config

import (
	"strings"

	logx "slackkanbanize/pkg/logx"
)

// SummarizeChange returns the changed sections and safe log attributes.
// Secrets (tokens, api keys, DSNs) are reported only as "set" flags.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Slack != newCfg.Slack {
		changed = append(changed, "slack")
		attrs = append(attrs,
			logx.String("slack.channel", newCfg.Slack.Channel),
			logx.Bool("slack.token_set", strings.TrimSpace(newCfg.Slack.Token) != ""),
		)
	}
	if oldCfg.Kanbanize != newCfg.Kanbanize {
		changed = append(changed, "kanbanize")
		attrs = append(attrs,
			logx.String("kanbanize.board_id", newCfg.Kanbanize.BoardID),
			logx.String("kanbanize.subdomain", newCfg.Kanbanize.Subdomain),
			logx.Bool("kanbanize.api_key_set", strings.TrimSpace(newCfg.Kanbanize.APIKey) != ""),
		)
	}
	if oldCfg.Feed != newCfg.Feed {
		changed = append(changed, "feed")
		attrs = append(attrs,
			logx.Int("feed.collect_minutes", newCfg.Feed.CollectMinutes),
			logx.String("feed.formatter", newCfg.Feed.Formatter),
			logx.String("feed.timezone", newCfg.Feed.Timezone),
		)
	}
	if oldCfg.Sink != newCfg.Sink || oldCfg.Telegram != newCfg.Telegram || oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "sink")
		attrs = append(attrs,
			logx.String("sink", newCfg.SinkName()),
			logx.Int("delivery.retry_max", newCfg.Delivery.RetryMax),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.chat", newCfg.Logging.Chat.Enabled),
		)
	}
	if oldCfg.Schedule != newCfg.Schedule {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.String("schedule.spec", newCfg.Schedule.Spec))
	}
	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
	}
	if oldCfg.Sentry != newCfg.Sentry {
		changed = append(changed, "sentry")
		attrs = append(attrs, logx.Bool("sentry.dsn_set", newCfg.Sentry.DSN != ""))
	}
	return changed, attrs
}
