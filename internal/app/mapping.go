package app

import (
	"fmt"

	"slackkanbanize/internal/config"
	"slackkanbanize/internal/notify"
	logx "slackkanbanize/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    cfg.Logging.Chat.Enabled,
			MinLevel:   cfg.Logging.Chat.MinLevel,
			RatePerSec: cfg.Logging.Chat.RatePerSec,
		},
	}
}

func mapStyle(cfg *config.Config) notify.Style {
	return notify.Style{
		Header:    cfg.Slack.Header,
		IconEmoji: cfg.Slack.IconEmoji,
		Username:  cfg.Slack.Username,
	}
}

func newSink(cfg *config.Config, log logx.Logger) (notify.Sink, error) {
	sink, err := newBaseSink(cfg, log)
	if err != nil {
		return nil, err
	}
	return notify.Retrying(sink, notify.RetryConfig{
		RetryMax: cfg.Delivery.RetryMax,
		Base:     cfg.RetryBase(),
	}, log), nil
}

func newBaseSink(cfg *config.Config, log logx.Logger) (notify.Sink, error) {
	switch cfg.SinkName() {
	case config.SinkSlack:
		return notify.NewSlack(notify.SlackConfig{
			Token:   cfg.Slack.Token,
			Channel: cfg.Slack.Channel,
			APIURL:  cfg.Slack.APIURL,
		}, log)
	case config.SinkTelegram:
		return notify.NewTelegram(notify.TelegramConfig{
			Token:    cfg.Telegram.Token,
			ChatID:   cfg.Telegram.ChatID,
			ThreadID: cfg.Telegram.ThreadID,
		}, log)
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}
