package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"slackkanbanize/internal/activity"
	"slackkanbanize/internal/storage"
)

const (
	SinkSlack    = "slack"
	SinkTelegram = "telegram"

	DefaultCollectMinutes = 60
	DefaultSchedule       = "*/5 * * * *"
	DefaultMetricsAddr    = "127.0.0.1:9464"
	DefaultKanbanTimeout  = 30 * time.Second
)

// Defaults returns the configuration used before any file, env or flag is applied.
func Defaults() *Config {
	return &Config{
		Sink: SinkSlack,
		Feed: FeedConfig{
			CollectMinutes: DefaultCollectMinutes,
			Formatter:      "default",
		},
		Delivery: DeliveryConfig{RetryBase: "500ms"},
		Storage:  StorageConfig{Driver: "file"},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Chat:    LoggingChat{MinLevel: "error", RatePerSec: 1},
		},
		Schedule: ScheduleConfig{Spec: DefaultSchedule},
		Metrics:  MetricsConfig{Job: "slack_kanbanize", Addr: DefaultMetricsAddr},
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	missing := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required", field))
		}
	}

	missing("kanbanize.api_key", c.Kanbanize.APIKey)
	missing("kanbanize.board_id", c.Kanbanize.BoardID)

	switch c.sink() {
	case SinkSlack:
		missing("slack.token", c.Slack.Token)
		missing("slack.channel", c.Slack.Channel)
	case SinkTelegram:
		missing("telegram.token", c.Telegram.Token)
		if c.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("telegram.chat_id is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink: unknown value %q (want slack or telegram)", c.Sink))
	}

	if c.Feed.CollectMinutes <= 0 {
		errs = append(errs, fmt.Errorf("feed.collect_minutes must be > 0 (got %d)", c.Feed.CollectMinutes))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("kanbanize.timeout", c.Kanbanize.Timeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("delivery.retry_base", c.Delivery.RetryBase); err != nil {
		errs = append(errs, err)
	}
	if c.Delivery.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("delivery.retry_max must be >= 0"))
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "file", "sqlite", "sqlite3", "memory":
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown value %q", c.Storage.Driver))
	}
	return errors.Join(errs...)
}

func (c *Config) sink() string {
	s := strings.ToLower(strings.TrimSpace(c.Sink))
	if s == "" {
		return SinkSlack
	}
	return s
}

// SinkName returns the normalised sink selector.
func (c *Config) SinkName() string { return c.sink() }

// Window is the collection window of one pass.
func (c *Config) Window() time.Duration {
	if c.Feed.CollectMinutes <= 0 {
		return DefaultCollectMinutes * time.Minute
	}
	return time.Duration(c.Feed.CollectMinutes) * time.Minute
}

// Location resolves feed.timezone; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Feed.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("feed.timezone: %w", err)
	}
	return loc, nil
}

// KanbanTimeout is the HTTP timeout for one board request.
func (c *Config) KanbanTimeout() time.Duration {
	d, err := ParseDurationOrDefault("kanbanize.timeout", c.Kanbanize.Timeout, DefaultKanbanTimeout)
	if err != nil {
		return DefaultKanbanTimeout
	}
	return d
}

// StorageOptions converts the file form into the storage package's options.
func (c *Config) StorageOptions() storage.Config {
	bt, _ := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	return storage.Config{Driver: c.Storage.Driver, Path: c.Storage.Path, BusyTimeout: bt}
}

// RetryBase is the first retry delay of a failed post.
func (c *Config) RetryBase() time.Duration {
	d, err := ParseDurationOrDefault("delivery.retry_base", c.Delivery.RetryBase, 500*time.Millisecond)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// Formatter resolves feed.formatter. ok=false means the name is unknown and
// the default formatter was returned instead.
func (c *Config) Formatter() (activity.FormatFunc, bool) {
	f, ok := activity.LookupFormatter(c.Feed.Formatter)
	if !ok {
		return activity.DefaultFormat, false
	}
	return f, true
}
