// Package app wires configuration into a runnable feeder: chat sink,
// logging, board client, watermark store, metrics and error tracking.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"slackkanbanize/internal/activity"
	"slackkanbanize/internal/config"
	"slackkanbanize/internal/errtrack"
	"slackkanbanize/internal/feeder"
	"slackkanbanize/internal/kanban"
	"slackkanbanize/internal/metrics"
	"slackkanbanize/internal/storage"
	logx "slackkanbanize/pkg/logx"
)

// Options carries what the process knows before the config is loaded.
type Options struct {
	Version string
	// BootLog is used until the logging service is up.
	BootLog logx.Logger
}

type App struct {
	cfg *config.Config

	log     logx.Logger
	logs    *logx.Service
	metrics *metrics.Metrics
	tracker *errtrack.Tracker
}

// New validates cfg and builds the long-lived services. Per-pass components
// (board client, sink, store) are built by Feeder so reloaded config applies
// on the next pass.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	boot := opts.BootLog
	if boot.IsZero() {
		boot = logx.NewConsole(cfg.Logging.Level)
	}

	// The log chat sink posts to the same channel as notifications.
	var sender logx.ChatSender
	if cfg.Logging.Chat.Enabled {
		sink, err := newSink(cfg, boot.With(logx.String("comp", "logsink")))
		if err != nil {
			return nil, err
		}
		sender = sink
	}
	logSvc, log := logx.NewService(mapLoggingConfig(cfg), sender)

	host, _ := os.Hostname()
	tracker, err := errtrack.Init(errtrack.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		Release:     opts.Version,
		ServerName:  host,
	}, log.With(logx.String("comp", "errtrack")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		metrics: metrics.New(),
		tracker: tracker,
	}, nil
}

func (a *App) Log() logx.Logger          { return a.log }
func (a *App) Metrics() *metrics.Metrics { return a.metrics }
func (a *App) Config() *config.Config    { return a.cfg }

// ApplyLogging swaps log levels and outputs after a config reload.
func (a *App) ApplyLogging(cfg *config.Config) {
	a.logs.Apply(mapLoggingConfig(cfg))
}

// Feeder builds a feeder for one pass from cfg.
func (a *App) Feeder(cfg *config.Config) (*feeder.Feeder, error) {
	format, ok := cfg.Formatter()
	if !ok {
		a.log.Warn("unknown formatter; using default",
			logx.String("formatter", cfg.Feed.Formatter),
			logx.Any("available", activity.FormatterNames()),
		)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	sink, err := newSink(cfg, a.log.With(logx.String("comp", "sink")))
	if err != nil {
		return nil, err
	}

	client := kanban.NewClient(kanban.ClientConfig{
		APIKey:    cfg.Kanbanize.APIKey,
		Subdomain: cfg.Kanbanize.Subdomain,
		BaseURL:   cfg.Kanbanize.BaseURL,
		Timeout:   cfg.KanbanTimeout(),
	})
	fetcher := kanban.NewFetcher(client, cfg.Kanbanize.BoardID, cfg.Window(),
		kanban.WithLogger(a.log.With(logx.String("comp", "kanban"))))

	storeCfg := cfg.StorageOptions()
	storeLog := a.log.With(logx.String("comp", "storage"))

	return feeder.New(feeder.Deps{
		Fetcher:  fetcher,
		Open:     func() (storage.WatermarkStore, error) { return storage.Open(storeCfg, storeLog) },
		Grouper:  activity.NewGrouper(format, loc),
		Renderer: activity.Renderer{BoardID: cfg.Kanbanize.BoardID, TaskURL: cfg.Feed.TaskURL},
		Sink:     sink,
		Style:    mapStyle(cfg),
		Metrics:  a.metrics,
		Log:      a.log.With(logx.String("comp", "feeder")),
	})
}

// RunOnce executes one pass with cfg and reports failures to error tracking.
func (a *App) RunOnce(ctx context.Context, cfg *config.Config) (feeder.Report, error) {
	if cfg == nil {
		cfg = a.cfg
	}
	f, err := a.Feeder(cfg)
	if err != nil {
		return feeder.Report{}, err
	}
	rep, err := f.Run(ctx)
	if err != nil {
		tags := map[string]string{"run_id": rep.RunID, "board_id": cfg.Kanbanize.BoardID}
		var se *feeder.StageError
		if errors.As(err, &se) {
			tags["stage"] = string(se.Stage)
		}
		a.tracker.Capture(err, tags)
		a.log.Error("pass failed", logx.Err(err), logx.String("run_id", rep.RunID))
	}
	return rep, err
}

// PushMetrics sends the registry to the configured Pushgateway, if any.
func (a *App) PushMetrics(ctx context.Context) {
	url := a.cfg.Metrics.PushURL
	if url == "" {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.metrics.Push(pctx, url, a.cfg.Metrics.Job); err != nil {
		a.log.Warn("metrics push failed", logx.Err(err), logx.String("url", url))
	}
}

// Close flushes error tracking and stops the logging service.
func (a *App) Close() error {
	a.tracker.Flush(2 * time.Second)
	return a.logs.Close()
}
