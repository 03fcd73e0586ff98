// Package errtrack reports failed runs to Sentry. With an empty DSN every
// function is a no-op.
package errtrack

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	logx "slackkanbanize/pkg/logx"
)

type Config struct {
	DSN         string
	Environment string
	Release     string
	ServerName  string
}

// Tracker wraps a Sentry hub. The zero value (and nil) is disabled.
type Tracker struct {
	hub *sentry.Hub
	log logx.Logger
}

// Init builds a Tracker. A missing DSN returns a disabled tracker, not an error.
func Init(cfg Config, log logx.Logger) (*Tracker, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.DSN == "" {
		log.Debug("sentry DSN not configured; error tracking disabled")
		return &Tracker{log: log}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		ServerName:  cfg.ServerName,
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if event.Request != nil && event.Request.Headers != nil {
				delete(event.Request.Headers, "Authorization")
				delete(event.Request.Headers, "Apikey")
			}
			return event
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sentry init: %w", err)
	}
	log.Info("sentry initialized", logx.String("environment", cfg.Environment))
	return &Tracker{hub: sentry.NewHub(client, sentry.NewScope()), log: log}, nil
}

// Enabled reports whether events are actually sent.
func (t *Tracker) Enabled() bool { return t != nil && t.hub != nil }

// Capture sends err with tags attached to a fresh scope.
func (t *Tracker) Capture(err error, tags map[string]string) {
	if err == nil || !t.Enabled() {
		return
	}
	t.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		t.hub.CaptureException(err)
	})
	t.log.Debug("exception captured in sentry", logx.Err(err))
}

// Flush waits for queued events; call before the process exits.
func (t *Tracker) Flush(timeout time.Duration) bool {
	if !t.Enabled() {
		return true
	}
	return t.hub.Flush(timeout)
}
