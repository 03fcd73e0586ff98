package notify

import (
	"context"
	"errors"
	"time"

	"github.com/slack-go/slack"
	tele "gopkg.in/telebot.v4"

	logx "slackkanbanize/pkg/logx"
)

// RetryConfig controls Retrying. RetryMax is the number of extra attempts.
type RetryConfig struct {
	RetryMax int
	Base     time.Duration
	MaxDelay time.Duration
}

type retrySink struct {
	Sink
	cfg RetryConfig
	log logx.Logger
}

// Retrying wraps s so Post is retried on transient failures. Rate limit
// replies wait for the server's retry-after; permanent API errors (unknown
// channel, bad token) fail at once. SendText is not retried.
func Retrying(s Sink, cfg RetryConfig, log logx.Logger) Sink {
	if cfg.RetryMax <= 0 {
		return s
	}
	if cfg.Base <= 0 {
		cfg.Base = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &retrySink{Sink: s, cfg: cfg, log: log}
}

func (r *retrySink) Post(ctx context.Context, msg Message) error {
	var last error
	for attempt := 0; attempt <= r.cfg.RetryMax; attempt++ {
		err := r.Sink.Post(ctx, msg)
		if err == nil {
			return nil
		}
		last = err
		delay, ok := r.retryDelay(err, attempt)
		if !ok || attempt == r.cfg.RetryMax {
			break
		}
		r.log.Debug("post retry scheduled",
			logx.Int("attempt", attempt+2),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			return ctx.Err()
		case <-tmr.C:
		}
	}
	return last
}

func (r *retrySink) retryDelay(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return min(rl.RetryAfter, r.cfg.MaxDelay), true
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return min(time.Duration(flood.RetryAfter)*time.Second, r.cfg.MaxDelay), true
	}
	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return 0, false
	}
	d := r.cfg.Base << attempt
	return min(d, r.cfg.MaxDelay), true
}
