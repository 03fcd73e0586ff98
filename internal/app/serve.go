package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"slackkanbanize/internal/config"
	"slackkanbanize/internal/scheduler"
	logx "slackkanbanize/pkg/logx"
)

// ServeOptions controls the long-running mode.
type ServeOptions struct {
	// Schedule overrides schedule.spec when non-empty.
	Schedule string
	// Immediate runs one pass at startup.
	Immediate bool
}

// Serve runs passes on a schedule until ctx is cancelled. Each pass reads
// the manager's current config, so file edits apply on the next tick. A
// schedule change needs a restart.
func (a *App) Serve(ctx context.Context, mgr *config.Manager, opts ServeOptions) error {
	cfg := mgr.Get()
	if cfg == nil {
		cfg = a.cfg
	}
	raw := opts.Schedule
	if raw == "" {
		raw = cfg.Schedule.Spec
	}
	spec, err := scheduler.ParseSchedule(raw)
	if err != nil {
		return err
	}
	loc := time.Local
	if tz := cfg.Schedule.Timezone; tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return err
		}
	}

	runner, err := scheduler.New(spec, loc, func(ctx context.Context) error {
		cur := mgr.Get()
		if cur == nil {
			cur = a.cfg
		}
		_, err := a.RunOnce(ctx, cur)
		return err
	}, a.log)
	if err != nil {
		return err
	}

	mgr.SetLogger(a.log.With(logx.String("comp", "config")))
	mgr.SetValidator(func(_ context.Context, c *config.Config) error { return c.Validate() })

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := mgr.Subscribe(1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = mgr.Watch(ctx)
	}()
	go func() {
		defer wg.Done()
		defer mgr.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-updates:
				if c == nil {
					continue
				}
				a.ApplyLogging(c)
				if c.Schedule != cfg.Schedule && opts.Schedule == "" {
					a.log.Warn("schedule changed in config; restart to apply", logx.String("schedule", c.Schedule.Spec))
				}
			}
		}
	}()

	srv, err := a.startStatusServer(cfg.Metrics.Addr, runner)
	if err != nil {
		return err
	}

	if err := runner.Start(ctx, opts.Immediate); err != nil {
		_ = srv.Close()
		return err
	}
	notifySystemd(a.log, daemon.SdNotifyReady)
	stopWatchdog := startWatchdog(ctx, a.log)

	<-ctx.Done()
	a.log.Info("shutting down")
	notifySystemd(a.log, daemon.SdNotifyStopping)
	stopWatchdog()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	runner.Stop(stopCtx)
	if err := srv.Shutdown(stopCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.log.Warn("status server shutdown", logx.Err(err))
	}
	return nil
}

func (a *App) startStatusServer(addr string, runner *scheduler.Runner) (*http.Server, error) {
	if addr == "" {
		addr = config.DefaultMetricsAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:           a.statusRouter(runner),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("status server stopped", logx.Err(err))
		}
	}()
	a.log.Info("status server listening", logx.String("addr", ln.Addr().String()))
	return srv, nil
}

func notifySystemd(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.Err(err), logx.String("state", state))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// startWatchdog pings systemd at half the configured WatchdogSec.
func startWatchdog(ctx context.Context, log logx.Logger) func() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				notifySystemd(log, daemon.SdNotifyWatchdog)
			}
		}
	}()
	return cancel
}
