// Package scheduler triggers feeder passes on a cron or interval schedule.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "slackkanbanize/pkg/logx"
)

// Job runs one pass. It receives the runner's context, cancelled on Stop.
type Job func(ctx context.Context) error

// Status is the outcome of the most recent pass.
type Status struct {
	LastStart time.Time
	LastEnd   time.Time
	LastErr   error
	Runs      int
	Skipped   int
	Next      time.Time
}

// Runner serialises passes: a tick that fires while the previous pass is
// still running is skipped, never queued.
type Runner struct {
	spec ParsedSpec
	loc  *time.Location
	job  Job
	log  logx.Logger

	mu      sync.Mutex
	c       *cron.Cron
	entry   cron.EntryID
	cancel  context.CancelFunc
	status  Status
	running bool
	passes  sync.WaitGroup
}

func New(spec ParsedSpec, loc *time.Location, job Job, log logx.Logger) (*Runner, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is nil")
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if _, err := spec.Schedule(); err != nil {
		return nil, err
	}
	return &Runner{spec: spec, loc: loc, job: job, log: log.With(logx.String("comp", "scheduler"))}, nil
}

// Start registers the schedule and begins triggering. With immediate set the
// first pass runs right away instead of waiting for the first tick.
func (r *Runner) Start(ctx context.Context, immediate bool) error {
	sched, err := r.spec.Schedule()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.c != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	cl := cronLogger{log: r.log}
	r.c = cron.New(
		cron.WithLocation(r.loc),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		cron.WithLogger(cl),
	)
	r.entry = r.c.Schedule(sched, cron.FuncJob(func() { r.tick(runCtx) }))
	r.c.Start()
	r.log.Info("scheduler started",
		logx.String("schedule", r.spec.String()),
		logx.String("tz", r.loc.String()),
		logx.Time("next", r.c.Entry(r.entry).Next),
	)

	if immediate {
		go r.tick(runCtx)
	}
	return nil
}

func (r *Runner) tick(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.status.Skipped++
		r.mu.Unlock()
		r.log.Warn("previous pass still running; tick skipped")
		return
	}
	r.running = true
	r.status.LastStart = time.Now()
	r.passes.Add(1)
	r.mu.Unlock()
	defer r.passes.Done()

	err := r.job(ctx)

	r.mu.Lock()
	r.running = false
	r.status.LastEnd = time.Now()
	r.status.LastErr = err
	r.status.Runs++
	r.mu.Unlock()
}

// Status returns a snapshot of the last pass and the next planned tick.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	if r.c != nil {
		st.Next = r.c.Entry(r.entry).Next
	}
	return st
}

// Stop stops triggering and waits for a running pass until ctx is done.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	c, cancel := r.c, r.cancel
	r.c, r.cancel = nil, nil
	r.mu.Unlock()
	if c == nil {
		return
	}

	start := time.Now()
	cronDone := c.Stop().Done()
	done := make(chan struct{})
	go func() {
		<-cronDone
		r.passes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warn("stop timed out; cancelling running pass")
	}
	cancel()
	r.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []any) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
