// Package feeder runs one fetch -> group -> render -> post -> persist pass.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slackkanbanize/internal/activity"
	"slackkanbanize/internal/metrics"
	"slackkanbanize/internal/notify"
	"slackkanbanize/internal/storage"
	logx "slackkanbanize/pkg/logx"
)

// Stage names the step a pass failed in.
type Stage string

const (
	StageOpen    Stage = "open"
	StageRead    Stage = "read_watermark"
	StageFetch   Stage = "fetch"
	StageGroup   Stage = "group"
	StagePost    Stage = "post"
	StagePersist Stage = "persist"
)

// StageError tells the caller which step (and so which external call) failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Fetcher returns the raw activity payload for a local window; zero bounds use defaults.
type Fetcher interface {
	Fetch(ctx context.Context, from, to time.Time) ([]byte, error)
}

// StoreOpener opens the watermark store for one pass.
type StoreOpener func() (storage.WatermarkStore, error)

// Deps wires a Feeder. Fetcher, Open and Sink are required.
type Deps struct {
	Fetcher  Fetcher
	Open     StoreOpener
	Grouper  *activity.Grouper
	Renderer activity.Renderer
	Sink     notify.Sink
	Style    notify.Style
	Metrics  *metrics.Metrics
	Log      logx.Logger
}

type Feeder struct {
	d   Deps
	now func() time.Time
}

func New(d Deps) (*Feeder, error) {
	if d.Fetcher == nil || d.Open == nil || d.Sink == nil {
		return nil, errors.New("feeder: fetcher, store opener and sink are required")
	}
	if d.Grouper == nil {
		d.Grouper = activity.NewGrouper(nil, nil)
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	return &Feeder{d: d, now: time.Now}, nil
}

// Report summarises one pass.
type Report struct {
	RunID       string
	Seen        int
	Delivered   int
	Attachments int
	Posted      bool
	Previous    activity.Watermark
	Watermark   activity.Watermark
	Took        time.Duration
}

// Run executes one pass. The watermark is written only after the post
// succeeded (or was skipped because nothing was new), so any failure leaves
// the previous value and the next pass re-covers the same window. The store
// is closed on every path.
func (f *Feeder) Run(ctx context.Context) (rep Report, err error) {
	start := f.now()
	rep.RunID = uuid.NewString()
	log := f.d.Log.With(logx.String("run_id", rep.RunID))

	defer func() {
		rep.Took = f.now().Sub(start)
		var stage string
		var se *StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		f.d.Metrics.Observe(metrics.Run{
			Seen:        rep.Seen,
			Delivered:   rep.Delivered,
			Attachments: rep.Attachments,
			Watermark:   rep.Watermark.Time,
			Took:        rep.Took,
			Err:         err,
			Stage:       stage,
		})
	}()

	st, err := f.d.Open()
	if err != nil {
		return rep, &StageError{Stage: StageOpen, Err: err}
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			err = &StageError{Stage: StagePersist, Err: cerr}
		}
	}()

	prevTime, ok, err := st.Read(ctx)
	if err != nil {
		return rep, &StageError{Stage: StageRead, Err: err}
	}
	if ok {
		rep.Previous = activity.At(prevTime)
	}
	rep.Watermark = rep.Previous

	payload, err := f.d.Fetcher.Fetch(ctx, time.Time{}, time.Time{})
	if err != nil {
		return rep, &StageError{Stage: StageFetch, Err: err}
	}

	res, err := f.d.Grouper.Group(payload, rep.Previous)
	if err != nil {
		return rep, &StageError{Stage: StageGroup, Err: err}
	}
	rep.Seen, rep.Delivered = res.Seen, res.Delivered

	atts := f.d.Renderer.Render(res.Groups)
	rep.Attachments = len(atts)
	if len(atts) > 0 {
		if err := f.d.Sink.Post(ctx, f.d.Style.Build(atts)); err != nil {
			return rep, &StageError{Stage: StagePost, Err: err}
		}
		rep.Posted = true
	}

	if res.ShouldPersist() {
		if err := st.Write(ctx, res.Watermark.Time); err != nil {
			return rep, &StageError{Stage: StagePersist, Err: err}
		}
		rep.Watermark = res.Watermark
	}

	log.Info("pass finished",
		logx.Int("seen", rep.Seen),
		logx.Int("delivered", rep.Delivered),
		logx.Int("attachments", rep.Attachments),
		logx.Bool("posted", rep.Posted),
		logx.String("watermark", rep.Watermark.String()),
	)
	return rep, nil
}
