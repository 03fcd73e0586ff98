package kanban

import (
	"context"
	"time"

	"slackkanbanize/internal/activity"
	logx "slackkanbanize/pkg/logx"
)

// DefaultWindow is how far back a pass looks when no lower bound is given.
const DefaultWindow = 60 * time.Minute

// Source is the one board API operation the fetcher needs.
type Source interface {
	BoardActivities(ctx context.Context, boardID, fromUTC, toUTC string) ([]byte, error)
}

// Fetcher requests a board's activities for a local-time window.
type Fetcher struct {
	src     Source
	boardID string
	window  time.Duration
	now     func() time.Time
	log     logx.Logger
}

type FetcherOption func(*Fetcher)

// WithClock overrides time.Now (tests).
func WithClock(now func() time.Time) FetcherOption {
	return func(f *Fetcher) { f.now = now }
}

func WithLogger(log logx.Logger) FetcherOption {
	return func(f *Fetcher) { f.log = log }
}

func NewFetcher(src Source, boardID string, window time.Duration, opts ...FetcherOption) *Fetcher {
	if window <= 0 {
		window = DefaultWindow
	}
	f := &Fetcher{src: src, boardID: boardID, window: window, now: time.Now, log: logx.Nop()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch requests activities between from and to. A zero to means now; a zero
// from means to minus the collection window. Errors are returned unmodified.
func (f *Fetcher) Fetch(ctx context.Context, from, to time.Time) ([]byte, error) {
	if to.IsZero() {
		to = f.now()
	}
	if from.IsZero() {
		from = to.Add(-f.window)
	}
	fromUTC := from.UTC().Format(activity.SourceLayout)
	toUTC := to.UTC().Format(activity.SourceLayout)

	f.log.Debug("fetching board activities",
		logx.String("board", f.boardID),
		logx.String("from_utc", fromUTC),
		logx.String("to_utc", toUTC),
	)
	return f.src.BoardActivities(ctx, f.boardID, fromUTC, toUTC)
}
