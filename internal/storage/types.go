package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrClosed = errors.New("watermark store closed")

	// ErrMalformedWatermark means the persisted value could not be parsed.
	// It is never silently reset: a reset would re-deliver old activities.
	ErrMalformedWatermark = errors.New("malformed watermark")
)

// Layout is the persisted textual form of a watermark (microsecond precision, naive UTC).
const Layout = "2006-01-02T15:04:05.000000"

// DefaultFileName is created under the user's home directory.
const DefaultFileName = ".slack-kanbanize-last-msg"

// Config configures storage.
//
// Driver values: "file" (default), "sqlite", "memory".
// An empty Path selects ~/.slack-kanbanize-last-msg for the file driver.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// WatermarkStore persists the UTC instant of the last delivered activity.
type WatermarkStore interface {
	// Read returns ok=false when nothing has been persisted yet.
	Read(ctx context.Context) (t time.Time, ok bool, err error)
	// Write replaces the stored value durably before returning.
	Write(ctx context.Context, t time.Time) error
	Close() error
}

// Format serialises t in Layout (UTC).
func Format(t time.Time) string { return t.UTC().Format(Layout) }

// Parse reads a value produced by Format.
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.Join(ErrMalformedWatermark, err)
	}
	return t, nil
}
