package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	wm := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	m.Observe(Run{Seen: 3, Delivered: 2, Attachments: 2, Watermark: wm, Took: time.Second})
	m.Observe(Run{Seen: 0})
	m.Observe(Run{Err: errors.New("boom"), Stage: "fetch"})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ok", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("empty", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("failed", "fetch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.fetched))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.delivered))
	assert.Equal(t, float64(wm.Unix()), testutil.ToFloat64(m.watermark))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe(Run{Seen: 1})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(Run{Seen: 1, Delivered: 1, Attachments: 1})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "slack_kanbanize_attachments_posted_total 1")
}

func TestPush(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New()
	m.Observe(Run{Seen: 1})
	require.NoError(t, m.Push(context.Background(), srv.URL, ""))
	assert.True(t, strings.HasPrefix(path, "/metrics/job/slack_kanbanize"), path)
}
