package feeder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackkanbanize/internal/activity"
	"slackkanbanize/internal/metrics"
	"slackkanbanize/internal/notify"
	"slackkanbanize/internal/storage"
)

type fakeFetcher struct {
	payload string
	err     error
	calls   int
}

func (f *fakeFetcher) Fetch(context.Context, time.Time, time.Time) ([]byte, error) {
	f.calls++
	return []byte(f.payload), f.err
}

type fakeSink struct {
	posts []notify.Message
	err   error
}

func (s *fakeSink) Post(_ context.Context, m notify.Message) error {
	if s.err != nil {
		return s.err
	}
	s.posts = append(s.posts, m)
	return nil
}

func (s *fakeSink) SendText(context.Context, string) error { return nil }

const threeRecords = `{"activities":[
	{"author":"alice","event":"Task moved","text":"to Done","taskid":"101","date":"2024-03-01 15:00:00"},
	{"author":"bob","event":"Comment added","text":"ok","taskid":"202","date":"2024-03-01 15:05:00"},
	{"author":"carol","event":"Task updated","text":"title","taskid":"101","date":"2024-03-01 15:00:00"}
]}`

func newFeeder(t *testing.T, f Fetcher, st *storage.Memory, sink notify.Sink, m *metrics.Metrics) *Feeder {
	t.Helper()
	fd, err := New(Deps{
		Fetcher:  f,
		Open:     func() (storage.WatermarkStore, error) { return st, nil },
		Grouper:  activity.NewGrouper(nil, time.UTC),
		Renderer: activity.Renderer{BoardID: "7"},
		Sink:     sink,
		Style:    notify.Style{Header: "Board 7", IconEmoji: ":kanban:", Username: "kb"},
		Metrics:  m,
	})
	require.NoError(t, err)
	return fd
}

func TestRunPostsAndPersists(t *testing.T) {
	st := storage.NewMemory()
	sink := &fakeSink{}
	m := metrics.New()
	fd := newFeeder(t, &fakeFetcher{payload: threeRecords}, st, sink, m)

	rep, err := fd.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.posts, 1)
	post := sink.posts[0]
	assert.Equal(t, "Board 7", post.Text)
	assert.Equal(t, ":kanban:", post.IconEmoji)
	assert.Equal(t, "kb", post.Username)
	require.Len(t, post.Attachments, 2)
	assert.Contains(t, post.Attachments[0].Fields[0].Value, "*alice*")
	assert.Contains(t, post.Attachments[0].Fields[0].Value, "\n")
	assert.Contains(t, post.Attachments[1].Fields[1].Value, "/7/cards/202/")

	wm, ok, _ := st.Read(context.Background())
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 15, 5, 0, 0, time.UTC), wm)
	assert.Equal(t, 1, st.Closed())

	assert.True(t, rep.Posted)
	assert.Equal(t, 3, rep.Seen)
	assert.Equal(t, 3, rep.Delivered)
	assert.Equal(t, 2, rep.Attachments)
	assert.NotEmpty(t, rep.RunID)
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(`
# HELP slack_kanbanize_attachments_posted_total Notification cards posted to the chat channel.
# TYPE slack_kanbanize_attachments_posted_total counter
slack_kanbanize_attachments_posted_total 2
`), "slack_kanbanize_attachments_posted_total"))
}

func TestSecondRunIsQuiet(t *testing.T) {
	st := storage.NewMemory()
	sink := &fakeSink{}
	fd := newFeeder(t, &fakeFetcher{payload: threeRecords}, st, sink, nil)

	_, err := fd.Run(context.Background())
	require.NoError(t, err)
	rep, err := fd.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, sink.posts, 1, "no second notification")
	assert.False(t, rep.Posted)
	assert.Equal(t, 3, rep.Seen)
	assert.Equal(t, 0, rep.Delivered)
	assert.Equal(t, rep.Previous, rep.Watermark)
	assert.Equal(t, 2, st.Closed())
}

func TestSentinelSkipsPostAndWrite(t *testing.T) {
	st := storage.NewMemoryAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sink := &fakeSink{}
	fd := newFeeder(t, &fakeFetcher{payload: "No activities found for this period"}, st, sink, nil)

	rep, err := fd.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sink.posts)
	assert.Equal(t, 0, st.Writes())
	assert.Equal(t, 1, st.Closed())
	assert.False(t, rep.Posted)
}

func TestFailuresLeaveWatermark(t *testing.T) {
	prev := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fetcher *fakeFetcher
		sink    *fakeSink
		stage   Stage
	}{
		{name: "fetch", fetcher: &fakeFetcher{err: boom}, sink: &fakeSink{}, stage: StageFetch},
		{name: "post", fetcher: &fakeFetcher{payload: threeRecords}, sink: &fakeSink{err: boom}, stage: StagePost},
		{name: "group", fetcher: &fakeFetcher{payload: `{"activities":`}, sink: &fakeSink{}, stage: StageGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemoryAt(prev)
			m := metrics.New()
			fd := newFeeder(t, tt.fetcher, st, tt.sink, m)

			_, err := fd.Run(context.Background())
			require.Error(t, err)

			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.stage, se.Stage)
			if tt.stage != StageGroup {
				assert.ErrorIs(t, err, boom)
			}

			got, _, _ := st.Read(context.Background())
			assert.Equal(t, prev, got)
			assert.Equal(t, 0, st.Writes())
			assert.Equal(t, 1, st.Closed())
		})
	}
}

type brokenStore struct {
	*storage.Memory
}

func (brokenStore) Read(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, storage.ErrMalformedWatermark
}

func TestMalformedWatermarkAbortsBeforeFetch(t *testing.T) {
	mem := storage.NewMemory()
	f := &fakeFetcher{payload: threeRecords}
	fd, err := New(Deps{
		Fetcher: f,
		Open:    func() (storage.WatermarkStore, error) { return brokenStore{mem}, nil },
		Sink:    &fakeSink{},
	})
	require.NoError(t, err)

	_, err = fd.Run(context.Background())
	require.ErrorIs(t, err, storage.ErrMalformedWatermark)
	assert.Equal(t, 0, f.calls)
	assert.Equal(t, 1, mem.Closed())
}

func TestOpenFailure(t *testing.T) {
	fd, err := New(Deps{
		Fetcher: &fakeFetcher{},
		Open:    func() (storage.WatermarkStore, error) { return nil, errors.New("no home") },
		Sink:    &fakeSink{},
	})
	require.NoError(t, err)
	_, err = fd.Run(context.Background())
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageOpen, se.Stage)
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}
