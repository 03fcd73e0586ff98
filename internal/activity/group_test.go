package activity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// UTC-3, same offset the board's original deployment ran in.
var brt = time.FixedZone("BRT", -3*3600)

func payloadOf(t *testing.T, records ...Record) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"activities": records, "allactivities": len(records)})
	require.NoError(t, err)
	return b
}

func rec(task, date, event, author string) Record {
	return Record{Author: author, Event: event, Text: "card " + task, TaskID: TaskID(task), DateUTC: date}
}

func mustUTC(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(SourceLayout, s, time.UTC)
	require.NoError(t, err)
	return ts
}

func TestGroupFilterKeepsOnlyNewerThanWatermark(t *testing.T) {
	g := NewGrouper(nil, brt)
	wm := At(mustUTC(t, "2024-03-01 12:00:00"))

	payload := payloadOf(t,
		rec("1", "2024-03-01 11:50:00", "Task moved", "alice"),
		rec("2", "2024-03-01 11:55:00", "Task moved", "alice"),
		rec("3", "2024-03-01 12:05:00", "Task moved", "alice"),
	)
	res, err := g.Group(payload, wm)
	require.NoError(t, err)

	require.Len(t, res.Groups, 1)
	assert.Equal(t, TaskID("3"), res.Groups[0].TaskID)
	assert.Equal(t, 3, res.Seen)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, mustUTC(t, "2024-03-01 12:05:00"), res.Watermark.Time)
	assert.True(t, res.ShouldPersist())
}

func TestGroupRecordEqualToWatermarkIsDropped(t *testing.T) {
	g := NewGrouper(nil, brt)
	wm := At(mustUTC(t, "2024-03-01 12:00:00"))

	res, err := g.Group(payloadOf(t, rec("1", "2024-03-01 12:00:00", "Task moved", "a")), wm)
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.Equal(t, wm, res.Watermark)
}

func TestGroupIdempotentWithNoNewData(t *testing.T) {
	g := NewGrouper(nil, brt)
	payload := payloadOf(t,
		rec("1", "2024-03-01 10:00:00", "Task moved", "a"),
		rec("2", "2024-03-01 11:00:00", "Comment added", "b"),
	)
	wm := At(mustUTC(t, "2024-03-01 11:00:00"))

	for i := 0; i < 2; i++ {
		res, err := g.Group(payload, wm)
		require.NoError(t, err)
		assert.Empty(t, res.Groups, "pass %d", i)
		assert.Equal(t, wm, res.Watermark, "pass %d", i)
		wm = res.Watermark
	}
}

func TestGroupWatermarkNeverMovesBackward(t *testing.T) {
	g := NewGrouper(nil, brt)
	prev := At(mustUTC(t, "2024-03-01 12:00:00"))

	tests := []struct {
		name    string
		records []Record
		want    time.Time
	}{
		{name: "only old", records: []Record{rec("1", "2024-02-01 00:00:00", "Task moved", "a")}, want: prev.Time},
		{name: "mixed order", records: []Record{
			rec("1", "2024-03-01 13:00:00", "Task moved", "a"),
			rec("1", "2024-03-01 12:30:00", "Task moved", "a"),
			rec("2", "2024-02-01 00:00:00", "Task moved", "a"),
		}, want: mustUTC(t, "2024-03-01 13:00:00")},
		{name: "empty list", records: []Record{}, want: prev.Time},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Group(payloadOf(t, tt.records...), prev)
			require.NoError(t, err)
			assert.False(t, res.Watermark.Time.Before(prev.Time))
			assert.Equal(t, tt.want, res.Watermark.Time)
		})
	}
}

func TestGroupWithoutWatermarkDeliversEverything(t *testing.T) {
	g := NewGrouper(nil, brt)
	res, err := g.Group(payloadOf(t,
		rec("9", "2024-03-01 09:00:00", "Task created", "a"),
		rec("9", "2024-03-01 08:00:00", "Task moved", "a"),
	), Watermark{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Delivered)
	assert.True(t, res.Watermark.Valid)
	assert.Equal(t, mustUTC(t, "2024-03-01 09:00:00"), res.Watermark.Time)
}

func TestGroupBucketsByTaskAndLocalTime(t *testing.T) {
	g := NewGrouper(nil, brt)
	res, err := g.Group(payloadOf(t,
		rec("10", "2024-03-01 15:00:00", "Task moved", "alice"),
		rec("20", "2024-03-01 15:01:00", "Task created", "bob"),
		rec("10", "2024-03-01 15:00:00", "Comment added", "carol"),
		rec("10", "2024-03-01 14:00:00", "Task updated", "alice"),
	), Watermark{})
	require.NoError(t, err)

	require.Len(t, res.Groups, 2)
	first := res.Groups[0]
	assert.Equal(t, TaskID("10"), first.TaskID)
	require.Len(t, first.Buckets, 2)
	// Insertion order, not sorted: 12:00 local came first in the payload.
	assert.Equal(t, "2024-03-01 12:00:00", first.Buckets[0].LocalTime)
	assert.Equal(t, "2024-03-01 11:00:00", first.Buckets[1].LocalTime)

	acts, ok := first.Bucket("2024-03-01 12:00:00")
	require.True(t, ok)
	require.Len(t, acts, 2)
	assert.Equal(t, "alice", acts[0].Author)
	assert.Equal(t, "carol", acts[1].Author)

	assert.Equal(t, TaskID("20"), res.Groups[1].TaskID)
	assert.Equal(t, "2024-03-01 12:01:00", res.Groups[1].Buckets[0].LocalTime)
}

func TestGroupUsesFormatterOverride(t *testing.T) {
	g := NewGrouper(func(r Record) string { return "custom:" + r.Author }, time.UTC)
	res, err := g.Group(payloadOf(t, rec("1", "2024-03-01 10:00:00", "Task moved", "zoe")), Watermark{})
	require.NoError(t, err)
	assert.Equal(t, "custom:zoe", res.Groups[0].Buckets[0].Activities[0].Message)
}

func TestGroupSentinelLeavesWatermark(t *testing.T) {
	g := NewGrouper(nil, brt)
	prev := At(mustUTC(t, "2024-03-01 12:00:00"))

	for _, payload := range []string{
		`No activities found for the given period`,
		`"No activities found."`,
	} {
		res, err := g.Group([]byte(payload), prev)
		require.NoError(t, err)
		assert.Empty(t, res.Groups)
		assert.Equal(t, prev, res.Watermark)
		assert.False(t, res.ShouldPersist())
	}
}

func TestGroupSentinelTextInsideRecordIsDelivered(t *testing.T) {
	g := NewGrouper(nil, time.UTC)
	a := rec("1", "2024-03-01 10:00:00", "Comment added", "ann")
	a.Text = "search said: No activities found for tag x"
	b := rec("2", "2024-03-01 10:01:00", "Task moved", "ben")

	res, err := g.Group(payloadOf(t, a, b), Watermark{})
	require.NoError(t, err)
	assert.Len(t, res.Groups, 2)
	assert.Equal(t, 2, res.Seen)
	assert.True(t, res.ShouldPersist())
	assert.Equal(t, mustUTC(t, "2024-03-01 10:01:00"), res.Watermark.Time)
	assert.False(t, IsSentinel(payloadOf(t, a)))
}

func TestGroupMissingActivitiesIsEmpty(t *testing.T) {
	g := NewGrouper(nil, brt)
	res, err := g.Group([]byte(`{"allactivities":"0","page":1}`), Watermark{})
	require.NoError(t, err)
	assert.Empty(t, res.Groups)
	assert.False(t, res.ShouldPersist())
	assert.False(t, res.Watermark.Valid)
}

func TestGroupNumericTaskID(t *testing.T) {
	g := NewGrouper(nil, time.UTC)
	payload := []byte(`{"activities":[{"author":"a","event":"Task moved","text":"x","taskid":4821,"date":"2024-03-01 10:00:00"}]}`)
	res, err := g.Group(payload, Watermark{})
	require.NoError(t, err)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, TaskID("4821"), res.Groups[0].TaskID)
}

func TestGroupRejectsMalformedInput(t *testing.T) {
	g := NewGrouper(nil, time.UTC)
	prev := At(mustUTC(t, "2024-03-01 12:00:00"))

	for name, payload := range map[string]string{
		"bad date": `{"activities":[{"author":"a","event":"e","text":"x","taskid":"1","date":"yesterday"}]}`,
		"bad json": `{"activities":[`,
		"bad text": `"Invalid API key"`,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := g.Group([]byte(payload), prev)
			require.Error(t, err)
			assert.Equal(t, prev, res.Watermark)
		})
	}
}

func TestEndToEndGroupAndRender(t *testing.T) {
	g := NewGrouper(nil, brt)
	res, err := g.Group(payloadOf(t,
		Record{Author: "alice", Event: "Task moved", Text: "to Done", TaskID: "101", DateUTC: "2024-03-01 15:00:00"},
		Record{Author: "bob", Event: "Comment added", Text: "lgtm", TaskID: "101", DateUTC: "2024-03-01 15:00:00"},
		Record{Author: "carol", Event: "Priority raised", Text: "high", TaskID: "202", DateUTC: "2024-03-01 15:10:00"},
	), Watermark{})
	require.NoError(t, err)
	require.Len(t, res.Groups, 2)

	atts := Renderer{BoardID: "7"}.Render(res.Groups)
	require.Len(t, atts, 2)

	first := atts[0]
	assert.Equal(t, "good", first.Color)
	assert.Equal(t, []string{"fields"}, first.MarkdownIn)
	require.Len(t, first.Fields, 3)
	assert.Equal(t, ":rocket: User: *alice* Event: Task moved: to Done\n:speech_balloon: User: *bob* Event: Comment added: lgtm", first.Fields[0].Value)
	assert.Equal(t, "<https://kanbanize.com/ctrl_board/7/cards/101/details|#101>", first.Fields[1].Value)
	assert.True(t, first.Fields[1].Short)
	assert.Equal(t, "2024-03-01 12:00:00", first.Fields[2].Value)

	second := atts[1]
	assert.Equal(t, "User: *carol* Event: _Priority raised_: high", second.Fields[0].Value)
	assert.Contains(t, second.Fields[1].Value, "/ctrl_board/7/cards/202/")
}
