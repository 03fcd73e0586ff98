package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NoActivitiesSentinel is the text the board source returns instead of a
// structured payload when the requested window is empty.
const NoActivitiesSentinel = "No activities found"

// Result is the outcome of grouping one payload.
type Result struct {
	Groups []TaskGroup

	// Watermark is the new watermark: the max of the previous one and every
	// record timestamp seen, filtered or not.
	Watermark Watermark

	// Seen counts raw records in the payload; Delivered counts those that
	// passed the watermark filter.
	Seen      int
	Delivered int
}

// ShouldPersist reports whether the new watermark must be written back.
// A sentinel or empty payload leaves the stored watermark untouched.
func (r Result) ShouldPersist() bool { return r.Seen > 0 }

// Grouper converts raw board payloads into deduplicated TaskGroups.
type Grouper struct {
	format FormatFunc
	loc    *time.Location
}

// NewGrouper builds a Grouper. A nil format uses DefaultFormat; a nil loc uses time.Local.
func NewGrouper(format FormatFunc, loc *time.Location) *Grouper {
	if format == nil {
		format = DefaultFormat
	}
	if loc == nil {
		loc = time.Local
	}
	return &Grouper{format: format, loc: loc}
}

// Group filters payload against prev and groups the survivors by task and
// local display timestamp. It never touches persisted state.
func (g *Grouper) Group(payload []byte, prev Watermark) (Result, error) {
	res := Result{Watermark: prev}
	if IsSentinel(payload) {
		return res, nil
	}
	records, err := decodeRecords(payload)
	if err != nil {
		return res, err
	}

	var set groupSet
	candidate := prev
	for _, r := range records {
		ts, err := r.Time()
		if err != nil {
			return Result{Watermark: prev}, err
		}
		res.Seen++
		if !candidate.Valid || ts.After(candidate.Time) {
			candidate = At(ts)
		}
		// Comparison stays in UTC; only the grouping key is local.
		if prev.Valid && !ts.After(prev.Time) {
			continue
		}
		local := ts.In(g.loc).Format(DisplayLayout)
		set.add(r.TaskID, local, Formatted{Record: r, Message: g.format(r)})
		res.Delivered++
	}
	res.Groups = set.groups
	res.Watermark = candidate
	return res, nil
}

// IsSentinel reports whether payload is the "no activities" text, bare or as
// a JSON string. Structured payloads never are, whatever their records say.
func IsSentinel(payload []byte) bool {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && (payload[0] == '{' || payload[0] == '[') {
		return false
	}
	return bytes.Contains(bytes.ToLower(payload), bytes.ToLower([]byte(NoActivitiesSentinel)))
}

type envelope struct {
	Activities []Record `json:"activities"`
}

func decodeRecords(payload []byte) ([]Record, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return nil, nil
	}
	switch payload[0] {
	case '{':
	case '[':
		var list []Record
		if err := json.Unmarshal(payload, &list); err != nil {
			return nil, fmt.Errorf("decode activities: %w", err)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("unexpected activities payload: %.120s", payload)
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode activities: %w", err)
	}
	return env.Activities, nil
}
