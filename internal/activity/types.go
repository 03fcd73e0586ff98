package activity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceLayout is the naive UTC layout the board source uses for activity
// dates and for the request window bounds.
const SourceLayout = "2006-01-02 15:04:05"

// DisplayLayout formats the local grouping key (no sub-second precision).
const DisplayLayout = "2006-01-02 15:04:05"

// Record is one raw board activity as returned by the source.
type Record struct {
	Author  string `json:"author"`
	Event   string `json:"event"`
	Text    string `json:"text"`
	TaskID  TaskID `json:"taskid"`
	DateUTC string `json:"date"`
}

// Time parses DateUTC as a naive UTC timestamp.
func (r Record) Time() (time.Time, error) {
	t, err := time.ParseInLocation(SourceLayout, strings.TrimSpace(r.DateUTC), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("activity date %q: %w", r.DateUTC, err)
	}
	return t, nil
}

// TaskID accepts both JSON strings and JSON numbers.
type TaskID string

// UnmarshalJSON implements json.Unmarshaler for string or numeric ids.
func (id *TaskID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = TaskID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("taskid: %w", err)
	}
	*id = TaskID(n.String())
	return nil
}

// Formatted is a Record that passed the watermark filter, with its rendered message.
type Formatted struct {
	Record
	Message string
}

// Bucket holds the activities of one task that share a local display timestamp.
type Bucket struct {
	LocalTime  string
	Activities []Formatted
}

// TaskGroup holds the new activities of one task, bucketed by local timestamp
// in order of first appearance.
type TaskGroup struct {
	TaskID  TaskID
	Buckets []Bucket

	index map[string]int
}

func (g *TaskGroup) add(local string, f Formatted) {
	if g.index == nil {
		g.index = map[string]int{}
	}
	i, ok := g.index[local]
	if !ok {
		i = len(g.Buckets)
		g.index[local] = i
		g.Buckets = append(g.Buckets, Bucket{LocalTime: local})
	}
	g.Buckets[i].Activities = append(g.Buckets[i].Activities, f)
}

// Bucket returns the activities for a local timestamp.
func (g TaskGroup) Bucket(local string) ([]Formatted, bool) {
	for _, b := range g.Buckets {
		if b.LocalTime == local {
			return b.Activities, true
		}
	}
	return nil, false
}

// groupSet keeps TaskGroups in order of first taskID appearance.
type groupSet struct {
	groups []TaskGroup
	index  map[TaskID]int
}

func (s *groupSet) add(task TaskID, local string, f Formatted) {
	if s.index == nil {
		s.index = map[TaskID]int{}
	}
	i, ok := s.index[task]
	if !ok {
		i = len(s.groups)
		s.index[task] = i
		s.groups = append(s.groups, TaskGroup{TaskID: task})
	}
	s.groups[i].add(local, f)
}

// Watermark is the UTC instant of the most recently delivered activity.
// The zero value means no watermark has been persisted yet.
type Watermark struct {
	Time  time.Time
	Valid bool
}

// At returns a valid watermark for t (normalised to UTC).
func At(t time.Time) Watermark { return Watermark{Time: t.UTC(), Valid: true} }

func (w Watermark) String() string {
	if !w.Valid {
		return "none"
	}
	return w.Time.Format("2006-01-02T15:04:05.000000")
}
