package activity

import (
	"sort"
	"strings"
)

// FormatFunc renders one activity as chat text.
type FormatFunc func(r Record) string

// eventMarkers maps board event names to the emoji shown in front of the message.
var eventMarkers = map[string]string{
	"Task created":        ":new:",
	"Task moved":          ":rocket:",
	"Task updated":        ":pencil2:",
	"Task archived":       ":file_cabinet:",
	"Task deleted":        ":wastebasket:",
	"Task blocked":        ":no_entry:",
	"Task unblocked":      ":white_check_mark:",
	"Comment added":       ":speech_balloon:",
	"Assignee changed":    ":bust_in_silhouette:",
	"Tags changed":        ":label:",
	"Attachments updated": ":paperclip:",
	"Subtask added":       ":heavy_plus_sign:",
	"Subtask completed":   ":ballot_box_with_check:",
}

// Marker returns the emoji for a known event.
func Marker(event string) (string, bool) {
	m, ok := eventMarkers[event]
	return m, ok
}

// DefaultFormat renders "<marker> User: *author* Event: event: text".
// Unknown events get no marker and an emphasised event name.
func DefaultFormat(r Record) string {
	var b strings.Builder
	event := r.Event
	if m, ok := eventMarkers[r.Event]; ok {
		b.WriteString(m)
		b.WriteString(" ")
	} else {
		event = "_" + r.Event + "_"
	}
	b.WriteString("User: *")
	b.WriteString(r.Author)
	b.WriteString("* Event: ")
	b.WriteString(event)
	b.WriteString(": ")
	b.WriteString(r.Text)
	return b.String()
}

// PlainFormat renders without markers or markup.
func PlainFormat(r Record) string {
	return r.Author + " - " + r.Event + ": " + r.Text
}

// CompactFormat renders only who did what.
func CompactFormat(r Record) string {
	return r.Author + ": " + r.Event
}

var formatters = map[string]FormatFunc{
	"default": DefaultFormat,
	"plain":   PlainFormat,
	"compact": CompactFormat,
}

// LookupFormatter resolves a named formatter. An empty name resolves to the default.
func LookupFormatter(name string) (FormatFunc, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultFormat, true
	}
	f, ok := formatters[name]
	return f, ok
}

// FormatterNames lists registered formatter names, sorted.
func FormatterNames() []string {
	out := make([]string, 0, len(formatters))
	for k := range formatters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
