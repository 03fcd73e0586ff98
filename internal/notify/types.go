package notify

import (
	"context"

	"slackkanbanize/internal/activity"
)

const (
	DefaultHeader   = "Kanbanize board activity"
	DefaultIcon     = ":clipboard:"
	DefaultUsername = "slackbot"
)

// Message is one aggregated notification.
type Message struct {
	Text        string
	Username    string
	IconEmoji   string
	Attachments []activity.Attachment
}

// Sink posts notifications to a chat channel. SendText posts a bare line of
// text and doubles as the log chat sink.
type Sink interface {
	Post(ctx context.Context, msg Message) error
	SendText(ctx context.Context, text string) error
}

// Style holds the fixed parts of every notification.
type Style struct {
	Header    string
	IconEmoji string
	Username  string
}

// Build wraps attachments into a Message, filling unset style fields with defaults.
func (s Style) Build(atts []activity.Attachment) Message {
	m := Message{Text: s.Header, Username: s.Username, IconEmoji: s.IconEmoji, Attachments: atts}
	if m.Text == "" {
		m.Text = DefaultHeader
	}
	if m.IconEmoji == "" {
		m.IconEmoji = DefaultIcon
	}
	if m.Username == "" {
		m.Username = DefaultUsername
	}
	return m
}
