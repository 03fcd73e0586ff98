package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"slackkanbanize/internal/activity"
	logx "slackkanbanize/pkg/logx"
)

type SlackConfig struct {
	Token   string
	Channel string
	// APIURL overrides the Web API base (tests). Must end with "/".
	APIURL string
}

// SlackSink posts through chat.postMessage.
type SlackSink struct {
	api     *slack.Client
	channel string
	log     logx.Logger
}

func NewSlack(cfg SlackConfig, log logx.Logger) (*SlackSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("slack token is empty")
	}
	if strings.TrimSpace(cfg.Channel) == "" {
		return nil, errors.New("slack channel is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}
	return &SlackSink{api: slack.New(cfg.Token, opts...), channel: cfg.Channel, log: log}, nil
}

func (s *SlackSink) Post(ctx context.Context, msg Message) error {
	opts := []slack.MsgOption{
		slack.MsgOptionText(msg.Text, false),
		slack.MsgOptionAttachments(toSlackAttachments(msg.Attachments)...),
	}
	if msg.Username != "" {
		opts = append(opts, slack.MsgOptionUsername(msg.Username))
	}
	if msg.IconEmoji != "" {
		opts = append(opts, slack.MsgOptionIconEmoji(msg.IconEmoji))
	}
	channel, ts, err := s.api.PostMessageContext(ctx, s.channel, opts...)
	if err != nil {
		return fmt.Errorf("slack chat.postMessage: %w", err)
	}
	s.log.Debug("slack message posted",
		logx.String("channel", channel),
		logx.String("ts", ts),
		logx.Int("attachments", len(msg.Attachments)),
	)
	return nil
}

func (s *SlackSink) SendText(ctx context.Context, text string) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false))
	return err
}

func toSlackAttachments(in []activity.Attachment) []slack.Attachment {
	out := make([]slack.Attachment, 0, len(in))
	for _, a := range in {
		fields := make([]slack.AttachmentField, 0, len(a.Fields))
		for _, f := range a.Fields {
			fields = append(fields, slack.AttachmentField{Title: f.Title, Value: f.Value, Short: f.Short})
		}
		out = append(out, slack.Attachment{
			Color:      a.Color,
			MarkdownIn: append([]string(nil), a.MarkdownIn...),
			Fields:     fields,
		})
	}
	return out
}
