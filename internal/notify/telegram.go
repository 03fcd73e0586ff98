package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"

	"slackkanbanize/internal/activity"
	logx "slackkanbanize/pkg/logx"
)

const telegramTextLimit = 4000

type TelegramConfig struct {
	Token    string
	ChatID   int64
	ThreadID int
	// APIURL overrides https://api.telegram.org (tests).
	APIURL string
}

// TelegramSink renders attachments as HTML text and sends them to one chat.
type TelegramSink struct {
	bot      *tele.Bot
	chat     *tele.Chat
	threadID int
	log      logx.Logger
}

func NewTelegram(cfg TelegramConfig, log logx.Logger) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	// Offline skips the getMe round trip; this sink only sends.
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &TelegramSink{bot: b, chat: &tele.Chat{ID: cfg.ChatID}, threadID: cfg.ThreadID, log: log}, nil
}

func (s *TelegramSink) Post(ctx context.Context, msg Message) error {
	for _, chunk := range splitText(RenderHTML(msg), telegramTextLimit) {
		if err := s.send(ctx, chunk, tele.ModeHTML); err != nil {
			return err
		}
	}
	s.log.Debug("telegram message posted", logx.Int64("chat_id", s.chat.ID), logx.Int("attachments", len(msg.Attachments)))
	return nil
}

func (s *TelegramSink) SendText(ctx context.Context, text string) error {
	return s.send(ctx, text, tele.ModeDefault)
}

func (s *TelegramSink) send(ctx context.Context, text string, mode tele.ParseMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(s.chat, text, &tele.SendOptions{
		ParseMode:             mode,
		DisableWebPagePreview: true,
		ThreadID:              s.threadID,
	})
	if err != nil {
		return fmt.Errorf("telegram sendMessage: %w", err)
	}
	return nil
}

var (
	reSlackLink     = regexp.MustCompile(`<([^|>]+)\|([^>]+)>`)
	reSlackBold     = regexp.MustCompile(`\*([^*\n]+)\*`)
	reSlackItalic   = regexp.MustCompile(`(^|\s)_([^_\n]+)_`)
	reSlackEmojiTag = regexp.MustCompile(`:([a-z0-9_+\-]+):`)
)

// RenderHTML converts a Message (chat mrkdwn fields) into Telegram HTML.
func RenderHTML(msg Message) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(html.EscapeString(msg.Text))
	b.WriteString("</b>")
	for _, a := range msg.Attachments {
		b.WriteString("\n\n")
		b.WriteString(renderAttachmentHTML(a))
	}
	return b.String()
}

func renderAttachmentHTML(a activity.Attachment) string {
	lines := make([]string, 0, len(a.Fields))
	for _, f := range a.Fields {
		switch f.Title {
		case "Message":
			lines = append(lines, mrkdwnToHTML(f.Value))
		default:
			lines = append(lines, "<i>"+html.EscapeString(f.Title)+":</i> "+mrkdwnToHTML(f.Value))
		}
	}
	return strings.Join(lines, "\n")
}

func mrkdwnToHTML(raw string) string {
	var b strings.Builder
	last := 0
	for _, m := range reSlackLink.FindAllStringSubmatchIndex(raw, -1) {
		b.WriteString(html.EscapeString(raw[last:m[0]]))
		b.WriteString(`<a href="` + html.EscapeString(raw[m[2]:m[3]]) + `">` + html.EscapeString(raw[m[4]:m[5]]) + `</a>`)
		last = m[1]
	}
	b.WriteString(html.EscapeString(raw[last:]))

	s := b.String()
	s = reSlackBold.ReplaceAllString(s, "<b>$1</b>")
	s = reSlackItalic.ReplaceAllString(s, "$1<i>$2</i>")
	s = reSlackEmojiTag.ReplaceAllStringFunc(s, func(tag string) string {
		if e, ok := emojiGlyphs[tag]; ok {
			return e
		}
		return tag
	})
	return s
}

// emojiGlyphs covers the markers the default formatter emits.
var emojiGlyphs = map[string]string{
	":new:":                   "🆕",
	":rocket:":                "🚀",
	":pencil2:":               "✏️",
	":file_cabinet:":          "🗄️",
	":wastebasket:":           "🗑️",
	":no_entry:":              "⛔",
	":white_check_mark:":      "✅",
	":speech_balloon:":        "💬",
	":bust_in_silhouette:":    "👤",
	":label:":                 "🏷️",
	":paperclip:":             "📎",
	":heavy_plus_sign:":       "➕",
	":ballot_box_with_check:": "☑️",
	":clipboard:":             "📋",
}

// splitText splits on blank lines between attachments so that each chunk
// keeps balanced HTML tags; a single oversized block is cut on rune boundaries.
func splitText(s string, limit int) []string {
	if len([]rune(s)) <= limit {
		return []string{s}
	}
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, block := range strings.Split(s, "\n\n") {
		rb := []rune(block)
		for len(rb) > limit {
			flush()
			out = append(out, string(rb[:limit]))
			rb = rb[limit:]
		}
		block = string(rb)
		if len([]rune(cur.String()))+len(rb)+2 > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(block)
	}
	flush()
	return out
}
