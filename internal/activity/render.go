package activity

import (
	"strings"
)

// DefaultTaskURL points at a task card; {board} and {task} are substituted.
const DefaultTaskURL = "https://kanbanize.com/ctrl_board/{board}/cards/{task}/details"

// Attachment is one notification card. The json tags follow the chat API's
// legacy attachment shape so the slice can be serialised as-is.
type Attachment struct {
	Color      string   `json:"color"`
	MarkdownIn []string `json:"mrkdwn_in"`
	Fields     []Field  `json:"fields"`
}

// Field is one title/value pair of an Attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Renderer turns TaskGroups into attachments, one per (task, local time) bucket.
type Renderer struct {
	BoardID string
	TaskURL string
}

// Render preserves task order then bucket order as established by the Grouper.
func (r Renderer) Render(groups []TaskGroup) []Attachment {
	var out []Attachment
	for _, g := range groups {
		link := r.taskLink(g.TaskID)
		for _, b := range g.Buckets {
			msgs := make([]string, 0, len(b.Activities))
			for _, a := range b.Activities {
				msgs = append(msgs, a.Message)
			}
			out = append(out, Attachment{
				Color:      "good",
				MarkdownIn: []string{"fields"},
				Fields: []Field{
					{Title: "Message", Value: strings.Join(msgs, "\n")},
					{Title: "Task", Value: link, Short: true},
					{Title: "Date", Value: b.LocalTime, Short: true},
				},
			})
		}
	}
	return out
}

// URL expands the task URL template for one task.
func (r Renderer) URL(task TaskID) string {
	tmpl := r.TaskURL
	if strings.TrimSpace(tmpl) == "" {
		tmpl = DefaultTaskURL
	}
	return strings.NewReplacer("{board}", r.BoardID, "{task}", string(task)).Replace(tmpl)
}

func (r Renderer) taskLink(task TaskID) string {
	return "<" + r.URL(task) + "|#" + string(task) + ">"
}
