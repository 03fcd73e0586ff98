// Package activity turns raw board activity payloads into chat notifications.
//
// Pipeline:
//   - Grouper: watermark filter + grouping by task and local timestamp
//   - FormatFunc: one activity -> one line of chat text
//   - Renderer: one attachment per (task, local timestamp) bucket
//
// Watermark comparisons are always done on UTC instants; the local time zone
// only affects the display/grouping key.
package activity
