// Package kanban fetches board activities from the Kanbanize API.
package kanban
