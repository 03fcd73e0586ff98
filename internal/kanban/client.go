package kanban

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://kanbanize.com/index.php/api/kanbanize"

	// maxErrorBody bounds how much of an error response ends up in the error text.
	maxErrorBody = 500
)

// HTTPError is a non-2xx answer from the board API.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	URL        string
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("kanbanize %s (status %d): %s", e.Status, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("kanbanize %s (status %d)", e.Status, e.StatusCode)
}

// ClientConfig configures the board API client.
type ClientConfig struct {
	APIKey string
	// Subdomain selects https://<sub>.kanbanize.com when BaseURL is empty.
	Subdomain string
	BaseURL   string
	Timeout   time.Duration
}

// Client talks to the Kanbanize v1 API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: baseURL(cfg),
		http:    &http.Client{Timeout: timeout},
	}
}

func baseURL(cfg ClientConfig) string {
	if u := strings.TrimSpace(cfg.BaseURL); u != "" {
		return strings.TrimRight(u, "/")
	}
	if sub := strings.TrimSpace(cfg.Subdomain); sub != "" {
		return "https://" + sub + ".kanbanize.com/index.php/api/kanbanize"
	}
	return defaultBaseURL
}

type boardActivitiesRequest struct {
	BoardID  string `json:"boardid"`
	FromDate string `json:"fromdate"`
	ToDate   string `json:"todate"`
}

// BoardActivities returns the raw payload for a board and a UTC window.
// Both bounds use "YYYY-MM-DD HH:MM:SS". The payload is returned unexamined.
func (c *Client) BoardActivities(ctx context.Context, boardID, fromUTC, toUTC string) ([]byte, error) {
	body, err := json.Marshal(boardActivitiesRequest{BoardID: boardID, FromDate: fromUTC, ToDate: toUTC})
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	url := c.baseURL + "/get_board_activities/format/json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get_board_activities: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     http.StatusText(resp.StatusCode),
			Body:       truncate(strings.TrimSpace(string(payload)), maxErrorBody),
			URL:        url,
		}
	}
	return payload, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
