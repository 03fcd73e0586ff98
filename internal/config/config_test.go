package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func validConfig() *Config {
	c := Defaults()
	c.Slack.Token = "xoxb-1"
	c.Slack.Channel = "#board"
	c.Kanbanize.APIKey = "key"
	c.Kanbanize.BoardID = "7"
	return c
}

func TestDefaults(t *testing.T) {
	c := Defaults()
	assert.Equal(t, 60, c.Feed.CollectMinutes)
	assert.Equal(t, time.Hour, c.Window())
	assert.Equal(t, SinkSlack, c.SinkName())
	assert.Equal(t, "file", c.Storage.Driver)
	assert.Equal(t, DefaultKanbanTimeout, c.KanbanTimeout())
	assert.Zero(t, c.Delivery.RetryMax, "post retries are opt-in")
}

func TestParseJSONKeepsDefaultsForAbsentKeys(t *testing.T) {
	c, err := Parse("c.json", []byte(`{"slack":{"channel":"#x"},"feed":{"formatter":"plain"}}`))
	require.NoError(t, err)
	assert.Equal(t, "#x", c.Slack.Channel)
	assert.Equal(t, "plain", c.Feed.Formatter)
	assert.Equal(t, 60, c.Feed.CollectMinutes)
}

func TestParseYAML(t *testing.T) {
	src := []byte(`
slack:
  channel: "#yaml"
kanbanize:
  board_id: "12"
  timeout: 5s
storage:
  driver: sqlite
  path: /tmp/wm.db
`)
	c, err := Parse("c.yaml", src)
	require.NoError(t, err)
	assert.Equal(t, "#yaml", c.Slack.Channel)
	assert.Equal(t, 5*time.Second, c.KanbanTimeout())
	assert.Equal(t, "sqlite", c.StorageOptions().Driver)
	assert.Equal(t, "/tmp/wm.db", c.StorageOptions().Path)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{"unknown key", "c.json", `{"slak":{}}`},
		{"trailing data", "c.json", `{} {}`},
		{"bad yaml", "c.yml", "slack: [unclosed"},
		{"unknown nested yaml key", "c.yaml", "feed:\n  minutes: 5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.file, []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestParseEmptyFileIsDefaults(t *testing.T) {
	c, err := Parse("c.yaml", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"slack":{"token":"file","channel":"#file"}}`), 0o600))

	c, err := Load(path, envMap(map[string]string{
		EnvSlackToken:     "env",
		EnvKanbanizeBoard: " 9 ",
		EnvSlackChannel:   "",
		EnvTelegramChat:   "-100",
	}))
	require.NoError(t, err)
	assert.Equal(t, "env", c.Slack.Token)
	assert.Equal(t, "#file", c.Slack.Channel, "empty env values do not override")
	assert.Equal(t, "9", c.Kanbanize.BoardID)
	assert.Equal(t, int64(-100), c.Telegram.ChatID)
}

func TestLoadWithoutFile(t *testing.T) {
	c, err := Load("", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), c)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	c := Defaults()
	err := c.Validate()
	require.Error(t, err)
	for _, want := range []string{"slack.token", "slack.channel", "kanbanize.api_key", "kanbanize.board_id"} {
		assert.Contains(t, err.Error(), want)
	}

	c = validConfig()
	c.Sink = "telegram"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.chat_id")

	c = validConfig()
	c.Feed.CollectMinutes = 0
	c.Feed.Timezone = "Mars/Olympus"
	c.Storage.Driver = "redis"
	c.Kanbanize.Timeout = "soon"
	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collect_minutes")
	assert.Contains(t, err.Error(), "feed.timezone")
	assert.Contains(t, err.Error(), "storage.driver")
	assert.Contains(t, err.Error(), "kanbanize.timeout")
}

func TestFormatterFallback(t *testing.T) {
	c := Defaults()
	c.Feed.Formatter = "nope"
	f, ok := c.Formatter()
	assert.False(t, ok)
	assert.NotNil(t, f)

	c.Feed.Formatter = "plain"
	_, ok = c.Formatter()
	assert.True(t, ok)
}

func TestSummarizeChangeHidesSecrets(t *testing.T) {
	a := validConfig()
	b := validConfig()
	b.Slack.Token = "xoxb-2"
	b.Feed.Formatter = "compact"

	sections, attrs := SummarizeChange(a, b)
	assert.Equal(t, []string{"slack", "feed"}, sections)
	assert.NotEmpty(t, attrs)

	sections, _ = SummarizeChange(a, a)
	assert.Empty(t, sections)
}

func TestManagerOverlayAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"feed":{"collect_minutes":10}}`), 0o600))

	m := NewManager(path, func(c *Config) { c.Slack.Token = "flag" })
	m.debounce = 20 * time.Millisecond
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Feed.CollectMinutes)
	assert.Equal(t, "flag", cfg.Slack.Token)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = m.Watch(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register the directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"feed":{"collect_minutes":20}}`), 0o600))

	select {
	case got := <-ch:
		assert.Equal(t, 20, got.Feed.CollectMinutes)
		assert.Equal(t, "flag", got.Slack.Token)
		assert.Equal(t, 20, m.Get().Feed.CollectMinutes)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload published")
	}
}

func TestManagerRejectsInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))

	m := NewManager(path, nil)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(context.Context, *Config) error { return assert.AnError })

	require.NoError(t, os.WriteFile(path, []byte(`{"feed":{"collect_minutes":5}}`), 0o600))
	m.reload(context.Background())
	assert.Equal(t, 60, m.Get().Feed.CollectMinutes)

	m.SetValidator(nil)
	m.reload(context.Background())
	assert.Equal(t, 5, m.Get().Feed.CollectMinutes)
}
