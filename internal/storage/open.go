package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	logx "slackkanbanize/pkg/logx"
)

// Open initializes the configured store. The caller owns the returned store
// and must Close it on every exit path.
func Open(cfg Config, log logx.Logger) (WatermarkStore, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "file":
		path, err := resolvePath(cfg.Path)
		if err != nil {
			return nil, err
		}
		return openFile(path, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

// DefaultPath returns ~/.slack-kanbanize-last-msg.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultFileName), nil
}

func resolvePath(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return DefaultPath()
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
	}
	return p, nil
}
