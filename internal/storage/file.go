package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "slackkanbanize/pkg/logx"
)

// fileStore keeps the watermark as the single line of one file.
//
// The handle is opened once per run (read + write, created if absent) and
// rewritten in place: truncate, write, fsync.
type fileStore struct {
	log  logx.Logger
	path string

	mu sync.Mutex
	f  *os.File
}

func openFile(path string, log logx.Logger) (WatermarkStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("watermark dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open watermark file: %w", err)
	}
	log.Debug("watermark file opened", logx.String("path", path))
	return &fileStore{log: log, path: path, f: f}, nil
}

func (s *fileStore) Read(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return time.Time{}, false, ErrClosed
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return time.Time{}, false, err
	}
	sc := bufio.NewScanner(s.f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return time.Time{}, false, err
		}
		return time.Time{}, false, nil
	}
	line := strings.TrimSpace(sc.Text())
	if line == "" {
		return time.Time{}, false, nil
	}
	t, err := Parse(line)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", s.path, err)
	}
	return t, true, nil
}

func (s *fileStore) Write(ctx context.Context, t time.Time) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return ErrClosed
	}
	if err := s.f.Truncate(0); err != nil {
		return err
	}
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := s.f.WriteString(Format(t)); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
