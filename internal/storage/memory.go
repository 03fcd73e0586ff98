package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process WatermarkStore.
type Memory struct {
	mu     sync.Mutex
	t      time.Time
	ok     bool
	writes int
	closed int
}

func NewMemory() *Memory { return &Memory{} }

// NewMemoryAt returns a store already holding t.
func NewMemoryAt(t time.Time) *Memory { return &Memory{t: t.UTC(), ok: true} }

func (m *Memory) Read(ctx context.Context) (time.Time, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t, m.ok, nil
}

func (m *Memory) Write(ctx context.Context, t time.Time) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.t, m.ok = t.UTC(), true
	m.writes++
	return nil
}

// Close only counts calls; the value survives so tests can inspect it.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed++
	m.mu.Unlock()
	return nil
}

// Writes reports how many times Write was called.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Closed reports how many times Close was called.
func (m *Memory) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
