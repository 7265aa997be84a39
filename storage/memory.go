package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store, useful for tests and throwaway archives.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	locks   map[string]bool
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte), locks: make(map[string]bool)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("storage: get %s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *Memory) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	_, ok := m.objects[key]
	m.mu.RUnlock()
	return ok, nil
}

// Keys returns the number of stored keys.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func (m *Memory) Lock(ctx context.Context, name string) (func() error, error) {
	for {
		m.mu.Lock()
		if !m.locks[name] {
			m.locks[name] = true
			m.mu.Unlock()
			return func() error {
				m.mu.Lock()
				delete(m.locks, name)
				m.mu.Unlock()
				return nil
			}, nil
		}
		m.mu.Unlock()
		if err := waitRetry(ctx); err != nil {
			return nil, err
		}
	}
}

var (
	_ Store  = (*Memory)(nil)
	_ Locker = (*Memory)(nil)
)
