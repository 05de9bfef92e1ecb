package realtime

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Memory keeps the latest value per key in process. It backs the websocket
// hub's snapshots and stands in for external sinks when none is configured.
type Memory struct {
	mu     sync.RWMutex
	values map[string]any
}

func NewMemory() *Memory {
	return &Memory{values: make(map[string]any)}
}

func (m *Memory) Set(_ context.Context, key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Remove deletes key and everything below it.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(key, "/") + "/"
	for k := range m.values {
		if k == key || strings.HasPrefix(k, prefix) {
			delete(m.values, k)
		}
	}
	return nil
}

func (m *Memory) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Snapshot returns the keys under topic in lexical order with their values.
func (m *Memory) Snapshot(topic string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	prefix := strings.TrimSuffix(topic, "/") + "/"
	var out []Message
	for k, v := range m.values {
		if k == topic || strings.HasPrefix(k, prefix) {
			out = append(out, Message{Key: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
