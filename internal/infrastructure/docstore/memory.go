package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store implementation used by unit tests and the
// local development mode. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{docs: make(map[string][]byte)}
}

func (m *Memory) Get(ctx context.Context, path string, dest interface{}) error {
	m.mu.RLock()
	data, ok := m.docs[path]
	m.mu.RUnlock()

	if !ok {
		return ErrPathNotFound{Path: path}
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode document %s: %w", path, err)
	}
	return nil
}

func (m *Memory) Set(ctx context.Context, path string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}

	m.mu.Lock()
	m.docs[path] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.docs[path]
	if !ok {
		return ErrPathNotFound{Path: path}
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode document %s: %w", path, err)
	}
	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", path, err)
	}
	m.docs[path] = merged
	return nil
}

func (m *Memory) Push(ctx context.Context, path string, value interface{}) (string, error) {
	key := uuid.New().String()
	if err := m.Set(ctx, path+"/"+key, value); err != nil {
		return "", err
	}
	return key, nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, path)
	prefix := path + "/"
	for p := range m.docs {
		if strings.HasPrefix(p, prefix) {
			delete(m.docs, p)
		}
	}
	return nil
}

func (m *Memory) Query(ctx context.Context, path string, opts QueryOptions) ([]Snapshot, error) {
	m.mu.RLock()
	prefix := path + "/"
	snaps := make([]Snapshot, 0)
	for p, data := range m.docs {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		key := strings.TrimPrefix(p, prefix)
		if strings.Contains(key, "/") {
			// Not a direct child
			continue
		}
		buf := make([]byte, len(data))
		copy(buf, data)
		snaps = append(snaps, NewSnapshot(key, buf))
	}
	m.mu.RUnlock()

	if opts.OrderBy != "" {
		sort.Slice(snaps, func(i, j int) bool {
			return snaps[i].Field(opts.OrderBy) < snaps[j].Field(opts.OrderBy)
		})

		filtered := snaps[:0]
		for _, s := range snaps {
			v := s.Field(opts.OrderBy)
			if opts.StartAt != "" && v < opts.StartAt {
				continue
			}
			if opts.EndAt != "" && v > opts.EndAt {
				continue
			}
			filtered = append(filtered, s)
		}
		snaps = filtered
	} else {
		sort.Slice(snaps, func(i, j int) bool { return snaps[i].Key < snaps[j].Key })
	}

	if opts.LimitToLast > 0 && len(snaps) > opts.LimitToLast {
		snaps = snaps[len(snaps)-opts.LimitToLast:]
	}
	return snaps, nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of stored documents (test helper)
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
