package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"land_leads_app_go/models"
)

// MemoryBackend keeps each queue as a JSON-encoded list under its key, the same
// shape the landing pages kept in browser storage. It lives for the process only.
type MemoryBackend struct {
	mu    sync.RWMutex
	lists map[string][]byte
}

// NewMemoryBackend creates an empty in-memory backend
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{lists: make(map[string][]byte)}
}

// Append decodes the current list, prepends rec and stores the re-encoded list
func (m *MemoryBackend) Append(ctx context.Context, key string, rec models.SubmissionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := decodeList(m.lists[key])
	if err != nil {
		return fmt.Errorf("queue %s: %w", key, err)
	}

	next := make([]models.SubmissionRecord, 0, len(current)+1)
	next = append(next, rec)
	next = append(next, current...)

	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("queue %s: failed to encode: %w", key, err)
	}
	m.lists[key] = data
	return nil
}

// ReadAll decodes the list stored under key
func (m *MemoryBackend) ReadAll(ctx context.Context, key string) ([]models.SubmissionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data := m.lists[key]
	m.mu.RUnlock()

	records, err := decodeList(data)
	if err != nil {
		return nil, fmt.Errorf("queue %s: %w", key, err)
	}
	return records, nil
}

// SetRaw replaces the stored bytes of a queue, used to import or repair lists
func (m *MemoryBackend) SetRaw(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[key] = append([]byte(nil), data...)
}

// Keys returns every queue key that has been written
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.lists))
	for k := range m.lists {
		keys = append(keys, k)
	}
	return keys
}

func decodeList(data []byte) ([]models.SubmissionRecord, error) {
	if len(data) == 0 {
		return []models.SubmissionRecord{}, nil
	}
	var records []models.SubmissionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("corrupted queue content: %w", err)
	}
	return records, nil
}
