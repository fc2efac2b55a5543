package record

import (
	"context"
	"sync"
)

// MemoryService is an in-memory Service.
// Data is lost when the process exits.
type MemoryService struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
}

// Compile-time interface checks.
var (
	_ Service = (*MemoryService)(nil)
	_ Seeder  = (*MemoryService)(nil)
)

// NewMemoryService creates an in-memory service holding records.
func NewMemoryService(records ...Record) *MemoryService {
	m := &MemoryService{records: make(map[string]Record, len(records))}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

// ListRecords implements Service.
func (m *MemoryService) ListRecords(ctx context.Context, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	out := make([]Record, 0, len(m.records))
	for _, r := range m.records {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sortRecords(out)
	return out, nil
}

// ApplyEdits implements Service.
func (m *MemoryService) ApplyEdits(ctx context.Context, set EditSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	changed, err := applyEdits(m.records, set)
	if err != nil {
		return err
	}
	for id, r := range changed {
		m.records[id] = r
	}
	return nil
}

// Put implements Seeder.
func (m *MemoryService) Put(_ context.Context, records ...Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, r := range records {
		if r.ID == "" {
			return ErrMissingID
		}
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

// Len returns the number of stored records.
func (m *MemoryService) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close marks the service closed.
func (m *MemoryService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
