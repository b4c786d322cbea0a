package projection

import (
	"sync"

	"github.com/employd-dev/employd/internal/session"
)

// MemoryStore keeps the projection in memory. Used by tests and by
// short-lived processes that do not want durable state.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saved bool

	// SaveCount tracks how many times Save was called, for tests.
	SaveCount int
}

// NewMemoryStore creates an empty in-memory projection store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Seed stores a projection directly, bypassing Save bookkeeping.
func (m *MemoryStore) Seed(p session.Projection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := encode(p)
	if err != nil {
		return
	}
	m.data = data
	m.saved = true
}

// SeedRaw stores raw slot bytes, letting tests simulate a corrupt slot.
func (m *MemoryStore) SeedRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.saved = true
}

func (m *MemoryStore) Save(p session.Projection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, err := encode(p)
	if err != nil {
		return err
	}
	m.data = data
	m.saved = true
	m.SaveCount++
	return nil
}

func (m *MemoryStore) Load() (session.Projection, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.saved {
		return session.Projection{}, false, nil
	}
	p, ok := decode(m.data)
	return p, ok, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = nil
	m.saved = false
	return nil
}

// Stored reports whether the slot currently holds a value.
func (m *MemoryStore) Stored() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}
