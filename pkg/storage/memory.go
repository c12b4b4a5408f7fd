package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// InMemoryStore keeps values in process memory. Expired entries are dropped
// lazily on access.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
}

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool { return now.After(e.expiresAt) }

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string]entry), ttl: DefaultTTL}
}

func (m *InMemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ttl == 0 {
		ttl = m.ttl
	}
	m.entries[key] = entry{data: data, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *InMemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return nil, errors.Wrap(ErrNotFound, key)
	}
	return append([]byte(nil), e.data...), nil
}

func (m *InMemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *InMemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok, nil
}

func (m *InMemoryStore) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	m.ttl = ttl
	m.mu.Unlock()
}

// live returns the entry for key, deleting it if it has expired. m.mu must be
// held.
func (m *InMemoryStore) live(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}
