package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
)

// DefaultTTL keeps guest data for a week unless configured otherwise.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned by Get and Load for a missing or expired key.
var ErrNotFound = errors.New("key not found")

// Store is the local persisted key/value storage contract. Set encodes value
// as JSON; a zero ttl means the store's default.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetTTL(ttl time.Duration)
}

// Load reads key from s and decodes the JSON into dest.
func Load(ctx context.Context, s Store, key string, dest interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return errors.Wrapf(err, "decode %s", key)
	}
	return nil
}

type namespaced struct {
	Store
	prefix string
}

// Namespaced returns a view of s whose keys are prefixed with "<prefix>:".
func Namespaced(s Store, prefix string) Store {
	if prefix == "" {
		return s
	}
	return &namespaced{Store: s, prefix: prefix}
}

func (n *namespaced) key(k string) string { return n.prefix + ":" + k }

func (n *namespaced) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return n.Store.Set(ctx, n.key(key), value, ttl)
}

func (n *namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	return n.Store.Get(ctx, n.key(key))
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.Store.Delete(ctx, n.key(key))
}

func (n *namespaced) Exists(ctx context.Context, key string) (bool, error) {
	return n.Store.Exists(ctx, n.key(key))
}
