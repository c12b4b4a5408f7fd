package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-redis/redis/v8"
)

const defaultNamespace = "storefront"

// RedisStore keeps values in Redis under "<namespace>:<key>".
type RedisStore struct {
	client    *redis.Client
	namespace string

	mu  sync.RWMutex
	ttl time.Duration
}

// NewRedisStore connects to redisURL and pings it before returning.
func NewRedisStore(redisURL, namespace string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}

	if namespace == "" {
		namespace = defaultNamespace
	}
	return &RedisStore{client: client, namespace: namespace, ttl: DefaultTTL}, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	if ttl == 0 {
		ttl = r.defaultTTL()
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, errors.Wrap(ErrNotFound, key)
	case err != nil:
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrapf(err, "redis del %s", key)
	}
	return nil
}

func (r *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "redis exists %s", key)
	}
	return n > 0, nil
}

// SetTTL changes the expiry applied when Set is called with a zero ttl.
func (r *RedisStore) SetTTL(ttl time.Duration) {
	r.mu.Lock()
	r.ttl = ttl
	r.mu.Unlock()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) defaultTTL() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ttl
}

func (r *RedisStore) key(k string) string {
	return r.namespace + ":" + k
}
