package cache

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gomodule/redigo/redis"
)

// Redis is a distributed Cache backed by a redigo connection pool.
// Keys are namespaced with a prefix so several engines can share one server.
type Redis struct {
	pool   *redis.Pool
	prefix string
}

// NewRedis creates a Redis cache against the given address ("host:port").
func NewRedis(addr, prefix string) *Redis {
	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 4 * time.Minute,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return &Redis{pool: pool, prefix: prefix}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", r.key(key)))
	if err == redis.ErrNil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	seconds := int(ttl / time.Second)
	if seconds <= 0 {
		seconds = 300
	}
	_, err = conn.Do("SETEX", r.key(key), seconds, data)
	return err
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Do("DEL", r.key(key))
	return err
}

// Flush implements Cache.
// Only keys under this cache's prefix are removed.
func (r *Redis) Flush(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	keys, err := redis.Strings(conn.Do("KEYS", r.key("*")))
	if err != nil {
		return err
	}
	for _, k := range keys {
		if _, err := conn.Do("DEL", k); err != nil {
			return err
		}
	}
	return nil
}

// Len implements Cache.
func (r *Redis) Len(ctx context.Context) int {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return 0
	}
	defer conn.Close()

	keys, err := redis.Strings(conn.Do("KEYS", r.key("*")))
	if err != nil {
		return 0
	}
	return len(keys)
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error {
	return r.pool.Close()
}
