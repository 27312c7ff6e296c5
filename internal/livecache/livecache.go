// Package livecache keeps the most recent record of each device stream in
// Valkey (or Redis) so the viewer can show live values without touching the
// event log.
package livecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTL drops entries of a device that went quiet.
const TTL = 24 * time.Hour

const keyPrefix = "garden:last:"

// ErrMiss is returned by Get when nothing is cached for a stream.
var ErrMiss = errors.New("livecache: no entry")

// Entry is what gets stored per stream.
type Entry struct {
	Stream     string          `json:"stream"`
	Topic      string          `json:"topic"`
	ReceivedAt time.Time       `json:"received_at"`
	Record     json.RawMessage `json:"record"`
}

// Cache is a thin wrapper around a go-redis client. A nil *Cache is valid and
// does nothing, which is how the cache is disabled.
type Cache struct {
	rdb *redis.Client
}

// Connect dials addr and pings it. An empty addr returns a nil Cache.
func Connect(ctx context.Context, addr string) (*Cache, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("valkey %s unreachable: %w", addr, err)
	}
	return &Cache{rdb: rdb}, nil
}

// Key returns the cache key of a stream.
func Key(stream string) string {
	return keyPrefix + stream
}

// Put overwrites the last record of a stream.
func (c *Cache) Put(ctx context.Context, e Entry) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", e.Stream, err)
	}
	if err := c.rdb.Set(ctx, Key(e.Stream), data, TTL).Err(); err != nil {
		return fmt.Errorf("update valkey: %w", err)
	}
	return nil
}

// Get reads the last record of a stream.
func (c *Cache) Get(ctx context.Context, stream string) (Entry, error) {
	var e Entry
	if c == nil {
		return e, ErrMiss
	}
	data, err := c.rdb.Get(ctx, Key(stream)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, ErrMiss
	}
	if err != nil {
		return e, fmt.Errorf("read valkey: %w", err)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode %s entry: %w", stream, err)
	}
	return e, nil
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
