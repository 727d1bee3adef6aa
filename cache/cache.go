// Package cache stores successful translations so repeated selections do
// not hit the model again. Entries are scoped to a session generation, so
// a configuration change never serves stale results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minios-linux/glosa/logging"
	"github.com/minios-linux/glosa/translate"
)

// KeyPrefix namespaces glosa's redis keys.
const KeyPrefix = "glosa:tr:"

// Key identifies one cached translation.
type Key struct {
	Generation uint64
	Backend    string
	Source     string
	Target     string
	Style      string
	Text       string
}

// String renders the redis key. Text is hashed to bound the key size.
func (k Key) String() string {
	h := sha256.Sum256([]byte(strings.Join([]string{k.Backend, k.Source, k.Target, k.Style, k.Text}, "\x00")))
	return KeyPrefix + strconv.FormatUint(k.Generation, 10) + ":" + hex.EncodeToString(h[:16])
}

// Cache is a translation result cache. Implementations never fail a
// translation: errors are logged and treated as misses.
type Cache interface {
	Get(ctx context.Context, key Key) (translate.Output, bool)
	Set(ctx context.Context, key Key, out translate.Output)
	Close() error
}

// ---------------------------------------------------------------------------
// No-op
// ---------------------------------------------------------------------------

// Nop caches nothing.
type Nop struct{}

func (Nop) Get(context.Context, Key) (translate.Output, bool) { return translate.Output{}, false }
func (Nop) Set(context.Context, Key, translate.Output)        {}
func (Nop) Close() error                                      { return nil }

// ---------------------------------------------------------------------------
// Redis
// ---------------------------------------------------------------------------

// Redis is a redis-backed cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to the redis URL (redis://host:port/db) and pings it.
func NewRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return NewRedisClient(ctx, redis.NewClient(opts), ttl)
}

// NewRedisClient wraps an existing client and pings it.
func NewRedisClient(ctx context.Context, client *redis.Client, ttl time.Duration) (*Redis, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the cached output for key.
func (r *Redis) Get(ctx context.Context, key Key) (translate.Output, bool) {
	data, err := r.client.Get(ctx, key.String()).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logging.FromContext(ctx).WithError(err).Debug("cache read failed")
		}
		return translate.Output{}, false
	}
	var out translate.Output
	if err := json.Unmarshal(data, &out); err != nil || out.Text == "" {
		return translate.Output{}, false
	}
	return out, true
}

// Set stores out under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key Key, out translate.Output) {
	data, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key.String(), data, r.ttl).Err(); err != nil {
		logging.FromContext(ctx).WithError(err).Debug("cache write failed")
	}
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
