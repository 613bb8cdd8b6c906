// Package cache stores computed comparables responses in Redis. Entries are
// versioned per make/model segment so a listing change invalidates every
// cached result of its segment with a single INCR.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"carma_backend/internal/comparables/normalize"
	"carma_backend/internal/comparables/transport"
	"carma_backend/internal/events"
	"carma_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "carma:comparables:"
	defaultTTL       = 15 * time.Minute
)

// Scope identifies a make/model segment by its folded comparison keys.
type Scope struct {
	Make  string
	Model string
}

// ResponseCache caches comparables responses.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// New creates a response cache on an existing Redis client.
func New(client *redis.Client, ttl time.Duration, log *logger.Logger) *ResponseCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ResponseCache{client: client, ttl: ttl, prefix: defaultKeyPrefix, log: log}
}

// EntryKey addresses a cached response under the segment version read at
// lookup. Storing a response computed after the lookup under that key lets an
// invalidation that lands mid-computation orphan it. The empty key is never
// stored.
type EntryKey string

// Get returns a cached response and the key a freshly computed response must
// be stored under. Any Redis failure is logged and reported as a miss.
func (c *ResponseCache) Get(ctx context.Context, scope Scope, requestKey string) (transport.ComparablesResponse, EntryKey, bool) {
	key, err := c.entryKey(ctx, scope, requestKey)
	if err != nil {
		c.log.CacheError("resolve version", err)
		return transport.ComparablesResponse{}, "", false
	}

	data, err := c.client.Get(ctx, string(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return transport.ComparablesResponse{}, key, false
	}
	if err != nil {
		c.log.CacheError("get", err)
		return transport.ComparablesResponse{}, key, false
	}

	var resp transport.ComparablesResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.log.CacheError("decode", err)
		return transport.ComparablesResponse{}, key, false
	}
	return resp, key, true
}

// Set stores a response under a key returned by Get.
func (c *ResponseCache) Set(ctx context.Context, key EntryKey, resp transport.ComparablesResponse) {
	if key == "" {
		return
	}

	data, err := json.Marshal(resp)
	if err != nil {
		c.log.CacheError("encode", err)
		return
	}
	if err := c.client.Set(ctx, string(key), data, c.ttl).Err(); err != nil {
		c.log.CacheError("set", err)
	}
}

// Invalidate bumps the segment version, orphaning every entry cached under
// the previous one. Orphans expire with their TTL.
func (c *ResponseCache) Invalidate(ctx context.Context, scope Scope) error {
	return c.client.Incr(ctx, c.versionKey(scope)).Err()
}

// Handle invalidates the segment of a changed listing.
func (c *ResponseCache) Handle(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ListingChanged)
	if !ok {
		return nil
	}
	scope := Scope{Make: normalize.Categorical(e.Make), Model: normalize.Categorical(e.Model)}
	if err := c.Invalidate(ctx, scope); err != nil {
		c.log.CacheError("invalidate", err)
		return err
	}
	c.log.Debug("comparables cache invalidated", "listing_id", e.ListingID, "make", scope.Make, "model", scope.Model)
	return nil
}

func (c *ResponseCache) entryKey(ctx context.Context, scope Scope, requestKey string) (EntryKey, error) {
	version, err := c.client.Get(ctx, c.versionKey(scope)).Result()
	if errors.Is(err, redis.Nil) {
		version = "0"
	} else if err != nil {
		return "", err
	}
	return EntryKey(c.prefix + "entry:" + hash(scope.Make, scope.Model) + ":v" + version + ":" + hash(requestKey)), nil
}

func (c *ResponseCache) versionKey(scope Scope) string {
	return c.prefix + "version:" + hash(scope.Make, scope.Model)
}

func hash(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
