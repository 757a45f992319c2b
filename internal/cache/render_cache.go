// Package cache keeps recent screenshots in Redis so warm instances can skip the browser.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"resumepdf/internal/chrome"
	u "resumepdf/internal/utils"
)

const opTimeout = time.Second

// RenderCache stores screenshot PNGs keyed by everything that influences a capture.
type RenderCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRenderCache wraps rdb. A non-positive ttl falls back to one minute.
func NewRenderCache(rdb *redis.Client, ttl time.Duration) *RenderCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RenderCache{rdb: rdb, ttl: ttl}
}

// Key computes the cache key of spec.
func Key(spec chrome.CaptureSpec) string {
	h := sha256.New()
	h.Write([]byte(spec.URL))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(spec.DarkTheme)))
	h.Write([]byte{0})
	h.Write([]byte(spec.ContainerSelector))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(spec.RemoveSelectors, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatInt(spec.ViewportWidth, 10) + "x" + strconv.FormatInt(spec.ViewportHeight, 10)))
	return "rendercache:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached screenshot for spec, or nil on a miss. Redis failures
// are logged and reported as misses.
func (c *RenderCache) Get(ctx context.Context, spec chrome.CaptureSpec) []byte {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := Key(spec)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		u.Warn("Redis read failed", "error", err)
		return nil
	}
	u.Info("Render cache hit", "key", key)
	return data
}

// Set stores png for spec.
func (c *RenderCache) Set(ctx context.Context, spec chrome.CaptureSpec, png []byte) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := c.rdb.Set(ctx, Key(spec), png, c.ttl).Err(); err != nil {
		u.Warn("Redis write failed", "error", err)
	}
}
