// Package toolutil provides shared helpers for the go_caption tool handlers.
package toolutil

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/anatolykoptev/go_caption/internal/engine"
)

// CacheLoadJSON tries to load a cached value of type T from the engine cache.
// Returns the decoded value and true on hit; zero value and false on miss or decode error.
func CacheLoadJSON[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	cached, ok := engine.CacheGet(ctx, key)
	if !ok {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(cached, &out); err != nil {
		slog.Debug("cache: decode failed", slog.String("key", key), slog.Any("error", err))
		return zero, false
	}
	return out, true
}

// CacheStoreJSON marshals v and stores it in the engine cache.
func CacheStoreJSON[T any](ctx context.Context, key string, v T) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	engine.CacheSet(ctx, key, data)
}

// Cached returns the cached T for key, or runs load and caches its result.
// hit reports whether the value came from the cache. Errors are never cached.
func Cached[T any](ctx context.Context, key string, load func(context.Context) (T, error)) (out T, hit bool, err error) {
	if out, ok := CacheLoadJSON[T](ctx, key); ok {
		return out, true, nil
	}
	out, err = load(ctx)
	if err != nil {
		return out, false, err
	}
	CacheStoreJSON(ctx, key, out)
	return out, false, nil
}
