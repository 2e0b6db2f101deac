package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"penfeed/internal/middleware"
)

// GetJSON loads key into dest. It reports false on a miss.
func GetJSON(ctx context.Context, store Store, key string, dest any) (bool, error) {
	b, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON stores v under key for ttl.
func SetJSON(ctx context.Context, store Store, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, b, ttl)
}

// Aside serves dest from the store when present; otherwise fetch fills dest and the
// result is stored best-effort. Cache failures degrade to a miss. hit reports whether
// the store answered.
func Aside(ctx context.Context, store Store, key string, dest any, ttl time.Duration, fetch func() error) (hit bool, err error) {
	found, err := GetJSON(ctx, store, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		return true, nil
	}

	if err := fetch(); err != nil {
		return false, err
	}

	if err := SetJSON(ctx, store, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return false, nil
}
