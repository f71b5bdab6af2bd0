// Package metricscache caches computed metrics under keys derived from a
// fingerprint of the input dataset, so unchanged data is never recomputed
// and any mutation is a guaranteed miss.
package metricscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	indexSuffix = "__index"
	warmSuffix  = "__warm"
)

// DefaultWarmTTL is how long a namespace counts as warm after a write.
const DefaultWarmTTL = 10 * time.Minute

// DefaultComputeTimeout bounds a computation shared by concurrent misses.
const DefaultComputeTimeout = 2 * time.Minute

// Cache wraps metric computation with a fingerprint-keyed Store. A nil
// *Cache computes directly.
type Cache struct {
	store          Store
	logger         *slog.Logger
	warmTTL        time.Duration
	computeTimeout time.Duration

	group   singleflight.Group
	indexMu sync.Mutex
}

func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger, warmTTL: DefaultWarmTTL, computeTimeout: DefaultComputeTimeout}
}

// WithWarmTTL overrides how long a write keeps the namespace warm.
func (c *Cache) WithWarmTTL(ttl time.Duration) *Cache {
	c.warmTTL = ttl
	return c
}

// WithComputeTimeout overrides how long a shared computation may run.
func (c *Cache) WithComputeTimeout(timeout time.Duration) *Cache {
	if timeout > 0 {
		c.computeTimeout = timeout
	}
	return c
}

// Key builds "{namespace}:{key}:{fingerprint}".
func Key(namespace, key, fingerprint string) string {
	return namespace + ":" + key + ":" + fingerprint
}

func indexKey(namespace string) string {
	return namespace + ":" + indexSuffix
}

func warmKey(namespace string) string {
	return namespace + ":" + warmSuffix
}

// Cached returns the value stored under (namespace, key, fingerprint), or
// computes, stores and returns it. Backend failures are logged and the value
// is computed directly; compute errors are returned and never cached.
// Concurrent misses for the same key share one computation.
func Cached[T any](ctx context.Context, c *Cache, namespace, key, fingerprint string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if c == nil || c.store == nil {
		return compute(ctx)
	}

	fullKey := Key(namespace, key, fingerprint)

	raw, ok, err := c.store.Get(ctx, fullKey)
	if err != nil {
		c.logger.Warn("Metric cache unavailable, computing directly",
			slog.String("key", fullKey), slog.Any("error", err))
		return compute(ctx)
	}
	if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			c.logger.Debug("Metric cache hit", slog.String("key", fullKey))
			return cached, nil
		}
		c.logger.Warn("Discarding undecodable cache entry", slog.String("key", fullKey))
	}

	// The shared computation outlives any single caller; each caller stops
	// waiting when its own context ends.
	ch := c.group.DoChan(fullKey, func() (interface{}, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()

		value, err := compute(sharedCtx)
		if err != nil {
			return nil, err
		}
		c.write(sharedCtx, namespace, fullKey, value, ttl)
		return value, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		value, _ := res.Val.(T)
		return value, nil
	}
}

func (c *Cache) write(ctx context.Context, namespace, fullKey string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Metric value not cacheable", slog.String("key", fullKey), slog.Any("error", err))
		return
	}

	if err := c.store.Set(ctx, fullKey, raw, ttl); err != nil {
		c.logger.Warn("Failed to write metric cache entry", slog.String("key", fullKey), slog.Any("error", err))
		return
	}
	if err := c.addToIndex(ctx, namespace, fullKey); err != nil {
		c.logger.Warn("Failed to index metric cache entry", slog.String("key", fullKey), slog.Any("error", err))
	}
	if err := c.MarkWarm(ctx, namespace); err != nil {
		c.logger.Warn("Failed to mark metric cache warm", slog.String("namespace", namespace), slog.Any("error", err))
	}
}

// addToIndex records fullKey under the namespace index so InvalidateAll can
// find it on stores without pattern deletes. Index updates from one process
// are serialized; across processes the last writer wins, and entries missed
// that way still expire on their ttl.
func (c *Cache) addToIndex(ctx context.Context, namespace, fullKey string) error {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.indexedKeys(ctx, namespace)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == fullKey {
			return nil
		}
	}
	keys = append(keys, fullKey)

	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, indexKey(namespace), raw, 0)
}

func (c *Cache) indexedKeys(ctx context.Context, namespace string) ([]string, error) {
	raw, ok, err := c.store.Get(ctx, indexKey(namespace))
	if err != nil || !ok {
		return nil, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return nil, nil
	}
	return keys, nil
}

// InvalidateAll removes every entry ever issued under namespace, the index
// itself and the warm marker. It returns the number of indexed entries.
func (c *Cache) InvalidateAll(ctx context.Context, namespace string) (int, error) {
	if c == nil || c.store == nil {
		return 0, nil
	}

	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	keys, err := c.indexedKeys(ctx, namespace)
	if err != nil {
		return 0, err
	}

	toDelete := append(append([]string(nil), keys...), indexKey(namespace), warmKey(namespace))
	if err := c.store.Delete(ctx, toDelete...); err != nil {
		return 0, err
	}

	c.logger.Info("Metric cache invalidated", slog.String("namespace", namespace), slog.Int("entries", len(keys)))
	return len(keys), nil
}

// MarkWarm records that namespace was written recently.
func (c *Cache) MarkWarm(ctx context.Context, namespace string) error {
	if c == nil || c.store == nil {
		return nil
	}
	stamp, _ := time.Now().UTC().MarshalText()
	return c.store.Set(ctx, warmKey(namespace), stamp, c.warmTTL)
}

// IsWarm reports whether namespace was written within the warm ttl. An
// unavailable backend is reported as cold.
func (c *Cache) IsWarm(ctx context.Context, namespace string) bool {
	if c == nil || c.store == nil {
		return false
	}
	_, ok, err := c.store.Get(ctx, warmKey(namespace))
	if err != nil {
		c.logger.Warn("Metric cache unavailable while checking warm status", slog.Any("error", err))
		return false
	}
	return ok
}

// Status summarizes a namespace for operators.
type Status struct {
	Namespace string `json:"namespace"`
	Warm      bool   `json:"warm"`
	Entries   int    `json:"entries"`
}

// Status reports warmness and the number of indexed entries of namespace.
func (c *Cache) Status(ctx context.Context, namespace string) Status {
	st := Status{Namespace: namespace, Warm: c.IsWarm(ctx, namespace)}
	if c == nil || c.store == nil {
		return st
	}
	if keys, err := c.indexedKeys(ctx, namespace); err == nil {
		st.Entries = len(keys)
	}
	return st
}
