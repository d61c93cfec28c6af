package dataset

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adam5647/BaselineAnalysis/internal/model"
)

// LoaderFunc produces a fresh dataset.
type LoaderFunc func(ctx context.Context) (*Result, error)

// FileLoader returns a LoaderFunc reading path/sheet with Load.
func FileLoader(path, sheet string) LoaderFunc {
	return func(context.Context) (*Result, error) {
		return Load(path, sheet)
	}
}

// Cache holds the loaded dataset for the lifetime of the process. The first
// call to Records loads it; Reload and Invalidate are the only ways the
// cached copy changes. Returned slices must be treated as read-only.
type Cache struct {
	load   LoaderFunc
	onLoad func(context.Context, *Result)

	sf singleflight.Group

	mu       sync.RWMutex
	current  *Result
	loadedAt time.Time
}

// NewCache creates a cache around load. onLoad, if non-nil, runs after every
// successful load.
func NewCache(load LoaderFunc, onLoad func(context.Context, *Result)) *Cache {
	return &Cache{load: load, onLoad: onLoad}
}

// Records returns the cached records, loading them on first use.
func (c *Cache) Records(ctx context.Context) ([]model.ResponseRecord, error) {
	c.mu.RLock()
	cur := c.current
	c.mu.RUnlock()
	if cur != nil {
		return cur.Records, nil
	}

	res, err := c.fill(ctx, false)
	if err != nil {
		return nil, err
	}
	return res.Records, nil
}

// Reload re-reads the dataset and swaps it in. On failure the previous copy
// stays in place.
func (c *Cache) Reload(ctx context.Context) (*Result, error) {
	return c.fill(ctx, true)
}

// Invalidate drops the cached copy; the next Records call reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.current = nil
	c.loadedAt = time.Time{}
	c.mu.Unlock()
}

// Current returns the cached result, or nil if nothing is loaded.
func (c *Cache) Current() *Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LoadedAt returns when the cached copy was loaded (zero if not loaded).
func (c *Cache) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Cache) fill(ctx context.Context, force bool) (*Result, error) {
	key := "load"
	if force {
		key = "reload"
	}
	v, err, _ := c.sf.Do(key, func() (any, error) {
		if !force {
			c.mu.RLock()
			cur := c.current
			c.mu.RUnlock()
			if cur != nil {
				return cur, nil
			}
		}

		start := time.Now()
		res, err := c.load(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.current = res
		c.loadedAt = time.Now()
		c.mu.Unlock()

		slog.Info("loaded dataset",
			"path", res.Path,
			"records", len(res.Records),
			"hash", res.Hash,
			"took", time.Since(start),
		)
		if c.onLoad != nil {
			c.onLoad(ctx, res)
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}
