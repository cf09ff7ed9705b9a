package regression

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// Reload outcomes passed to the reload hook.
const (
	ReloadHit    = "hit"
	ReloadLoaded = "reload"
	ReloadError  = "error"
)

// ReloadHook observes every Get. err is non-nil only for ReloadError.
type ReloadHook func(model, result string, err error)

// CacheOption applies a configuration option to the Cache.
type CacheOption func(*Cache)

// WithReloadHook registers an observer for cache outcomes.
func WithReloadHook(h ReloadHook) CacheOption {
	return func(c *Cache) {
		if h != nil {
			c.hook = h
		}
	}
}

// Cache holds one artifact in memory and reloads it when the file's
// modification time or size changes.
type Cache struct {
	path string
	hook ReloadHook

	mu      sync.Mutex
	model   *Linear
	modTime time.Time
	size    int64
}

// NewCache loads path once. A missing or broken artifact fails here so the
// process refuses to start.
func NewCache(path string, opts ...CacheOption) (*Cache, error) {
	c := &Cache{path: path, hook: func(string, string, error) {}}
	for _, opt := range opts {
		opt(c)
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, path)
		}
		return nil, fmt.Errorf("stat model %s: %w", path, err)
	}
	m, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	c.model, c.modTime, c.size = m, info.ModTime(), info.Size()
	return c, nil
}

// Path returns the artifact location.
func (c *Cache) Path() string { return c.path }

// Get returns the current model, reloading it if the artifact changed. When
// the reload fails the last good model keeps serving.
func (c *Cache) Get(ctx context.Context) (Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if err != nil {
		c.hook(c.model.Name(), ReloadError, err)
		return c.model, nil
	}
	if info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		c.hook(c.model.Name(), ReloadHit, nil)
		return c.model, nil
	}

	m, err := LoadFile(c.path)
	if err != nil {
		c.hook(c.model.Name(), ReloadError, err)
		return c.model, nil
	}
	c.model, c.modTime, c.size = m, info.ModTime(), info.Size()
	c.hook(m.Name(), ReloadLoaded, nil)
	return c.model, nil
}
