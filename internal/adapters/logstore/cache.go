package logstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/okian/brewcast/pkg/metrics"
)

// CachedReader serves the last Load until the file's modification time or
// size changes, or until Invalidate is called.
type CachedReader struct {
	loader Loader
	path   string

	mu      sync.Mutex
	snap    Snapshot
	modTime time.Time
	size    int64
	valid   bool
}

// NewCachedReader caches loads of the file at path through loader.
func NewCachedReader(loader Loader, path string) *CachedReader {
	return &CachedReader{loader: loader, path: path}
}

// Load implements Loader.
func (c *CachedReader) Load(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.snap, c.valid = Snapshot{}, false
		metrics.RecordLogLoad(metrics.LoadMissing, 0, 0)
		return Snapshot{}, nil
	}
	if err == nil && c.valid && info.ModTime().Equal(c.modTime) && info.Size() == c.size {
		metrics.RecordLogLoad(metrics.LoadHit, len(c.snap.Records), c.snap.Malformed)
		return c.snap, nil
	}

	snap, err := c.loader.Load(ctx)
	if err != nil {
		metrics.RecordLogLoad(metrics.LoadError, 0, 0)
		return Snapshot{}, err
	}
	c.snap, c.valid = snap, info != nil
	if info != nil {
		c.modTime, c.size = info.ModTime(), info.Size()
	}
	metrics.RecordLogLoad(metrics.LoadReload, len(snap.Records), snap.Malformed)
	return snap, nil
}

// Invalidate forces the next Load to read the file.
func (c *CachedReader) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
	metrics.RecordLogInvalidation()
}
