package executor

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/afero"
)

// DefaultCacheSize is the number of input files kept in memory between runs.
const DefaultCacheSize = 512

type cacheEntry struct {
	size    int64
	modTime time.Time
	data    []byte
}

// inputCache keeps recently read inputs keyed by path. An entry is only
// served while the file's size and modification time are unchanged.
type inputCache struct {
	entries *lru.Cache[string, cacheEntry]
	hits    atomic.Int64
	misses  atomic.Int64
}

func newInputCache(size int) (*inputCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &inputCache{entries: entries}, nil
}

func (c *inputCache) read(fs afero.Fs, path string) ([]byte, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}

	if entry, ok := c.entries.Get(path); ok &&
		entry.size == info.Size() && entry.modTime.Equal(info.ModTime()) {
		c.hits.Add(1)
		return entry.data, nil
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	c.misses.Add(1)
	c.entries.Add(path, cacheEntry{size: info.Size(), modTime: info.ModTime(), data: data})
	return data, nil
}
