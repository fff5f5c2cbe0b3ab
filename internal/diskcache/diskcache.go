// Package diskcache is the on-disk MIME body cache that sits between the
// mail-send builder pipeline (C6, which writes a composed message) and the
// SMTP send task (C7, which streams it out). Bodies are written to a file
// under a configured root directory keyed by the outgoing message's
// Message-ID (the builder passes it as the cache key; the task id is not
// part of the key);
// github.com/patrickmn/go-cache fronts the filesystem with a short-TTL
// in-memory index so a task that runs shortly after it was scheduled (the
// common case — most sends have a delay of one second or less) avoids a
// stat() round trip against the disk.
package diskcache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sparklive/rustmailer/internal/apperr"
)

// Cache is the disk-backed MIME body store.
type Cache struct {
	root string
	idx  *gocache.Cache
}

// New creates a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create disk cache dir: %w", err)
	}
	return &Cache{
		root: dir,
		idx:  gocache.New(5*time.Minute, 10*time.Minute),
	}, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.root, key+".eml")
}

// Put writes body under key, overwriting any existing entry.
func (c *Cache) Put(key string, body []byte) error {
	if err := os.WriteFile(c.path(key), body, 0o600); err != nil {
		return fmt.Errorf("write disk cache entry %s: %w", key, err)
	}
	c.idx.Set(key, body, gocache.DefaultExpiration)
	return nil
}

// Get returns the body for key, reading the in-memory index first.
func (c *Cache) Get(key string) ([]byte, error) {
	if v, ok := c.idx.Get(key); ok {
		return v.([]byte), nil
	}
	body, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return nil, apperr.New(apperr.InternalError, "failed to get cache reader to load email body")
	}
	if err != nil {
		return nil, apperr.Wrap(err, apperr.InternalError, "failed to load email body from disk cache")
	}
	c.idx.Set(key, body, gocache.DefaultExpiration)
	return body, nil
}

// Delete removes key from both the index and disk.
func (c *Cache) Delete(key string) error {
	c.idx.Delete(key)
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
