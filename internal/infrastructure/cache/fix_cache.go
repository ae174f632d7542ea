package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/pkg/filesystem"
	"github.com/doeshing/vrelay/internal/ports"
)

// FixCache persists verified repairs as a flat JSON object keyed by the
// trimmed broken fragment. Every Add rewrites the whole file.
type FixCache struct {
	path string
	mu   sync.Mutex
	data map[string]string
}

// DefaultPath returns ~/.vrelay/fix_cache.json.
func DefaultPath() string {
	return filepath.Join(filesystem.UserHomeDir(), ".vrelay", "fix_cache.json")
}

// NewFixCache loads the cache at path. A missing file is an empty cache; a file
// that cannot be decoded yields domain.ErrCacheCorrupt.
func NewFixCache(path string) (*FixCache, error) {
	if path == "" {
		path = DefaultPath()
	}
	c := &FixCache{path: filesystem.ExpandPath(path), data: map[string]string{}}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FixCache) load() error {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read fix cache: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrCacheCorrupt, c.path, err)
	}
	if data != nil {
		c.data = data
	}
	return nil
}

// Get returns the memoized repair of original.
func (c *FixCache) Get(original string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fixed, ok := c.data[strings.TrimSpace(original)]
	return fixed, ok
}

// Add records a repair and persists the full mapping. Later writes for the
// same key overwrite earlier ones.
func (c *FixCache) Add(original, fixed string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[strings.TrimSpace(original)] = strings.TrimSpace(fixed)
	return c.saveLocked()
}

// Entries lists cached repairs sorted by key.
func (c *FixCache) Entries() []domain.FixCacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := make([]domain.FixCacheEntry, 0, len(c.data))
	for k, v := range c.data {
		entries = append(entries, domain.FixCacheEntry{Original: k, Fixed: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Original < entries[j].Original })
	return entries
}

// Len returns the number of cached repairs.
func (c *FixCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Clear drops every entry and removes the backing file.
func (c *FixCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string]string{}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Path exposes the backing file.
func (c *FixCache) Path() string {
	return c.path
}

func (c *FixCache) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, domain.DataFilePermissions); err != nil {
		return fmt.Errorf("write fix cache: %w", err)
	}
	return os.Rename(tmp, c.path)
}

var _ ports.FixCache = (*FixCache)(nil)
var _ ports.FixCacheRepository = (*FixCache)(nil)
