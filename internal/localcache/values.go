package localcache

import (
	"encoding/json"
	"strings"

	"vidash/internal/logging"
	"vidash/internal/snapshot"
)

const (
	// KeyUIPrefs holds the last applied layout preferences.
	KeyUIPrefs = "video_app_v5_ui"
	// KeyFileSizes holds the filename to byte size map.
	KeyFileSizes = "video_app_v5_csv_sizes"
)

// LoadPrefs returns the cached layout preferences, default-filled.
func (c *Cache) LoadPrefs() (snapshot.UIPrefs, bool) {
	data, ok := c.Get(KeyUIPrefs)
	if !ok {
		return snapshot.UIPrefs{}, false
	}
	prefs, err := snapshot.DecodePrefs(data)
	if err != nil {
		c.logger.Debug("cached prefs unreadable", logging.Error(err))
		return snapshot.UIPrefs{}, false
	}
	return prefs, true
}

// SavePrefs stores prefs.
func (c *Cache) SavePrefs(prefs snapshot.UIPrefs) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	c.Put(KeyUIPrefs, data)
}

// FileSize returns a remembered positive size for name. Sizes are read
// from memory; the database is only read when the cache opens.
func (c *Cache) FileSize(name string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	c.mu.Lock()
	size, ok := c.sizes[strings.TrimSpace(name)]
	c.mu.Unlock()
	if !ok || size <= 0 {
		return 0, false
	}
	return size, true
}

// RememberFileSize records the size of a file the user supplied and writes
// the size map through to the database.
func (c *Cache) RememberFileSize(name string, size int64) {
	name = strings.TrimSpace(name)
	if !c.Enabled() || name == "" || size <= 0 {
		return
	}
	c.mu.Lock()
	c.sizes[name] = size
	data, err := json.Marshal(c.sizes)
	c.mu.Unlock()
	if err != nil {
		return
	}
	c.Put(KeyFileSizes, data)
}

func (c *Cache) loadFileSizes() map[string]int64 {
	out := map[string]int64{}
	data, ok := c.Get(KeyFileSizes)
	if !ok {
		return out
	}
	var loose map[string]any
	if err := json.Unmarshal(data, &loose); err != nil {
		c.logger.Debug("cached file sizes unreadable", logging.Error(err))
		return out
	}
	for name, value := range loose {
		if size, ok := value.(float64); ok && size > 0 {
			out[name] = int64(size)
		}
	}
	return out
}
