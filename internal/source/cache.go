package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const listCacheName = "photos.json"

// CachedSource wraps a Source with a local disk tier. Fetched photo bytes
// and the most recent photo list are written to dir, so the frame keeps
// showing photos when the bucket is unreachable and avoids refetching bytes
// it has already seen.
type CachedSource struct {
	src Source
	dir string
}

// NewCachedSource stores fetched data under dir, creating it if needed.
func NewCachedSource(src Source, dir string) (*CachedSource, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &CachedSource{src: src, dir: dir}, nil
}

// List returns the live listing when the backend answers and falls back to
// the last cached listing when it does not.
func (c *CachedSource) List(ctx context.Context) ([]Photo, error) {
	photos, err := c.src.List(ctx)
	if err != nil {
		cached, cacheErr := c.cachedList()
		if cacheErr != nil {
			return nil, err
		}
		slog.Warn("source listing failed, using cached photo list",
			"error", err, "count", len(cached))
		return cached, nil
	}
	c.storeList(photos)
	return photos, nil
}

// Fetch returns cached bytes when present and fills the cache on a miss.
func (c *CachedSource) Fetch(ctx context.Context, p Photo) ([]byte, error) {
	path := c.photoPath(p)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}
	data, err := c.src.Fetch(ctx, p)
	if err != nil {
		return nil, err
	}
	// TODO: Manage amount of disk space used.
	if err := os.WriteFile(path, data, 0644); err != nil {
		slog.Warn("failed to cache photo", "key", p.Key, "error", err)
	}
	return data, nil
}

func (c *CachedSource) cachedList() ([]Photo, error) {
	data, err := os.ReadFile(filepath.Join(c.dir, listCacheName))
	if err != nil {
		return nil, err
	}
	var photos []Photo
	if err := json.Unmarshal(data, &photos); err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return nil, fmt.Errorf("cached photo list is empty")
	}
	return photos, nil
}

func (c *CachedSource) storeList(photos []Photo) {
	data, err := json.Marshal(photos)
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(c.dir, listCacheName), data, 0644); err != nil {
		slog.Warn("failed to cache photo list", "error", err)
	}
}

// photoPath hashes the photo identity so keys with path separators or URLs
// land in a flat directory.
func (c *CachedSource) photoPath(p Photo) string {
	sum := sha256.Sum256([]byte(p.Key + "\x00" + p.URL))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16]))
}
