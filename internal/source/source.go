// Package source resolves a configured photo location into an ordered
// sequence of photos and fetches their bytes.
package source

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrSourceUnavailable is returned when no photos could be resolved at all.
// It is fatal to the slideshow session and only recoverable by a
// configuration change.
var ErrSourceUnavailable = errors.New("photo source unavailable")

// Photo is one entry in the resolved sequence. Key is the object key within
// the configured bucket; it is empty for photos addressed only by URL (the
// sample fallback). Photos have no identity beyond their position in the
// sequence.
type Photo struct {
	Key string
	URL string
}

// Source resolves and fetches photos. Implementations must not mutate remote
// state.
type Source interface {
	// List resolves the configured location into an ordered photo
	// sequence. An empty or unresolvable location returns
	// ErrSourceUnavailable.
	List(ctx context.Context) ([]Photo, error)
	// Fetch retrieves the raw bytes for one photo.
	Fetch(ctx context.Context, p Photo) ([]byte, error)
}

// imageExtensions are the object suffixes considered displayable.
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".gif":  {},
	".webp": {},
}

// isImageKey reports whether the object key looks like a displayable image.
// Sidecar and hidden files (e.g. "._IMG_0001.jpg", ".xmp") are excluded.
func isImageKey(key string) bool {
	base := path.Base(key)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "._") {
		return false
	}
	ext := strings.ToLower(path.Ext(base))
	_, ok := imageExtensions[ext]
	return ok
}
