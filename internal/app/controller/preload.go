package controller

import (
	"image"

	lru "github.com/hashicorp/golang-lru/v2"
)

// preloadCache maps sequence indices to fully decoded images. It is sized to
// the photo list, so within one session entries are never actually evicted;
// the LRU bound only matters as a safety net. Entries are added only after a
// successful load and decode.
type preloadCache struct {
	lru *lru.Cache[int, image.Image]
}

func newPreloadCache(size int) *preloadCache {
	if size < 1 {
		size = 1
	}
	l, _ := lru.New[int, image.Image](size)
	return &preloadCache{lru: l}
}

func (p *preloadCache) add(index int, img image.Image) {
	p.lru.Add(index, img)
}

func (p *preloadCache) get(index int) (image.Image, bool) {
	return p.lru.Get(index)
}

func (p *preloadCache) has(index int) bool {
	return p.lru.Contains(index)
}

func (p *preloadCache) len() int {
	return p.lru.Len()
}
