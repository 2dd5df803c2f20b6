package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
)

// MockSource generates placeholder images locally so the slideshow is
// exercisable without a bucket or credentials. It is substituted
// automatically when no bucket is configured.
type MockSource struct {
	count  int
	width  int
	height int
}

// NewMockSource returns a source producing count placeholder photos.
func NewMockSource(count int) *MockSource {
	if count <= 0 {
		count = 8
	}
	return &MockSource{count: count, width: 1280, height: 720}
}

// List implements Source.
func (m *MockSource) List(context.Context) ([]Photo, error) {
	photos := make([]Photo, 0, m.count)
	for i := range m.count {
		key := fmt.Sprintf("mock-%02d.png", i)
		photos = append(photos, Photo{Key: key, URL: "mock://" + key})
	}
	return photos, nil
}

// Fetch implements Source by rendering a gradient whose hue is derived from
// the photo key, so consecutive placeholders are visually distinct.
func (m *MockSource) Fetch(_ context.Context, p Photo) ([]byte, error) {
	seed := 0
	for _, c := range p.Key {
		seed += int(c)
	}
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	base := uint8(seed * 37)
	for y := range m.height {
		for x := range m.width {
			img.Set(x, y, color.RGBA{
				R: base + uint8(x*255/m.width/3),
				G: uint8(100 + y*100/m.height),
				B: 255 - base,
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
