// Package exifdata derives structured metadata records from photo bytes and
// optionally resolves GPS coordinates to a place name.
package exifdata

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"s3-photo-frame/internal/source"
)

// Record is the per-photo metadata shown in the overlay. Every field is
// nullable; absence is a first-class value, not an error.
type Record struct {
	// Capture time.
	Taken *time.Time

	// GPS, normalized to decimal degrees.
	Latitude  *float64
	Longitude *float64
	Altitude  *float64

	// Place resolves asynchronously via reverse geocoding and may stay
	// nil while the coordinates are populated.
	Place *string

	// Camera.
	Make  *string
	Model *string
	Lens  *string

	// Exposure.
	Aperture     *string
	ShutterSpeed *string
	ISO          *int
	FocalLength  *string

	// Image.
	Width       *int
	Height      *int
	Orientation int
}

// fetcher is the slice of source.Source the extractor needs.
type fetcher interface {
	Fetch(ctx context.Context, p source.Photo) ([]byte, error)
}

// Extractor fetches photo bytes and parses their EXIF tags into a Record.
type Extractor struct {
	src fetcher
	geo *Geocoder
}

// NewExtractor builds an Extractor. geo may be nil to disable reverse
// geocoding.
func NewExtractor(src fetcher, geo *Geocoder) *Extractor {
	return &Extractor{src: src, geo: geo}
}

// Extract returns the metadata record for one photo, or nil on any failure.
// Extraction failure is non-fatal and must never interrupt playback, so no
// error is returned.
func (e *Extractor) Extract(ctx context.Context, p source.Photo) *Record {
	log := slog.With("key", p.Key, "url", p.URL)
	data, err := e.src.Fetch(ctx, p)
	if err != nil {
		log.Debug("failed to fetch photo for metadata", "error", err)
		return nil
	}
	rec := Parse(data)
	if rec == nil {
		log.Debug("no parseable metadata")
		return nil
	}
	if e.geo != nil && rec.Latitude != nil && rec.Longitude != nil {
		place, err := e.geo.Reverse(ctx, *rec.Latitude, *rec.Longitude)
		if err != nil {
			// Partial-result policy: coordinates stay populated.
			log.Debug("reverse geocoding failed", "error", err)
		} else if place != "" {
			rec.Place = &place
		}
	}
	return rec
}

// Parse decodes EXIF tags from raw image bytes. It returns nil when the
// bytes carry no EXIF segment at all.
func Parse(data []byte) *Record {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	rec := &Record{Orientation: 1}

	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil && v != "" {
			rec.Make = &v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil && v != "" {
			rec.Model = &v
		}
	}
	if tag, err := x.Get(exif.LensModel); err == nil {
		if v, err := tag.StringVal(); err == nil && v != "" {
			rec.Lens = &v
		}
	}

	if tag, err := x.Get(exif.FNumber); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			v := fmt.Sprintf("f/%.1f", ratFloat(rat.Num().Int64(), rat.Denom().Int64()))
			rec.Aperture = &v
		}
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			v := FormatShutter(rat.Num().Int64(), rat.Denom().Int64())
			rec.ShutterSpeed = &v
		}
	}
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			rec.ISO = &v
		}
	}

	// Prefer native focal length, fall back to the 35mm equivalent.
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			v := fmt.Sprintf("%.0fmm", ratFloat(rat.Num().Int64(), rat.Denom().Int64()))
			rec.FocalLength = &v
		}
	}
	if rec.FocalLength == nil {
		if tag, err := x.Get(exif.FocalLengthIn35mmFilm); err == nil {
			if v, err := tag.Int(0); err == nil && v > 0 {
				s := fmt.Sprintf("%dmm (35mm eq.)", v)
				rec.FocalLength = &s
			}
		}
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
			rec.Orientation = v
		}
	}

	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			rec.Width = &v
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := tag.Int(0); err == nil {
			rec.Height = &v
		}
	}

	if tm, err := x.DateTime(); err == nil {
		rec.Taken = &tm
	}

	if lat, long, err := x.LatLong(); err == nil {
		rec.Latitude = &lat
		rec.Longitude = &long
	}
	if tag, err := x.Get(exif.GPSAltitude); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			alt := ratFloat(rat.Num().Int64(), rat.Denom().Int64())
			if refTag, err := x.Get(exif.GPSAltitudeRef); err == nil {
				if ref, err := refTag.Int(0); err == nil && ref == 1 {
					alt = -alt
				}
			}
			rec.Altitude = &alt
		}
	}

	return rec
}

// FormatShutter renders an exposure time, as a fraction when faster than one
// second.
func FormatShutter(num, denom int64) string {
	if denom == 0 {
		return ""
	}
	if denom == 1 {
		return fmt.Sprintf("%ds", num)
	}
	if num == 1 {
		return fmt.Sprintf("1/%ds", denom)
	}
	if num > denom {
		return fmt.Sprintf("%.1fs", ratFloat(num, denom))
	}
	return fmt.Sprintf("%d/%ds", num, denom)
}

func ratFloat(num, denom int64) float64 {
	if denom == 0 {
		return 0
	}
	return float64(num) / float64(denom)
}
