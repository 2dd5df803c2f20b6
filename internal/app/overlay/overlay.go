// Package overlay formats metadata records into the text lines shown over
// the current photo.
package overlay

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"s3-photo-frame/internal/exifdata"
	"s3-photo-frame/internal/settings"
)

// Lines renders the overlay for one record, honoring the configured field
// toggles. A nil record or disabled overlay yields no lines.
func Lines(rec *exifdata.Record, conf settings.ExifDisplay) []string {
	if rec == nil || !conf.Enabled {
		return nil
	}
	var lines []string
	if conf.ShowDate {
		if s := DateLine(rec); s != "" {
			lines = append(lines, s)
		}
	}
	if conf.ShowLocation {
		if s := LocationLine(rec); s != "" {
			lines = append(lines, s)
		}
	}
	if conf.ShowCamera {
		if s := CameraLine(rec); s != "" {
			lines = append(lines, s)
		}
	}
	if conf.ShowExposure {
		if s := ExposureLine(rec); s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// DateLine formats the capture time based on how long ago it was: recent
// photos read naturally ("Monday 3:04 PM", "2 weeks ago"), older ones get
// the full date.
func DateLine(rec *exifdata.Record) string {
	if rec.Taken == nil {
		return ""
	}
	t := *rec.Taken
	elapsed := time.Since(t)
	switch {
	case elapsed < 1*humanize.Week:
		return t.Format("Monday 3:04 PM")
	case elapsed < 3*humanize.Month:
		return humanize.Time(t)
	default:
		return t.Format("January 2, 2006")
	}
}

// LocationLine prefers the resolved place name and falls back to formatted
// coordinates while geocoding is pending or failed.
func LocationLine(rec *exifdata.Record) string {
	if rec.Place != nil {
		return *rec.Place
	}
	if rec.Latitude == nil || rec.Longitude == nil {
		return ""
	}
	return FormatCoordinates(*rec.Latitude, *rec.Longitude)
}

// FormatCoordinates renders decimal degrees with hemisphere suffixes.
func FormatCoordinates(lat, long float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
		lat = math.Abs(lat)
	}
	longDir := "E"
	if long < 0 {
		longDir = "W"
		long = math.Abs(long)
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", lat, latDir, long, longDir)
}

// CameraLine joins make, model, and lens. The make is dropped when the model
// already contains it (e.g. "Canon EOS R5").
func CameraLine(rec *exifdata.Record) string {
	var parts []string
	if rec.Model != nil {
		model := *rec.Model
		if rec.Make != nil && !strings.Contains(strings.ToLower(model), strings.ToLower(*rec.Make)) {
			model = *rec.Make + " " + model
		}
		parts = append(parts, model)
	} else if rec.Make != nil {
		parts = append(parts, *rec.Make)
	}
	if rec.Lens != nil {
		parts = append(parts, *rec.Lens)
	}
	return strings.Join(parts, " · ")
}

// ExposureLine joins the exposure triple and focal length.
func ExposureLine(rec *exifdata.Record) string {
	var parts []string
	if rec.FocalLength != nil {
		parts = append(parts, *rec.FocalLength)
	}
	if rec.Aperture != nil {
		parts = append(parts, *rec.Aperture)
	}
	if rec.ShutterSpeed != nil {
		parts = append(parts, *rec.ShutterSpeed)
	}
	if rec.ISO != nil {
		parts = append(parts, fmt.Sprintf("ISO %d", *rec.ISO))
	}
	return strings.Join(parts, "  ")
}
