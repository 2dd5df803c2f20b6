// Package settings persists, validates, and migrates the user-editable
// slideshow configuration.
package settings

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CurrentVersion tags freshly saved configuration blobs. Older versions are
// migrated on load.
const CurrentVersion = 2

// Effect selects the visual treatment of a transition. The effect never
// changes transition timing, only the rendering.
type Effect string

const (
	EffectFade  Effect = "fade"
	EffectSlide Effect = "slide"
	EffectZoom  Effect = "zoom"
)

// Position places the metadata overlay on screen.
type Position string

const (
	PositionTopLeft     Position = "top-left"
	PositionTopRight    Position = "top-right"
	PositionBottomLeft  Position = "bottom-left"
	PositionBottomRight Position = "bottom-right"
)

// Style selects the overlay rendering style.
type Style string

const (
	StylePlain Style = "plain"
	StyleBadge Style = "badge"
)

// ExifDisplay is the nested overlay policy.
type ExifDisplay struct {
	Enabled      bool     `json:"enabled"`
	ShowDate     bool     `json:"showDate"`
	ShowLocation bool     `json:"showLocation"`
	ShowCamera   bool     `json:"showCamera"`
	ShowExposure bool     `json:"showExposure"`
	Position     Position `json:"position" validate:"omitempty,oneof=top-left top-right bottom-left bottom-right"`
	Style        Style    `json:"style" validate:"omitempty,oneof=plain badge"`
	// AutoHideSeconds hides the overlay after this many seconds on each
	// photo; 0 keeps it up for the full display interval.
	AutoHideSeconds int `json:"autoHideSeconds" validate:"min=0,max=300"`
}

// Data is the user-editable portion of the configuration.
type Data struct {
	S3Bucket string `json:"s3Bucket"`
	S3Region string `json:"s3Region"`
	S3Prefix string `json:"s3Prefix"`

	DisplayDuration  int    `json:"displayDuration" validate:"min=1,max=300"`
	TransitionEffect Effect `json:"transitionEffect" validate:"oneof=fade slide zoom"`
	ShuffleMode      bool   `json:"shuffleMode"`

	ExifDisplay ExifDisplay `json:"exifDisplay"`
}

// Configuration is the versioned persisted blob.
type Configuration struct {
	Version int       `json:"version"`
	Data    Data      `json:"data"`
	SavedAt time.Time `json:"savedAt"`
}

var validate = validator.New()

// Default returns the configuration used when nothing has been saved yet.
// The empty bucket selects the mock photo source.
func Default() *Configuration {
	return &Configuration{
		Version: CurrentVersion,
		Data: Data{
			DisplayDuration:  10,
			TransitionEffect: EffectFade,
			ExifDisplay: ExifDisplay{
				Enabled:      true,
				ShowDate:     true,
				ShowLocation: true,
				ShowCamera:   true,
				ShowExposure: true,
				Position:     PositionBottomLeft,
				Style:        StyleBadge,
			},
		},
	}
}

// Validate reports whether the configuration may be persisted. A persisted
// configuration always names a real source; the empty-bucket placeholder
// mode exists only as the unsaved default.
func Validate(conf *Configuration) error {
	if conf == nil {
		return fmt.Errorf("missing configuration")
	}
	d := &conf.Data
	if d.S3Bucket == "" {
		return fmt.Errorf("source bucket is required")
	}
	if d.S3Region == "" {
		return fmt.Errorf("source region is required")
	}
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// decode parses a stored blob, migrating older versions. It never fails on a
// version mismatch; the worst case is a best-effort prior data shape filled
// out with defaults.
func decode(raw []byte) (*Configuration, error) {
	var probe struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("unreadable configuration blob: %w", err)
	}
	if probe.Version < CurrentVersion {
		return migrate(probe.Version, raw), nil
	}
	var conf Configuration
	if err := json.Unmarshal(raw, &conf); err != nil {
		return nil, fmt.Errorf("unreadable configuration blob: %w", err)
	}
	return &conf, nil
}

// migrate upgrades an older blob to the current shape. It is total: any
// unreadable field keeps its default.
func migrate(version int, raw []byte) *Configuration {
	conf := Default()
	switch version {
	case 0, 1:
		// v1 stored a flat data object with "displayDurationSeconds"
		// and a bare "showExif" toggle instead of the nested policy.
		var v1 struct {
			Data struct {
				S3Bucket               string `json:"s3Bucket"`
				S3Region               string `json:"s3Region"`
				S3Prefix               string `json:"s3Prefix"`
				DisplayDurationSeconds int    `json:"displayDurationSeconds"`
				TransitionEffect       string `json:"transitionEffect"`
				ShuffleMode            bool   `json:"shuffleMode"`
				ShowExif               *bool  `json:"showExif"`
			} `json:"data"`
			SavedAt time.Time `json:"savedAt"`
		}
		if err := json.Unmarshal(raw, &v1); err != nil {
			return conf
		}
		conf.Data.S3Bucket = v1.Data.S3Bucket
		conf.Data.S3Region = v1.Data.S3Region
		conf.Data.S3Prefix = v1.Data.S3Prefix
		conf.Data.ShuffleMode = v1.Data.ShuffleMode
		if v1.Data.DisplayDurationSeconds >= 1 && v1.Data.DisplayDurationSeconds <= 300 {
			conf.Data.DisplayDuration = v1.Data.DisplayDurationSeconds
		}
		switch Effect(v1.Data.TransitionEffect) {
		case EffectFade, EffectSlide, EffectZoom:
			conf.Data.TransitionEffect = Effect(v1.Data.TransitionEffect)
		}
		if v1.Data.ShowExif != nil {
			conf.Data.ExifDisplay.Enabled = *v1.Data.ShowExif
		}
		conf.SavedAt = v1.SavedAt
	}
	return conf
}
