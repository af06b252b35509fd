package models

import (
	"path/filepath"
	"time"
)

// Orientation of a photo derived from its pixel dimensions
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// OrientationOf returns Portrait iff height > width
func OrientationOf(width, height int) Orientation {
	if height > width {
		return Portrait
	}
	return Landscape
}

// MediaKind distinguishes stills from moving media
type MediaKind string

const (
	KindImage     MediaKind = "image"
	KindVideo     MediaKind = "video"
	KindLivePhoto MediaKind = "live_photo"
)

// Location is a GPS coordinate pair
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Photo is a single displayable record from the photo library.
// Records are created when the library is loaded and never mutated.
type Photo struct {
	ID              string     `json:"id"`
	Path            string     `json:"path"`
	Filename        string     `json:"filename"`
	Width           int        `json:"width"`
	Height          int        `json:"height"`
	TakenAt         *time.Time `json:"taken_at,omitempty"`
	Location        *Location  `json:"location,omitempty"`
	Kind            MediaKind  `json:"kind"`
	ExifOrientation int        `json:"exif_orientation"`
	Place           string     `json:"place"`
	Persons         []string   `json:"persons"`
	Keywords        []string   `json:"keywords"`
	Hidden          bool       `json:"hidden"`
}

// Orientation derives the display orientation from the stored dimensions
func (p Photo) Orientation() Orientation {
	return OrientationOf(p.Width, p.Height)
}

// IsImage reports whether the photo is a still image
func (p Photo) IsImage() bool {
	return p.Kind == KindImage || p.Kind == ""
}

// DisplayName returns the filename, falling back to the path base
func (p Photo) DisplayName() string {
	if p.Filename != "" {
		return p.Filename
	}
	return filepath.Base(p.Path)
}

// Album is a named group of photos in the library
type Album struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Smart      bool   `json:"smart"`
	PhotoCount int    `json:"photo_count"`
}

// Asset represents a photo or video from Immich
type Asset struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalPath     string    `json:"original_path"`
	OriginalFileName string    `json:"original_file_name"`
	FileCreatedAt    time.Time `json:"file_created_at"`
	LocalDateTime    time.Time `json:"local_date_time"`
	IsArchived       bool      `json:"is_archived"`
	LivePhotoVideoID string    `json:"live_photo_video_id"`

	// EXIF data
	ExifImageWidth  int      `json:"exif_image_width"`
	ExifImageHeight int      `json:"exif_image_height"`
	Orientation     string   `json:"orientation"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	City            string   `json:"city"`
	State           string   `json:"state"`
	Country         string   `json:"country"`

	People []string `json:"people"`
	Tags   []string `json:"tags"`
}
