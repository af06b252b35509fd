package slideshow

import (
	"time"

	"github.com/jamo/photoframe/internal/models"
)

// CaptionDateLayout formats capture dates in the overlay.
const CaptionDateLayout = "January 02, 2006"

// Slide is what the renderer draws: one photo, or two portraits side by
// side. Caption is the date and location line; it may be updated later
// through SetCaption once a location resolves.
type Slide struct {
	Photos  []models.Photo
	Caption string
}

// Transient overlay kinds.
type TransientKind string

const (
	TransientFilename TransientKind = "filename"
	TransientVoice    TransientKind = "voice"
)

// Renderer draws slides and overlays. Orientation correction, scaling and
// overlay placement are the renderer's concern.
type Renderer interface {
	// Show replaces the screen with s. An error means the slide could not
	// be drawn.
	Show(s Slide) error
	// ShowError replaces the screen with a placeholder message.
	ShowError(message string)
	SetCaption(text string)
	// ShowTransient draws an overlay that removes itself after ttl.
	ShowTransient(kind TransientKind, text string, ttl time.Duration)
	SetPaused(paused bool)
	// SetCountdown shows the seconds until the next advance; negative
	// values hide it.
	SetCountdown(seconds int)
	Close() error
}
