package slideshow

import "strings"

// Key is a keyboard command understood by the slideshow.
type Key string

const (
	KeyEscape Key = "escape"
	KeySpace  Key = "space"
	KeyLeft   Key = "left"
	KeyRight  Key = "right"
	KeyShift  Key = "shift"
)

// ParseKey maps browser and toolkit key names onto slideshow keys.
func ParseKey(name string) (Key, bool) {
	switch strings.ToLower(name) {
	case "escape", "esc":
		return KeyEscape, true
	case " ", "space", "spacebar":
		return KeySpace, true
	case "arrowleft", "left":
		return KeyLeft, true
	case "arrowright", "right":
		return KeyRight, true
	case "shift", "shift_l", "shift_r", "shiftleft", "shiftright":
		return KeyShift, true
	}
	return "", false
}

// Click is a mouse gesture on the slide.
type Click int

const (
	SingleClick Click = iota + 1
	DoubleClick
)

// HandleKey applies a key press: Escape stops, Space toggles pause, the
// arrows navigate and Shift toggles the filename overlay.
func (c *Controller) HandleKey(k Key) {
	c.call(func() {
		switch k {
		case KeyEscape:
			c.stop()
		case KeySpace:
			c.togglePause()
		case KeyLeft:
			c.previous()
		case KeyRight:
			c.next()
		case KeyShift:
			c.toggleFilename()
		}
	})
}

// HandleClick goes back on a single click and forward on a double click.
func (c *Controller) HandleClick(click Click) {
	c.call(func() {
		switch click {
		case SingleClick:
			c.previous()
		case DoubleClick:
			c.next()
		}
	})
}
