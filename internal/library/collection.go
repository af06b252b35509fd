package library

import "github.com/jamo/photoframe/internal/models"

// Rand is the random source used for selection. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Collection is an immutable, ordered set of photos. A refresh replaces the
// whole collection rather than editing it.
type Collection struct {
	photos    []models.Photo
	byID      map[string]int
	portraits []int
}

func NewCollection(photos []models.Photo) *Collection {
	c := &Collection{
		photos: append([]models.Photo(nil), photos...),
		byID:   make(map[string]int, len(photos)),
	}
	for i, p := range c.photos {
		if _, dup := c.byID[p.ID]; !dup {
			c.byID[p.ID] = i
		}
		if p.Orientation() == models.Portrait && p.IsImage() {
			c.portraits = append(c.portraits, i)
		}
	}
	return c
}

func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.photos)
}

// At returns the photo at index i.
func (c *Collection) At(i int) (models.Photo, bool) {
	if c == nil || i < 0 || i >= len(c.photos) {
		return models.Photo{}, false
	}
	return c.photos[i], true
}

// IndexOf finds a photo by ID.
func (c *Collection) IndexOf(id string) (int, bool) {
	if c == nil {
		return 0, false
	}
	i, ok := c.byID[id]
	return i, ok
}

// Photos returns a copy of the records.
func (c *Collection) Photos() []models.Photo {
	if c == nil {
		return nil
	}
	return append([]models.Photo(nil), c.photos...)
}

// RandomIndex draws a uniformly random index. ok is false when empty.
func (c *Collection) RandomIndex(r Rand) (int, bool) {
	if c.Len() == 0 {
		return 0, false
	}
	return r.IntN(len(c.photos)), true
}

// RandomPortraitImageIndex draws uniformly among portrait still images.
func (c *Collection) RandomPortraitImageIndex(r Rand) (int, bool) {
	if c == nil || len(c.portraits) == 0 {
		return 0, false
	}
	return c.portraits[r.IntN(len(c.portraits))], true
}

// PortraitImageCount returns how many photos are eligible for pairing.
func (c *Collection) PortraitImageCount() int {
	if c == nil {
		return 0
	}
	return len(c.portraits)
}
