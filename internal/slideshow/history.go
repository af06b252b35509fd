package slideshow

import "fmt"

// DefaultHistorySize is used when the configured capacity is not positive.
const DefaultHistorySize = 100

// Entry is one shown slide: a single photo or a side-by-side portrait pair,
// recorded as indices into the collection that was current when it was
// shown.
type Entry struct {
	first, second int
	pair          bool
}

// Single records a slide of one photo.
func Single(i int) Entry { return Entry{first: i} }

// Pair records two photos shown side by side.
func Pair(i, j int) Entry { return Entry{first: i, second: j, pair: true} }

func (e Entry) IsPair() bool { return e.pair }

// Indices returns the collection indices in display order.
func (e Entry) Indices() []int {
	if e.pair {
		return []int{e.first, e.second}
	}
	return []int{e.first}
}

func (e Entry) String() string {
	if e.pair {
		return fmt.Sprintf("Pair(%d, %d)", e.first, e.second)
	}
	return fmt.Sprintf("Single(%d)", e.first)
}

// History is a bounded back/forward stack of shown slides. The cursor is -1
// while showing freshly drawn slides and an entry index while replaying.
type History struct {
	entries  []Entry
	cursor   int
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{cursor: -1, capacity: capacity}
}

func (h *History) Len() int    { return len(h.entries) }
func (h *History) Cursor() int { return h.cursor }

// Live reports whether the next slide should be freshly drawn.
func (h *History) Live() bool {
	return h.cursor < 0 || h.cursor >= len(h.entries)
}

// Entries returns a copy of the recorded slides, oldest first.
func (h *History) Entries() []Entry {
	return append([]Entry(nil), h.entries...)
}

// Current returns the entry under the cursor while replaying.
func (h *History) Current() (Entry, bool) {
	if h.Live() {
		return Entry{}, false
	}
	return h.entries[h.cursor], true
}

// Append records a newly drawn slide. Entries after an interior cursor are
// discarded first, the oldest entries are dropped beyond capacity, and the
// cursor returns to live.
func (h *History) Append(e Entry) {
	if h.cursor >= 0 && h.cursor < len(h.entries)-1 {
		h.entries = h.entries[:h.cursor+1]
	}
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.capacity; over > 0 {
		h.entries = append([]Entry(nil), h.entries[over:]...)
	}
	h.cursor = -1
}

// Forward moves toward the newest entry. It reports true when there is an
// entry to replay; false means the cursor is live and a new slide is due.
func (h *History) Forward() bool {
	if h.cursor >= 0 && h.cursor < len(h.entries)-1 {
		h.cursor++
		return true
	}
	h.cursor = -1
	return false
}

// Back moves toward the oldest entry. From live it steps over the slide on
// screen, which needs at least two entries. At the oldest entry it does
// nothing and reports false.
func (h *History) Back() bool {
	switch {
	case h.cursor < 0:
		if len(h.entries) < 2 {
			return false
		}
		h.cursor = len(h.entries) - 2
	case h.cursor > 0:
		h.cursor--
	default:
		return false
	}
	return true
}

// Remap rewrites every index through fn after the collection was replaced.
// Entries with an index fn rejects are dropped. The cursor stays on its
// entry, or on the nearest older survivor, or goes live when none is left.
func (h *History) Remap(fn func(int) (int, bool)) {
	kept := h.entries[:0:0]
	cursor := -1
	for i, e := range h.entries {
		first, ok := fn(e.first)
		if !ok {
			continue
		}
		if e.pair {
			second, ok := fn(e.second)
			if !ok {
				continue
			}
			e = Pair(first, second)
		} else {
			e = Single(first)
		}
		kept = append(kept, e)
		if h.cursor >= 0 && i <= h.cursor {
			cursor = len(kept) - 1
		}
	}
	h.entries = kept
	h.cursor = cursor
}
