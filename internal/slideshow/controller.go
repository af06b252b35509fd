package slideshow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/geocode"
	"github.com/jamo/photoframe/internal/library"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/models"
	"github.com/jamo/photoframe/internal/voice"
)

// ErrNoCandidate means no displayable photo turned up within the allowed
// number of random draws.
var ErrNoCandidate = errors.New("no displayable photo found")

const (
	selectionAttempts  = 10
	filenameOverlayTTL = 3 * time.Second
	defaultVoiceAck    = 1500 * time.Millisecond
	captionSeparator   = " • "
)

// State of a slideshow session. Stopped is terminal.
type State int

const (
	Playing State = iota
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Options are the timing and selection settings of a session.
type Options struct {
	Interval time.Duration
	// VideoInterval replaces Interval for video slides. Zero disables it.
	VideoInterval    time.Duration
	PortraitPairing  bool
	HistorySize      int
	MaxRecent        int
	ShowCountdown    bool
	VoiceAckDuration time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Interval:         time.Duration(cfg.SlideshowInterval) * time.Second,
		PortraitPairing:  cfg.PortraitPairing,
		HistorySize:      cfg.PhotoHistoryCacheSize,
		MaxRecent:        cfg.MaxRecentPhotos,
		ShowCountdown:    cfg.ShowCountdownTimer,
		VoiceAckDuration: time.Duration(cfg.VoiceCommandDelayMS) * time.Millisecond,
	}
	if cfg.VideoPlaybackEnabled {
		opts.VideoInterval = time.Duration(cfg.VideoMaxDuration) * time.Second
	}
	return opts
}

// Locator resolves coordinates to place names. Peek must not block.
type Locator interface {
	Peek(lat, lon float64) (place string, found, cached bool)
	Lookup(ctx context.Context, lat, lon float64) (string, bool)
}

// Refresher replaces the collection when new photos arrived.
type Refresher interface {
	Refresh(current *library.Collection) (*library.Collection, bool, error)
}

// Clock schedules the advance and countdown timers.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Deps are the collaborators of a controller. Renderer is required.
type Deps struct {
	Renderer  Renderer
	Locator   Locator
	Refresher Refresher
	Clock     Clock
	Rand      library.Rand
	// Valid reports whether a drawn photo can be shown. The default
	// requires the file to exist.
	Valid  func(models.Photo) bool
	Logger *slog.Logger
}

// Status is a snapshot of the controller for callers outside the loop.
type Status struct {
	State        State
	Photos       int
	Cursor       int
	History      []Entry
	Current      []string
	Recent       []string
	ShowFilename bool
	Suspended    bool
}

// Controller runs a slideshow session. All state is owned by the goroutine
// inside Run; public methods post work to it and wait for the result.
type Controller struct {
	opts      Options
	renderer  Renderer
	locator   Locator
	refresher Refresher
	clock     Clock
	rng       library.Rand
	valid     func(models.Photo) bool
	logger    *slog.Logger

	events chan func()
	done   chan struct{}

	lookupCtx context.Context
	cancel    context.CancelFunc

	photos       *library.Collection
	history      *History
	state        State
	voiceHolds   int
	showFilename bool
	current      []models.Photo
	recent       []string
	interval     time.Duration
	advance      Timer
	countdown    Timer
	deadline     time.Time
	timerGen     uint64
	pending      map[string]bool
}

func New(photos *library.Collection, opts Options, deps Deps) (*Controller, error) {
	if deps.Renderer == nil {
		return nil, errors.New("slideshow: renderer is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Duration(config.Default().SlideshowInterval) * time.Second
	}
	if opts.VoiceAckDuration <= 0 {
		opts.VoiceAckDuration = defaultVoiceAck
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x736c696465))
	}
	if deps.Valid == nil {
		deps.Valid = fileExists
	}
	return &Controller{
		opts:      opts,
		renderer:  deps.Renderer,
		locator:   deps.Locator,
		refresher: deps.Refresher,
		clock:     deps.Clock,
		rng:       deps.Rand,
		valid:     deps.Valid,
		logger:    logging.NewComponentLogger(deps.Logger, "slideshow"),
		events:    make(chan func(), 16),
		done:      make(chan struct{}),
		photos:    photos,
		history:   NewHistory(opts.HistorySize),
		state:     Playing,
		interval:  opts.Interval,
		pending:   make(map[string]bool),
	}, nil
}

func fileExists(p models.Photo) bool {
	if p.Path == "" {
		return false
	}
	_, err := os.Stat(p.Path)
	return err == nil
}

// Run shows the first slide, starts the advance timer and processes events
// until the session stops or ctx ends.
func (c *Controller) Run(ctx context.Context) error {
	c.lookupCtx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("starting slideshow",
		"photos", c.photos.Len(),
		"interval", c.opts.Interval.String(),
		"portrait_pairing", c.opts.PortraitPairing)

	c.display()
	c.armTimer()

	for {
		select {
		case <-ctx.Done():
			c.stop()
			return ctx.Err()
		case <-c.done:
			return nil
		case fn := <-c.events:
			fn()
			if c.state == Stopped {
				return nil
			}
		}
	}
}

// Done is closed once the session has stopped.
func (c *Controller) Done() <-chan struct{} { return c.done }

func (c *Controller) post(fn func()) {
	select {
	case c.events <- fn:
	case <-c.done:
	}
}

// call runs fn on the loop and waits for it. It reports false when the
// session stopped before fn completed.
func (c *Controller) call(fn func()) bool {
	ack := make(chan struct{})
	select {
	case c.events <- func() { fn(); close(ack) }:
	case <-c.done:
		return false
	}
	select {
	case <-ack:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) Next()        { c.call(c.next) }
func (c *Controller) Previous()    { c.call(c.previous) }
func (c *Controller) Pause()       { c.call(c.pause) }
func (c *Controller) Resume()      { c.call(c.resume) }
func (c *Controller) TogglePause() { c.call(c.togglePause) }
func (c *Controller) Stop()        { c.call(c.stop) }

// ToggleFilename switches the filename overlay on or off.
func (c *Controller) ToggleFilename() { c.call(c.toggleFilename) }

func (c *Controller) Status() Status {
	var st Status
	if !c.call(func() { st = c.status() }) {
		return Status{State: Stopped}
	}
	return st
}

// SuspendForVoice holds the advance timer while a voice command is pending
// without changing the play state.
func (c *Controller) SuspendForVoice() bool {
	var wasPlaying bool
	c.call(func() {
		if c.state == Stopped {
			return
		}
		wasPlaying = c.state == Playing
		c.voiceHolds++
		c.stopTimer()
	})
	return wasPlaying
}

// ResumeAfterVoice releases one hold. The timer is re-armed once the last
// pending command has run and the slideshow is playing, either because it
// was before the command or because the command resumed it.
func (c *Controller) ResumeAfterVoice(wasPlaying bool) {
	c.call(func() {
		if c.voiceHolds > 0 {
			c.voiceHolds--
		}
		if c.voiceHolds > 0 {
			return
		}
		if c.state == Playing && c.advance == nil {
			c.logger.Debug("voice hold released", "was_playing", wasPlaying)
			c.armTimer()
		}
	})
}

func (c *Controller) AcknowledgeVoice(cmd voice.Command) {
	c.call(func() {
		if c.state == Stopped {
			return
		}
		c.renderer.ShowTransient(TransientVoice, strings.ToUpper(string(cmd)), c.opts.VoiceAckDuration)
	})
}

// ExecuteVoice applies a recognised command. Pause and resume are
// idempotent rather than toggles.
func (c *Controller) ExecuteVoice(cmd voice.Command) {
	c.call(func() {
		switch cmd {
		case voice.CommandNext:
			c.next()
		case voice.CommandBack:
			c.previous()
		case voice.CommandPause:
			c.pause()
		case voice.CommandResume:
			c.resume()
		default:
			c.logger.Warn("unknown voice command", "command", string(cmd))
		}
	})
}

func (c *Controller) status() Status {
	st := Status{
		State:        c.state,
		Photos:       c.photos.Len(),
		Cursor:       c.history.Cursor(),
		History:      c.history.Entries(),
		Recent:       append([]string(nil), c.recent...),
		ShowFilename: c.showFilename,
		Suspended:    c.voiceHolds > 0,
	}
	for _, p := range c.current {
		st.Current = append(st.Current, p.ID)
	}
	return st
}

func (c *Controller) next() {
	if c.state == Stopped {
		return
	}
	c.history.Forward()
	c.display()
	c.restartTimer()
}

func (c *Controller) previous() {
	if c.state == Stopped {
		return
	}
	if !c.history.Back() {
		c.logger.Debug("no earlier photo in history", "history", c.history.Len())
		return
	}
	c.display()
	c.restartTimer()
}

func (c *Controller) togglePause() {
	switch c.state {
	case Playing:
		c.pause()
	case Paused:
		c.resume()
	}
}

func (c *Controller) pause() {
	if c.state != Playing {
		return
	}
	c.state = Paused
	c.stopTimer()
	c.renderer.SetPaused(true)
	c.logger.Info("slideshow paused")
}

func (c *Controller) resume() {
	if c.state != Paused {
		return
	}
	c.state = Playing
	c.renderer.SetPaused(false)
	c.armTimer()
	c.logger.Info("slideshow resumed")
}

func (c *Controller) stop() {
	if c.state == Stopped {
		return
	}
	c.stopTimer()
	c.state = Stopped
	if c.cancel != nil {
		c.cancel()
	}
	if err := c.renderer.Close(); err != nil {
		c.logger.Warn("failed to close display", logging.Error(err))
	}
	close(c.done)
	c.logger.Info("slideshow stopped", "shown", c.history.Len())
}

func (c *Controller) toggleFilename() {
	if c.state == Stopped {
		return
	}
	c.showFilename = !c.showFilename
	if c.showFilename && len(c.current) > 0 {
		c.renderer.ShowTransient(TransientFilename, filenames(c.current), filenameOverlayTTL)
	}
}

// display shows the history entry under the cursor, or draws a new slide
// and records it when live.
func (c *Controller) display() {
	c.refresh()
	if c.photos.Len() == 0 {
		c.logger.Warn("no photos available for slideshow")
		return
	}

	if e, ok := c.history.Current(); ok {
		if photos, ok := c.resolve(e); ok {
			c.render(e, photos)
			return
		}
		c.logger.Warn("history entry no longer displayable", "entry", e.String())
	}

	e, photos, err := c.draw()
	if err != nil {
		c.logger.Warn("could not find a valid photo to display",
			"attempts", selectionAttempts, logging.Error(err))
		return
	}
	c.render(e, photos)
	if c.history.Live() {
		c.history.Append(e)
	}
}

// draw picks a new slide. The photos returned are the ones that passed the
// validity check, so the slide is rendered without checking them again.
func (c *Controller) draw() (Entry, []models.Photo, error) {
	for range selectionAttempts {
		i, ok := c.photos.RandomIndex(c.rng)
		if !ok {
			break
		}
		p, _ := c.photos.At(i)
		if !c.valid(p) {
			continue
		}
		if c.opts.PortraitPairing && p.Orientation() == models.Portrait && p.IsImage() {
			if j, partner, ok := c.partner(i); ok {
				return Pair(i, j), []models.Photo{p, partner}, nil
			}
		}
		return Single(i), []models.Photo{p}, nil
	}
	return Entry{}, nil, ErrNoCandidate
}

func (c *Controller) partner(first int) (int, models.Photo, bool) {
	for range selectionAttempts {
		j, ok := c.photos.RandomPortraitImageIndex(c.rng)
		if !ok {
			return 0, models.Photo{}, false
		}
		if j == first {
			continue
		}
		if p, _ := c.photos.At(j); p.IsImage() && c.valid(p) {
			return j, p, true
		}
	}
	return 0, models.Photo{}, false
}

func (c *Controller) resolve(e Entry) ([]models.Photo, bool) {
	var photos []models.Photo
	for _, i := range e.Indices() {
		p, ok := c.photos.At(i)
		if !ok || !c.valid(p) {
			return nil, false
		}
		photos = append(photos, p)
	}
	return photos, true
}

func (c *Controller) render(e Entry, photos []models.Photo) {
	if len(photos) == 0 {
		return
	}
	c.current = photos
	c.interval = c.opts.Interval
	if !e.IsPair() && !photos[0].IsImage() && c.opts.VideoInterval > 0 {
		c.interval = c.opts.VideoInterval
	}

	names := filenames(photos)
	slide := Slide{Photos: photos, Caption: c.caption(photos[0])}
	if err := c.renderer.Show(slide); err != nil {
		c.logger.Error("failed to display photo", "photo", names, logging.Error(err))
		c.renderer.ShowError(fmt.Sprintf("Cannot display %s, skipping", names))
	} else {
		c.logger.Info("displaying photo",
			"photo", names,
			"entry", e.String(),
			"of", c.photos.Len(),
			"replay", !c.history.Live())
	}

	c.remember(photos)
	if c.showFilename {
		c.renderer.ShowTransient(TransientFilename, names, filenameOverlayTTL)
	}
}

// remember feeds the recently-shown buffer. Selection does not read it.
func (c *Controller) remember(photos []models.Photo) {
	for _, p := range photos {
		c.recent = append(c.recent, p.ID)
	}
	if over := len(c.recent) - max(c.opts.MaxRecent, 0); over > 0 {
		c.recent = append([]string(nil), c.recent[over:]...)
	}
}

func (c *Controller) caption(p models.Photo) string {
	var parts []string
	if p.TakenAt != nil {
		parts = append(parts, p.TakenAt.Format(CaptionDateLayout))
	}
	if place := c.place(p); place != "" {
		parts = append(parts, place)
	}
	return strings.Join(parts, captionSeparator)
}

// place returns a cached place name. Uncached coordinates are looked up in
// the background and the caption is updated if the photo is still shown.
func (c *Controller) place(p models.Photo) string {
	if p.Location == nil || c.locator == nil {
		return p.Place
	}
	lat, lon := p.Location.Latitude, p.Location.Longitude
	place, found, cached := c.locator.Peek(lat, lon)
	if cached {
		if found {
			return place
		}
		return p.Place
	}

	key := geocode.Key(lat, lon)
	if c.pending[key] {
		return p.Place
	}
	c.pending[key] = true
	ctx := c.lookupCtx
	if ctx == nil {
		ctx = context.Background()
	}
	go func() {
		_, ok := c.locator.Lookup(ctx, lat, lon)
		c.post(func() {
			delete(c.pending, key)
			if !ok || c.state == Stopped || len(c.current) == 0 || c.current[0].ID != p.ID {
				return
			}
			c.renderer.SetCaption(c.caption(p))
		})
	}()
	return p.Place
}

func (c *Controller) refresh() {
	if c.refresher == nil {
		return
	}
	next, ok, err := c.refresher.Refresh(c.photos)
	if err != nil {
		c.logger.Warn("photo refresh failed", logging.Error(err))
		return
	}
	if !ok {
		return
	}
	old := c.photos
	c.history.Remap(func(i int) (int, bool) {
		p, ok := old.At(i)
		if !ok {
			return 0, false
		}
		return next.IndexOf(p.ID)
	})
	c.photos = next
	c.logger.Info("new photos loaded during slideshow",
		"photos", next.Len(), "history", c.history.Len())
}

func (c *Controller) restartTimer() {
	c.stopTimer()
	c.armTimer()
}

func (c *Controller) armTimer() {
	if c.state != Playing || c.voiceHolds > 0 {
		return
	}
	c.stopTimer()
	gen := c.timerGen
	c.deadline = c.clock.Now().Add(c.interval)
	c.advance = c.clock.AfterFunc(c.interval, func() {
		c.post(func() { c.tick(gen) })
	})
	if c.opts.ShowCountdown {
		c.updateCountdown(gen)
	}
}

func (c *Controller) stopTimer() {
	c.timerGen++
	if c.advance != nil {
		c.advance.Stop()
		c.advance = nil
	}
	if c.countdown != nil {
		c.countdown.Stop()
		c.countdown = nil
	}
	if c.opts.ShowCountdown && c.state != Stopped {
		c.renderer.SetCountdown(-1)
	}
}

func (c *Controller) tick(gen uint64) {
	if gen != c.timerGen || c.state != Playing || c.voiceHolds > 0 {
		return
	}
	c.advance = nil
	c.logger.Debug("auto-advancing", "interval", c.interval.String())
	c.history.Forward()
	c.display()
	c.armTimer()
}

func (c *Controller) updateCountdown(gen uint64) {
	if gen != c.timerGen || c.state != Playing || c.voiceHolds > 0 {
		return
	}
	remaining := int(math.Ceil(c.deadline.Sub(c.clock.Now()).Seconds()))
	if remaining < 0 {
		remaining = 0
	}
	c.renderer.SetCountdown(remaining)
	if remaining == 0 {
		return
	}
	c.countdown = c.clock.AfterFunc(time.Second, func() {
		c.post(func() { c.updateCountdown(gen) })
	})
}

func filenames(photos []models.Photo) string {
	names := make([]string, len(photos))
	for i, p := range photos {
		names[i] = p.DisplayName()
	}
	return strings.Join(names, ", ")
}
