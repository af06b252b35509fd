package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jamo/photoframe/internal/config"
	"github.com/jamo/photoframe/internal/logging"
	"github.com/jamo/photoframe/internal/slideshow"
	"github.com/jamo/photoframe/internal/voice"
)

//go:embed templates/*
var templatesFS embed.FS

const (
	defaultWidth  = 1920
	defaultHeight = 1080
	keptImages    = 8
	errorDetail   = "Skipping to next photo"
)

// Input receives keyboard and mouse events from the display page.
type Input interface {
	HandleKey(k slideshow.Key)
	HandleClick(c slideshow.Click)
}

// Options control how the page lays out slides.
type Options struct {
	// Width and Height fix the display size. Zero means the size the page
	// reports when it connects.
	Width, Height int
	Placement     string
	Alignment     string
	Transition    string
	Voice         bool
	DebugScaling  bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Placement:    strings.ToUpper(cfg.OverlayPlacement),
		Alignment:    strings.ToUpper(cfg.OverlayAlignment),
		Transition:   strings.ToLower(cfg.TransitionEffect),
		Voice:        cfg.VoiceCommandsEnabled,
		DebugScaling: cfg.DebugScaling,
	}
	if w, h, ok := cfg.Resolution(); ok {
		opts.Width, opts.Height = w, h
	}
	return opts
}

type preparedImage struct {
	data []byte
}

// Server is the fullscreen display. It serves the page, pushes slides to it
// over a WebSocket and passes the page's input back to the slideshow.
type Server struct {
	opts      Options
	logger    *slog.Logger
	templates *template.Template
	mux       *http.ServeMux
	hub       *hub
	upgrader  websocket.Upgrader
	cancel    context.CancelFunc

	utterances chan voice.Utterance
	closeOnce  sync.Once
	closed     chan struct{}

	mu     sync.Mutex
	input  Input
	width  int
	height int
	images map[string]preparedImage
	order  []string
	media  map[string]string
}

func NewServer(opts Options, logger *slog.Logger) (*Server, error) {
	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		opts:       opts,
		logger:     logging.NewComponentLogger(logger, "display"),
		templates:  templates,
		mux:        http.NewServeMux(),
		utterances: make(chan voice.Utterance, 8),
		closed:     make(chan struct{}),
		width:      opts.Width,
		height:     opts.Height,
		images:     make(map[string]preparedImage),
		media:      make(map[string]string),
	}
	s.hub = newHub(logger, s.handleMessage)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.run(ctx)

	s.mux.HandleFunc("GET /{$}", s.handleDisplay)
	s.mux.HandleFunc("GET /ws", s.handleWS)
	s.mux.HandleFunc("GET /images/{id}", s.handleImage)
	s.mux.HandleFunc("GET /media/{id}", s.handleMedia)

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Attach routes page input to in.
func (s *Server) Attach(in Input) {
	s.mu.Lock()
	s.input = in
	s.mu.Unlock()
}

// Utterances carries transcripts from the page's speech recognition.
func (s *Server) Utterances() <-chan voice.Utterance { return s.utterances }

// Closed is closed when the display has shut down.
func (s *Server) Closed() <-chan struct{} { return s.closed }

func (s *Server) resolution() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width <= 0 || s.height <= 0 {
		return defaultWidth, defaultHeight
	}
	return s.width, s.height
}

// Show prepares the slide's images and sends the slide to every page.
func (s *Server) Show(slide slideshow.Slide) error {
	if len(slide.Photos) == 0 {
		return errors.New("empty slide")
	}

	first := slide.Photos[0]
	if len(slide.Photos) == 1 && !first.IsImage() {
		if _, err := os.Stat(first.Path); err != nil {
			return fmt.Errorf("open %s: %w", first.DisplayName(), err)
		}
		id := s.storeMedia(first.Path)
		s.hub.publish(Message{Type: MsgSlide, Video: "/media/" + id, Caption: slide.Caption})
		return nil
	}

	width, height := s.resolution()
	slotWidth := width / len(slide.Photos)
	refs := make([]ImageRef, 0, len(slide.Photos))
	for _, p := range slide.Photos {
		start := time.Now()
		data, size, err := prepareImage(p.Path, p.ExifOrientation, slotWidth, height)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", p.DisplayName(), err)
		}
		if s.opts.DebugScaling {
			s.logger.Debug("scaled image",
				"photo", p.DisplayName(),
				"source", fmt.Sprintf("%dx%d", p.Width, p.Height),
				"scaled", fmt.Sprintf("%dx%d", size.X, size.Y),
				"slot", fmt.Sprintf("%dx%d", slotWidth, height),
				"elapsed", time.Since(start).String())
		}
		id := s.storeImage(data)
		refs = append(refs, ImageRef{URL: "/images/" + id, Width: size.X, Height: size.Y})
	}

	s.hub.publish(Message{Type: MsgSlide, Images: refs, Caption: slide.Caption})
	return nil
}

func (s *Server) storeImage(data []byte) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id] = preparedImage{data: data}
	s.order = append(s.order, id)
	for len(s.order) > keptImages {
		delete(s.images, s.order[0])
		s.order = s.order[1:]
	}
	return id
}

func (s *Server) storeMedia(path string) string {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.media = map[string]string{id: path}
	return id
}

func (s *Server) ShowError(message string) {
	s.hub.publish(Message{Type: MsgError, Text: message, Detail: errorDetail})
}

func (s *Server) SetCaption(text string) {
	s.hub.publish(Message{Type: MsgCaption, Caption: text})
}

func (s *Server) ShowTransient(kind slideshow.TransientKind, text string, ttl time.Duration) {
	s.hub.publish(Message{Type: MsgTransient, Kind: string(kind), Text: text, TTLMS: ttl.Milliseconds()})
}

func (s *Server) SetPaused(paused bool) {
	s.hub.publish(Message{Type: MsgPaused, Paused: paused})
}

func (s *Server) SetCountdown(seconds int) {
	s.hub.publish(Message{Type: MsgCountdown, Seconds: seconds})
}

// Close tells pages the slideshow ended and disconnects them.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.hub.publish(Message{Type: MsgClose})
		s.cancel()
		close(s.closed)
	})
	return nil
}

func (s *Server) handleMessage(c *client, msg Message) {
	s.mu.Lock()
	in := s.input
	s.mu.Unlock()

	switch msg.Type {
	case MsgHello:
		if s.opts.Width == 0 && msg.Width > 0 && msg.Height > 0 {
			s.mu.Lock()
			s.width, s.height = msg.Width, msg.Height
			s.mu.Unlock()
		}
		s.logger.Info("display ready", "client", c.id, "width", msg.Width, "height", msg.Height)

	case MsgKey:
		key, ok := slideshow.ParseKey(msg.Key)
		if !ok || in == nil {
			return
		}
		in.HandleKey(key)

	case MsgClick:
		if in == nil {
			return
		}
		if msg.Clicks >= 2 {
			in.HandleClick(slideshow.DoubleClick)
		} else {
			in.HandleClick(slideshow.SingleClick)
		}

	case MsgTranscript:
		if !s.opts.Voice {
			return
		}
		select {
		case s.utterances <- voice.Utterance{Transcript: msg.Text}:
		case <-s.closed:
		default:
			s.logger.Warn("voice queue full, dropping transcript", "text", msg.Text)
		}

	default:
		s.logger.Debug("ignoring display message", "type", msg.Type)
	}
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Placement  string
		Alignment  string
		Transition string
		Voice      bool
	}{
		Placement:  s.opts.Placement,
		Alignment:  s.opts.Alignment,
		Transition: s.opts.Transition,
		Voice:      s.opts.Voice,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "display.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", logging.Error(err))
		return
	}
	c := newClient(s.hub, conn)
	if !s.hub.join(c) {
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	img, ok := s.images[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img.data)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	path, ok := s.media[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
