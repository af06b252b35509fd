package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jamo/photoframe/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Message is the envelope exchanged with display pages.
type Message struct {
	Type string `json:"type"`

	// display -> page
	Images  []ImageRef `json:"images,omitempty"`
	Video   string     `json:"video,omitempty"`
	Caption string     `json:"caption,omitempty"`
	Text    string     `json:"text,omitempty"`
	Detail  string     `json:"detail,omitempty"`
	Kind    string     `json:"kind,omitempty"`
	TTLMS   int64      `json:"ttl_ms,omitempty"`
	Paused  bool       `json:"paused,omitempty"`
	Seconds int        `json:"seconds,omitempty"`

	// page -> display
	Key    string `json:"key,omitempty"`
	Clicks int    `json:"clicks,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// ImageRef points the page at a prepared image.
type ImageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Message types
const (
	MsgSlide     = "slide"
	MsgError     = "error"
	MsgCaption   = "caption"
	MsgTransient = "transient"
	MsgPaused    = "paused"
	MsgCountdown = "countdown"
	MsgClose     = "close"

	MsgHello      = "hello"
	MsgKey        = "key"
	MsgClick      = "click"
	MsgTranscript = "transcript"
)

// client is one connected display page.
type client struct {
	id   string
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

// hub fans display messages out to every connected page and replays the
// latest state to pages that connect later.
type hub struct {
	logger    *slog.Logger
	onMessage func(*client, Message)

	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.Mutex
	clients map[*client]bool
	state   map[string][]byte
}

func newHub(logger *slog.Logger, onMessage func(*client, Message)) *hub {
	return &hub{
		logger:     logging.NewComponentLogger(logger, "display-hub"),
		onMessage:  onMessage,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
		state:      make(map[string][]byte),
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for pending := len(h.broadcast); pending > 0; pending-- {
				msg := <-h.broadcast
				for c := range h.clients {
					select {
					case c.send <- msg:
					default:
					}
				}
			}
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			for _, key := range replayOrder {
				if msg, ok := h.state[key]; ok {
					c.send <- msg
				}
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("display connected", "client", c.id, "clients", count)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("display disconnected", "client", c.id)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("display too slow, dropping", "client", c.id)
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// replayOrder lists the state kept for late joiners, in the order it is
// sent to them.
var replayOrder = []string{MsgSlide, MsgCaption, MsgPaused, MsgCountdown}

// publish broadcasts msg and, for stateful types, remembers it.
func (h *hub) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode display message", "type", msg.Type, logging.Error(err))
		return
	}
	h.mu.Lock()
	switch msg.Type {
	case MsgSlide, MsgError:
		h.state[MsgSlide] = data
		delete(h.state, MsgCaption)
	case MsgCaption, MsgPaused, MsgCountdown:
		h.state[msg.Type] = data
	}
	h.mu.Unlock()
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// join registers c unless the hub has stopped.
func (h *hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) clientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func newClient(h *hub, conn *websocket.Conn) *client {
	return &client{id: uuid.NewString(), hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
}

// readPump forwards page input to the hub's handler.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.Warn("display connection error", "client", c.id, logging.Error(err))
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.logger.Warn("invalid display message", "client", c.id, logging.Error(err))
			continue
		}
		if c.hub.onMessage != nil {
			c.hub.onMessage(c, msg)
		}
	}
}

// writePump sends queued messages and keeps the connection alive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
