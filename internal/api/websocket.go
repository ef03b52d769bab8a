package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/rfbridge/internal/device"
	"github.com/nerrad567/rfbridge/internal/infrastructure/config"
	"github.com/nerrad567/rfbridge/internal/infrastructure/logging"
)

// Frame types on /api/v1/stream.
const (
	FrameStateChanged = "state_changed"
	FrameSubscribed   = "subscribed"
	FrameUnsubscribed = "unsubscribed"
	FramePong         = "pong"
	FrameError        = "error"

	RequestSubscribe   = "subscribe"
	RequestUnsubscribe = "unsubscribe"
	RequestPing        = "ping"
)

const streamQueueSize = 256

// StreamFrame is one message sent to a stream client.
type StreamFrame struct {
	Type  string        `json:"type"`
	ID    string        `json:"id,omitempty"`
	Event *device.Event `json:"event,omitempty"`
	Paths []string      `json:"paths,omitempty"`
	Error string        `json:"error,omitempty"`
}

// StreamRequest is one message received from a stream client. Paths
// narrow the stream to those devices and their subdevices; a client with
// no paths receives everything.
type StreamRequest struct {
	Type  string   `json:"type"`
	ID    string   `json:"id,omitempty"`
	Paths []string `json:"paths,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are policed by the cors middleware.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub fans device events out to stream clients.
type Hub struct {
	maxMessage int64
	pingEvery  time.Duration
	pongWait   time.Duration
	logger     *logging.Logger

	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewHub creates a hub, filling unset limits with 8 KiB messages, a 30s
// ping interval and a 10s pong timeout.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	seconds := func(v, fallback int) time.Duration {
		if v <= 0 {
			v = fallback
		}
		return time.Duration(v) * time.Second
	}
	maxMessage := int64(cfg.MaxMessageSize)
	if maxMessage <= 0 {
		maxMessage = 8 << 10
	}
	return &Hub{
		maxMessage: maxMessage,
		pingEvery:  seconds(cfg.PingInterval, 30),
		pongWait:   seconds(cfg.PongTimeout, 10),
		logger:     logger,
		clients:    make(map[*streamClient]struct{}),
	}
}

// Run forwards events until ctx ends or events closes, then disconnects
// every client.
func (h *Hub) Run(ctx context.Context, events <-chan device.Event) {
	defer h.disconnectAll()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(e)
		}
	}
}

// Broadcast queues e for every client interested in its path. Clients
// whose queue is full miss the event.
func (h *Hub) Broadcast(e device.Event) {
	data, err := json.Marshal(StreamFrame{Type: FrameStateChanged, ID: e.ID, Event: &e})
	if err != nil {
		h.logger.Error("encoding stream event", "path", e.Path, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.wants(e.Path) {
			c.queue(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *streamClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", n)
}

func (h *Hub) remove(c *streamClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.close()
	h.logger.Debug("stream client disconnected", "clients", n)
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*streamClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// handleStream upgrades the request and streams device events.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "event stream is not enabled")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "error", err)
		return
	}

	c := newStreamClient(s.hub, conn)
	s.hub.add(c)
	go c.writeLoop()
	go c.readLoop()
}

type streamClient struct {
	hub  *Hub
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}
	once sync.Once

	mu    sync.RWMutex
	paths map[string]struct{}
}

func newStreamClient(hub *Hub, conn *websocket.Conn) *streamClient {
	return &streamClient{
		hub:   hub,
		conn:  conn,
		out:   make(chan []byte, streamQueueSize),
		done:  make(chan struct{}),
		paths: make(map[string]struct{}),
	}
}

func (c *streamClient) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *streamClient) queue(data []byte) {
	select {
	case <-c.done:
	case c.out <- data:
	default:
	}
}

func (c *streamClient) reply(f StreamFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.queue(data)
}

// wants reports whether an event at path is for this client. A
// subscription to "fan/bedroom" also covers "fan/bedroom/speed".
func (c *streamClient) wants(path string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.paths) == 0 {
		return true
	}
	for p := range c.paths {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func (c *streamClient) readLoop() {
	defer c.hub.remove(c)

	wait := c.hub.pingEvery + c.hub.pongWait
	extend := func(string) error { return c.conn.SetReadDeadline(time.Now().Add(wait)) }

	c.conn.SetReadLimit(c.hub.maxMessage)
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("stream read failed", "error", err)
			}
			return
		}
		_ = extend("")
		c.handle(data)
	}
}

func (c *streamClient) writeLoop() {
	ping := time.NewTicker(c.hub.pingEvery)
	defer ping.Stop()

	write := func(kind int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.hub.pongWait))
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			_ = write(websocket.CloseMessage, nil)
			return
		case data := <-c.out:
			if write(websocket.TextMessage, data) != nil {
				c.close()
				return
			}
		case <-ping.C:
			if write(websocket.PingMessage, nil) != nil {
				c.close()
				return
			}
		}
	}
}

func (c *streamClient) handle(data []byte) {
	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply(StreamFrame{Type: FrameError, Error: "malformed request"})
		return
	}

	switch req.Type {
	case RequestPing:
		c.reply(StreamFrame{Type: FramePong, ID: req.ID})
	case RequestSubscribe, RequestUnsubscribe:
		paths := make([]string, 0, len(req.Paths))
		c.mu.Lock()
		for _, p := range req.Paths {
			p = strings.Trim(p, "/")
			if p == "" {
				continue
			}
			paths = append(paths, p)
			if req.Type == RequestSubscribe {
				c.paths[p] = struct{}{}
			} else {
				delete(c.paths, p)
			}
		}
		c.mu.Unlock()

		frame := FrameSubscribed
		if req.Type == RequestUnsubscribe {
			frame = FrameUnsubscribed
		}
		c.reply(StreamFrame{Type: frame, ID: req.ID, Paths: paths})
	default:
		c.reply(StreamFrame{Type: FrameError, ID: req.ID, Error: "unknown request type " + req.Type})
	}
}
