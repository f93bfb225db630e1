package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/livescan"
	"github.com/MeKo-Tech/qrscan/internal/scan"
	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	writeWait  = 10 * time.Second
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Live message types.
const (
	msgDismiss = "dismiss"
	msgResult  = "result"
	msgNotice  = "notice"
	msgResumed = "resumed"
	msgIgnored = "ignored"
	msgError   = "error"
)

// LiveMessage is sent to live clients.
type LiveMessage struct {
	Type    string          `json:"type"`
	Event   *livescan.Event `json:"event,omitempty"`
	Notice  *scan.Notice    `json:"notice,omitempty"`
	Outcome *scan.Outcome   `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// sendQueueSize bounds the messages buffered for one live client.
const sendQueueSize = 16

var (
	errClientClosed = errors.New("live client closed")
	errClientSlow   = errors.New("live client send queue full")
)

// client owns one live connection. Messages are queued and written by a
// single writer goroutine, so senders never wait on the network.
type client struct {
	conn  WebSocketConnWriter
	queue chan []byte
	quit  chan struct{}
	once  sync.Once
}

func newClient(conn WebSocketConnWriter) *client {
	c := &client{
		conn:  conn,
		queue: make(chan []byte, sendQueueSize),
		quit:  make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	for {
		select {
		case <-c.quit:
			return
		case data := <-c.queue:
			if d, ok := c.conn.(writeDeadliner); ok {
				_ = d.SetWriteDeadline(time.Now().Add(writeWait))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("Live client write failed", "error", err)
				c.close()
				return
			}
			websocketMessagesTotal.WithLabelValues("sent").Inc()
		}
	}
}

// send queues data without blocking. A full queue closes the client.
func (c *client) send(data []byte) error {
	select {
	case <-c.quit:
		return errClientClosed
	default:
	}
	select {
	case c.queue <- data:
		return nil
	default:
		c.close()
		return errClientSlow
	}
}

// close stops the writer and closes a real connection so its read loop ends.
func (c *client) close() {
	c.once.Do(func() {
		close(c.quit)
		if conn, ok := c.conn.(*websocket.Conn); ok {
			_ = conn.Close()
		}
	})
}

// hub fans messages out to every connected live client.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// broadcast queues msg for every client and drops those that cannot keep up.
func (h *hub) broadcast(msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal live message", "error", err)
		return
	}
	for _, c := range h.snapshot() {
		if err := c.send(data); err != nil {
			slog.Debug("Dropping live client", "error", err)
			h.remove(c)
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
		delete(h.clients, c)
	}
}

// Notify forwards image-scan notices to live clients.
func (h *hub) Notify(_ context.Context, n scan.Notice, o scan.Outcome) {
	h.broadcast(LiveMessage{Type: msgNotice, Notice: &n, Outcome: &o})
}

// liveWebSocketHandler accepts camera detections and pushes notices.
func (s *Server) liveWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	c := newClient(conn)
	s.hub.add(c)
	defer func() {
		s.hub.remove(c)
		c.close()
	}()

	slog.Info("Live WebSocket connection established", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleLiveMessage(r.Context(), c, data)
		}
	}
}

// handleLiveMessage applies one client message to the gate.
func (s *Server) handleLiveMessage(ctx context.Context, c *client, data []byte) {
	var ev livescan.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		s.sendLive(c, LiveMessage{Type: msgError, Error: "invalid message: " + err.Error()})
		return
	}

	if ev.Type == msgDismiss {
		s.gate.Resume()
		s.hub.broadcast(LiveMessage{Type: msgResumed})
		return
	}
	if ev.Type == "" || ev.Data == "" {
		s.sendLive(c, LiveMessage{Type: msgError, Error: "detection needs type and data"})
		return
	}

	if !s.gate.Offer(ev) {
		liveDetectionsTotal.WithLabelValues("dropped").Inc()
		s.sendLive(c, LiveMessage{Type: msgIgnored, Event: &ev})
		return
	}
	liveDetectionsTotal.WithLabelValues("accepted").Inc()

	if s.history != nil {
		if err := s.history.Append(ctx, history.NewEntry(ev.Type, ev.Data)); err != nil {
			slog.Warn("Failed to record live detection", "error", err)
		}
	}
	n := ev.Notice()
	s.hub.broadcast(LiveMessage{Type: msgResult, Event: &ev, Notice: &n})
}

func (s *Server) sendLive(c *client, msg LiveMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal live message", "error", err)
		return
	}
	if err := c.send(data); err != nil {
		slog.Error("Failed to send WebSocket message", "error", err)
	}
}
