// Package feed pushes converted documents to subscribers over websockets.
// A Hub fans each published document out to every connected session as a
// JSON message; slow sessions are dropped rather than allowed to stall
// the rest.
package feed

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lyricore/lyricore/core/ir"
	"github.com/lyricore/lyricore/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Message is one feed payload.
type Message struct {
	Type      string       `json:"type"` // "document" or "error"
	Source    string       `json:"source,omitempty"`
	Document  *ir.Document `json:"document,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// session is one connected subscriber.
type session struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the subscriber set and fans out published messages.
type Hub struct {
	mu         sync.RWMutex
	sessions   map[*session]bool
	broadcast  chan []byte
	register   chan *session
	unregister chan *session
	done       chan struct{}
}

// NewHub returns a hub; call Run on it before publishing.
func NewHub() *Hub {
	return &Hub{
		sessions:   make(map[*session]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *session),
		unregister: make(chan *session),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Shutdown.
func (h *Hub) Run() {
	for {
		select {
		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s] = true
			n := len(h.sessions)
			h.mu.Unlock()
			logging.FeedEvent("subscriber_connected", n, "session_id", s.id)

		case s := <-h.unregister:
			h.mu.Lock()
			if h.sessions[s] {
				delete(h.sessions, s)
				close(s.send)
			}
			n := len(h.sessions)
			h.mu.Unlock()
			logging.FeedEvent("subscriber_disconnected", n, "session_id", s.id)

		case data := <-h.broadcast:
			h.mu.Lock()
			for s := range h.sessions {
				select {
				case s.send <- data:
				default:
					delete(h.sessions, s)
					close(s.send)
				}
			}
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for s := range h.sessions {
				delete(h.sessions, s)
				close(s.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Shutdown stops the hub and disconnects every subscriber.
func (h *Hub) Shutdown() {
	close(h.done)
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// PublishDocument fans a converted document out to every subscriber.
func (h *Hub) PublishDocument(source string, doc *ir.Document) {
	h.publish(Message{Type: "document", Source: source, Document: doc})
}

// PublishError reports a conversion failure to every subscriber.
func (h *Hub) PublishError(source, msg string) {
	h.publish(Message{Type: "error", Source: source, Error: msg})
}

func (h *Hub) publish(msg Message) {
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error("failed to marshal feed message", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logging.Warn("feed broadcast channel full, dropping message")
	}
}

// Handler upgrades HTTP requests into feed subscriptions.
func (h *Hub) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Error("websocket upgrade failed", "error", err)
			return
		}
		s := &session{
			id:   uuid.NewString(),
			hub:  h,
			conn: conn,
			send: make(chan []byte, sendBuffer),
		}
		h.register <- s
		go s.writePump()
		go s.readPump()
	})
}

// readPump drains the connection; subscribers send nothing meaningful,
// but reading is what surfaces closes and pongs.
func (s *session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()
	s.conn.SetReadLimit(512)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error("websocket unexpected close", "session_id", s.id, "error", err)
			}
			return
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()
	for {
		select {
		case data, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
