package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Publisher delivers events to one user's subscribers
type Publisher interface {
	Publish(userID string, ev Event)
}

type message struct {
	userID string
	data   []byte
}

type subscriber struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub fans events out to websocket subscribers grouped by user
type Hub struct {
	subs       map[string]map[*subscriber]struct{}
	register   chan *subscriber
	unregister chan *subscriber
	publish    chan message
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger

	mu    sync.RWMutex
	count int
}

// NewHub creates a hub. allowedOrigins empty accepts any origin.
func NewHub(logger *zap.Logger, allowedOrigins []string) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		subs:       make(map[string]map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		publish:    make(chan message, 256),
		done:       make(chan struct{}),
		logger:     logger.Named("events"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run serves the hub until ctx is done, then closes every subscriber
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.subs {
				for s := range set {
					close(s.send)
				}
			}
			h.subs = make(map[string]map[*subscriber]struct{})
			h.setCount(0)
			return

		case s := <-h.register:
			set, ok := h.subs[s.userID]
			if !ok {
				set = make(map[*subscriber]struct{})
				h.subs[s.userID] = set
			}
			set[s] = struct{}{}
			h.addCount(1)
			h.logger.Debug("subscriber connected", zap.String("user_id", s.userID))

		case s := <-h.unregister:
			h.drop(s)

		case msg := <-h.publish:
			for s := range h.subs[msg.userID] {
				select {
				case s.send <- msg.data:
				default:
					h.logger.Warn("dropping slow subscriber", zap.String("user_id", s.userID))
					h.drop(s)
				}
			}
		}
	}
}

func (h *Hub) drop(s *subscriber) {
	set, ok := h.subs[s.userID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, s.userID)
	}
	close(s.send)
	h.addCount(-1)
	h.logger.Debug("subscriber disconnected", zap.String("user_id", s.userID))
}

// Publish queues ev for userID. It never blocks once the hub has stopped.
func (h *Hub) Publish(userID string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to encode event", zap.String("type", string(ev.Type)), zap.Error(err))
		return
	}
	select {
	case h.publish <- message{userID: userID, data: data}:
	case <-h.done:
	}
}

// Subscribers returns the number of open connections
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) addCount(d int) {
	h.mu.Lock()
	h.count += d
	h.mu.Unlock()
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Serve upgrades the request and streams userID's events to it
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s := &subscriber{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- s:
	case <-h.done:
		conn.Close()
		return
	}

	go s.writePump()
	go s.readPump()
}

// readPump discards client frames and detects disconnects
func (s *subscriber) readPump() {
	defer func() {
		select {
		case s.hub.unregister <- s:
		case <-s.hub.done:
		}
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (s *subscriber) writePump() {
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
