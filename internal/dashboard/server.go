// Package dashboard serves a live feed of trace.Bus events to browsers
// over a WebSocket, the server-side inverse of the teacher's
// homeassistant.WSClient: instead of dialing out and authenticating
// against Home Assistant, it accepts inbound connections and pushes
// every event as it is published.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nugget/zigbeesim/internal/trace"
)

// Server upgrades HTTP requests on its handler to WebSocket
// connections and fans out every event published on its tracer to
// each connected client.
type Server struct {
	tracer *trace.Bus
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan trace.Event
}

// NewServer creates a dashboard server fanning out events from tracer.
// A nil logger is replaced with slog.Default.
func NewServer(tracer *trace.Bus, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		tracer:  tracer,
		logger:  logger,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and registers it for trace events
// until the client disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("dashboard: websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan trace.Event, 256)}
	s.addClient(c)
	defer s.removeClient(c)

	go s.writeLoop(c)
	s.readLoop(c)
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()
	if ok {
		close(c.send)
	}
	c.conn.Close()
}

// readLoop discards inbound frames (this is a push-only feed) but must
// still run so gorilla/websocket processes pings/close frames and
// detects a dead connection.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	for e := range c.send {
		if err := c.conn.WriteJSON(e); err != nil {
			s.logger.Debug("dashboard: write failed, dropping client", "error", err)
			return
		}
	}
}

// Run subscribes to the server's tracer and fans events out to every
// connected client until stop is closed. Run blocks; call it in its
// own goroutine.
func (s *Server) Run(stop <-chan struct{}) {
	events := s.tracer.Subscribe(256)
	defer s.tracer.Unsubscribe(events)

	for {
		select {
		case <-stop:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			s.broadcast(e)
		}
	}
}

func (s *Server) broadcast(e trace.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- e:
		default:
			s.logger.Warn("dashboard: client send buffer full, dropping event", "kind", e.Kind)
		}
	}
}

// ClientCount returns the number of currently connected dashboard
// clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

type statusBody struct {
	Clients int `json:"clients"`
}

// StatusHandler reports how many dashboard clients are currently
// connected, for a liveness check or a status widget that doesn't want
// to hold a WebSocket open.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusBody{Clients: s.ClientCount()})
}
