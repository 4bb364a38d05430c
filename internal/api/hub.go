package api

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/AaronLay10/LockStep/internal/metrics"
)

// sendBuffer is the per-connection outbound queue length. A client that
// falls this far behind is dropped.
const sendBuffer = 64

// outbound is a server-initiated message.
type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	limiter *rate.Limiter
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// enqueue never blocks; a full queue closes the client.
func (c *client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Warn().Str("conn", c.id).Msg("ws send queue full, dropping client")
		c.close()
		return false
	}
}

// Hub tracks open connections and the room each one listens to.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	rooms   map[string]map[string]*client
	member  map[string]string
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		rooms:   make(map[string]map[string]*client),
		member:  make(map[string]string),
	}
}

// register assigns a fresh connection identity.
func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(10, 20),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	metrics.WSClients.Inc()
	return c
}

func (h *Hub) unregister(c *client) {
	h.Leave(c.id)
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		metrics.WSClients.Dec()
	}
	h.mu.Unlock()
	c.close()
}

// Join moves a connection into a room's audience.
func (h *Hub) Join(connID, code string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}
	h.leaveLocked(connID)
	members := h.rooms[code]
	if members == nil {
		members = make(map[string]*client)
		h.rooms[code] = members
	}
	members[connID] = c
	h.member[connID] = code
}

func (h *Hub) Leave(connID string) {
	h.mu.Lock()
	h.leaveLocked(connID)
	h.mu.Unlock()
}

func (h *Hub) leaveLocked(connID string) {
	code, ok := h.member[connID]
	if !ok {
		return
	}
	delete(h.member, connID)
	if members := h.rooms[code]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, code)
		}
	}
}

// Broadcast sends {type, payload} to every connection in the room.
func (h *Hub) Broadcast(code, msgType string, payload any) {
	data, err := json.Marshal(outbound{Type: msgType, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("room", code).Str("type", msgType).Msg("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[code] {
		c.enqueue(data)
	}
}

// ClientCount reports open connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Audience reports how many connections listen to a room.
func (h *Hub) Audience(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[code])
}

// CloseAll ends every connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.close()
	}
}
