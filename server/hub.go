package server

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBuffer   = 16
	writeTimeout = 5 * time.Second
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// client owns one connection. Only its writer goroutine writes to conn.
type client struct {
	conn *websocket.Conn
	send chan Message
}

func (c *client) writer() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
}

// hub tracks websocket clients and fans messages out to them.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

// register adds conn and queues first() as its opening message. first runs
// under the hub lock, so no broadcast can be queued ahead of it.
func (h *hub) register(conn *websocket.Conn, first func() Message) *client {
	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	h.add(c, first)
	go c.writer()
	return c
}

func (h *hub) add(c *client, first func() Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if first != nil {
		h.queueLocked(c, first())
	}
}

func (h *hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// sendTo queues msg for c. A client that cannot keep up is dropped.
func (h *hub) sendTo(c *client, msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queueLocked(c, msg)
}

func (h *hub) queueLocked(c *client, msg Message) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
		log.Printf("WebSocket client %s too slow, dropping", c.conn.RemoteAddr())
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.queueLocked(c, msg)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
