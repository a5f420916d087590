// Package hub is the push channel to connected dashboard clients. Publish
// is fire-and-forget: no acknowledgment is required or awaited, and a slow
// client is disconnected rather than allowed to apply backpressure.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const clientBuffer = 64

// Message is the wire envelope pushed to clients.
type Message struct {
	Topic   string `json:"topic"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Client is one connected websocket subscriber.
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
}

// Hub fans messages out to websocket clients by topic.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func New() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

// Publish sends an event to every client subscribed to topic. Errors are
// per-client and handled by dropping the client; Publish itself only fails
// on an unencodable payload.
func (h *Hub) Publish(topic, event string, payload any) error {
	data, err := json.Marshal(Message{Topic: topic, Type: event, Payload: payload})
	if err != nil {
		return err
	}

	var slow []*Client

	h.mu.RLock()
	for c := range h.clients {
		if _, ok := c.topics[topic]; !ok {
			continue
		}
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn("dropping slow websocket client")
		h.Remove(c)
	}
	return nil
}

// Add registers conn with its topic subscriptions and starts its write
// pump. The returned handle is passed to Remove on disconnect.
func (h *Hub) Add(conn *websocket.Conn, topics ...string) *Client {
	c := &Client{
		conn:   conn,
		send:   make(chan []byte, clientBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, t := range topics {
		c.topics[t] = struct{}{}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	return c
}

// Remove detaches a client and closes its connection.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	h.mu.Unlock()

	if ok {
		close(c.send)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debugf("websocket write error: %v", err)
			return
		}
	}
}
