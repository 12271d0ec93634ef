package api

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Client represents a WebSocket client connection
type Client struct {
	ID      string
	Send    chan []byte
	Hub     *Hub
	mu      sync.Mutex
	closeCh chan struct{}
	closed  bool
}

// closeSend closes the client's send channel exactly once
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

// Hub maintains the set of active clients and fans task events out to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel for broadcasting events to all clients
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Logger
	log *logrus.Logger

	// Mutex for thread safety
	mu sync.Mutex
}

// NewHub creates a new Hub instance
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		log:        log,
	}
}

// Run starts the hub's event handling loop. It returns once ctx is
// cancelled, after disconnecting every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.log.Infof("New client connected. Total clients: %d", len(h.clients))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.closeSend()
				h.log.Infof("Client disconnected. Total clients: %d", len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
					// Event queued successfully
				default:
					// Client cannot keep up, drop it
					client.closeSend()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.closeSend()
		close(client.closeCh)
		delete(h.clients, client)
	}
	h.log.Info("Hub stopped, all clients disconnected")
}
