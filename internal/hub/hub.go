// Package hub fans journey snapshots out to connected websocket clients.
package hub

import (
	"context"
	"log/slog"
	"sync"
)

// Client is one websocket connection. Frames are full snapshots, so a
// client that falls behind only needs the newest ones.
type Client struct {
	ID   string
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(id string, bufferSize int) *Client {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
	}
}

// TrySend queues frame without blocking. It reports false when the buffer
// is full or the client was closed.
func (c *Client) TrySend(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// close closes Send once. Later sends are dropped.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// offer queues frame, evicting the oldest queued frame when the buffer is
// full. It reports whether a frame was evicted.
func (c *Client) offer(frame []byte) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	for {
		select {
		case c.Send <- frame:
			return evicted
		default:
		}
		select {
		case <-c.Send:
			evicted = true
		default:
		}
	}
}

// Hub tracks connected clients and pushes every published frame to each
// of them from a single goroutine.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	evicted int

	register   chan *Client
	unregister chan *Client
	frames     chan []byte
	done       chan struct{}

	onCount func(int)
	logger  *slog.Logger
}

// NewHub creates a hub. onCount, if set, is called with the client count
// after every registration change.
func NewHub(onCount func(int), logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		frames:     make(chan []byte, 64),
		done:       make(chan struct{}),
		onCount:    onCount,
		logger:     logger.With("component", "hub"),
	}
}

// Run serves registrations and frames until ctx is done, then closes every
// client's Send channel. Run must be called at most once.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.counted(n)
			h.logger.Debug("client registered", "client_id", client.ID, "total", n)

		case client := <-h.unregister:
			h.remove(client)

		case frame := <-h.frames:
			h.push(frame)
		}
	}
}

// Broadcast queues frame for every client. It never blocks; when the hub
// is backed up the frame is dropped.
func (h *Hub) Broadcast(frame []byte) {
	select {
	case h.frames <- frame:
	default:
		h.logger.Warn("hub backed up, dropping snapshot")
	}
}

// Register adds client. After Run has returned the client is closed
// instead.
func (h *Hub) Register(client *Client) {
	select {
	case <-h.done:
		client.close()
		return
	default:
	}
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

// Unregister removes client and closes its Send channel. It does not block
// once Run has returned.
func (h *Hub) Unregister(client *Client) {
	select {
	case <-h.done:
		client.close()
		return
	default:
	}
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Evicted returns how many queued snapshots were replaced by newer ones
// because a client was slow.
func (h *Hub) Evicted() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.evicted
}

func (h *Hub) push(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.offer(frame) {
			h.evicted++
			h.logger.Debug("slow client, replaced queued snapshot", "client_id", client.ID)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	client.close()
	n := len(h.clients)
	h.mu.Unlock()

	h.counted(n)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", n)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.close()
	}
	h.clients = make(map[*Client]struct{})
}

func (h *Hub) counted(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
