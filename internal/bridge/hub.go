// Package bridge pushes store snapshots to browser consumers over WebSocket.
package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/tradeonly/internal/common"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Frame is one message sent to a consumer
type Frame struct {
	Store string `json:"store"`
	State any    `json:"state"`
}

// Hub manages WebSocket clients and broadcasts store snapshots.
//
// Store listeners only record the newest snapshot per store and poke the
// run loop, so a burst of updates is coalesced instead of dropped and a
// client never receives an older snapshot after a newer one.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	notify     chan struct{}
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger

	stateMu   sync.Mutex
	pending   map[string][]byte
	snapshots map[string][]byte
	unsubs    []func()

	wg sync.WaitGroup
}

// Client is a connected WebSocket consumer
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub and starts its event loop
func NewHub(logger *common.Logger) *Hub {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	h := &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		logger:     logger,
		pending:    make(map[string][]byte),
		snapshots:  make(map[string][]byte),
	}
	h.safeGo("bridge-hub", h.run)
	return h
}

// Attach publishes the named store through the hub. current is sent to
// clients that connect before the store next changes.
func Attach[S any](h *Hub, name string, current S, subscribe func(func(S)) func()) error {
	data, err := json.Marshal(Frame{Store: name, State: current})
	if err != nil {
		return fmt.Errorf("bridge %s: failed to encode snapshot: %w", name, err)
	}

	h.stateMu.Lock()
	h.snapshots[name] = data
	h.stateMu.Unlock()

	unsub := subscribe(func(s S) {
		data, err := json.Marshal(Frame{Store: name, State: s})
		if err != nil {
			h.logger.Warn().Err(err).Str("store", name).Msg("Failed to encode store snapshot")
			return
		}
		h.publish(name, data)
	})

	h.stateMu.Lock()
	h.unsubs = append(h.unsubs, unsub)
	h.stateMu.Unlock()
	return nil
}

func (h *Hub) publish(name string, data []byte) {
	h.stateMu.Lock()
	h.pending[name] = data
	h.stateMu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (h *Hub) safeGo(name string, fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in bridge goroutine")
			}
		}()
		fn()
	}()
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()

			// Buffer holds far more than one frame per store
			for _, data := range h.currentSnapshots() {
				client.send <- data
			}
			h.logger.Debug().Int("clients", n).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug().Int("clients", n).Msg("WebSocket client disconnected")

		case <-h.notify:
			h.fanOut(h.takePending())
		}
	}
}

// takePending moves pending frames into the snapshot set and returns them
// ordered by store name.
func (h *Hub) takePending() [][]byte {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	names := make([]string, 0, len(h.pending))
	for name := range h.pending {
		names = append(names, name)
	}
	slices.Sort(names)

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		data := h.pending[name]
		h.snapshots[name] = data
		frames = append(frames, data)
	}
	clear(h.pending)
	return frames
}

func (h *Hub) currentSnapshots() [][]byte {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	names := make([]string, 0, len(h.snapshots))
	for name := range h.snapshots {
		names = append(names, name)
	}
	slices.Sort(names)

	frames := make([][]byte, 0, len(names))
	for _, name := range names {
		frames = append(frames, h.snapshots[name])
	}
	return frames
}

func (h *Hub) fanOut(frames [][]byte) {
	if len(frames) == 0 {
		return
	}

	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		if !client.trySend(frames) {
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		}
		h.mu.Unlock()
		h.logger.Warn().Int("dropped", len(slow)).Msg("Dropped slow WebSocket clients")
	}
}

// Close unsubscribes from every attached store, disconnects clients and
// stops the event loop. Safe to call more than once.
func (h *Hub) Close() {
	h.stateMu.Lock()
	unsubs := h.unsubs
	h.unsubs = nil
	h.stateMu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}

	select {
	case <-h.done:
		// Already stopped
	default:
		close(h.done)
	}
	h.wg.Wait()
}

// ServeWS upgrades an HTTP connection to WebSocket and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// trySend queues frames without blocking; false means the client fell behind.
func (c *Client) trySend(frames [][]byte) bool {
	for _, data := range frames {
		select {
		case c.send <- data:
		default:
			return false
		}
	}
	return true
}

// writePump sends messages from the send channel to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads messages from the WebSocket connection (mainly to detect close).
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
