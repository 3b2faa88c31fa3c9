package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/victornm/sketch/internal/domain"
	"github.com/victornm/sketch/internal/errors"
)

const (
	defaultSendBuffer   = 256
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultReadLimit    = 64 << 10
	defaultRateLimit    = 30
	defaultRateBurst    = 60
)

type HubConfig struct {
	// SendBuffer is the number of frames queued per connection. A connection
	// whose queue is full is dropped.
	SendBuffer   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	ReadLimit    int64

	// RateLimit and RateBurst bound the inbound frames per connection per second.
	RateLimit float64
	RateBurst int

	// Dropped counts frames that could not be queued. Optional.
	Dropped prometheus.Counter
}

// Hub is the WebSocket transport. It owns the connections and the room groups
// used for broadcasts. Send and Broadcast only enqueue; every connection has a
// write pump of its own.
type Hub struct {
	c        HubConfig
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*client
	rooms  map[string]map[string]*client
	closed bool

	// serving counts connections whose disconnect has not been reported yet.
	serving sync.WaitGroup
}

type client struct {
	id      string
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	once sync.Once
	done chan struct{}
}

func NewHub(c HubConfig) *Hub {
	if c.SendBuffer <= 0 {
		c.SendBuffer = defaultSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = defaultPongTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateBurst <= 0 {
		c.RateBurst = defaultRateBurst
	}

	return &Hub{
		c: c,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[string]*client),
		rooms: make(map[string]map[string]*client),
	}
}

// Serve upgrades the request and pumps frames until the connection closes,
// then reports the disconnect to d.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, d Director) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.InfoContext(r.Context(), "hub: upgrade failed", "error", err)
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		slog.ErrorContext(r.Context(), "hub: generate connection ID failed", "error", err)
		_ = ws.Close()
		return
	}

	c := &client{
		id:      id.String(),
		ws:      ws,
		send:    make(chan []byte, h.c.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(h.c.RateLimit), h.c.RateBurst),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	h.conns[c.id] = c
	h.serving.Add(1)
	h.mu.Unlock()
	defer h.serving.Done()

	ctx := context.WithoutCancel(r.Context())
	slog.DebugContext(ctx, "hub: connected", "conn", c.id, "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(ctx, c, d)

	d.Disconnect(ctx, c.id)
	h.remove(c)
	slog.DebugContext(ctx, "hub: disconnected", "conn", c.id)
}

func (h *Hub) readPump(ctx context.Context, c *client, d Director) {
	c.ws.SetReadLimit(h.c.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(h.c.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.c.PongTimeout))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.InfoContext(ctx, "hub: read failed", "conn", c.id, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			h.drop()
			continue
		}

		if err := dispatch(ctx, d, c.id, raw); err != nil {
			slog.DebugContext(ctx, "hub: message rejected", "conn", c.id, "error", err)
			if errors.HasCode(err, errors.CodeInvalidArgument) {
				h.Send(ctx, c.id, domain.Notification{
					Event: domain.NotifyError,
					Data:  errors.Convert(err).Message,
				})
			}
		}
	}
}

func (h *Hub) writePump(c *client) {
	ping := time.NewTicker(h.c.PongTimeout * 9 / 10)
	defer func() {
		ping.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.c.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}

		case <-ping.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.c.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(h.c.WriteTimeout))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (h *Hub) Join(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*client)
		h.rooms[roomID] = members
	}
	members[connID] = c
}

func (h *Hub) Leave(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leave(connID, roomID)
}

func (h *Hub) leave(connID, roomID string) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

func (h *Hub) Send(ctx context.Context, connID string, n domain.Notification) {
	b, ok := encode(ctx, n)
	if !ok {
		return
	}

	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if ok {
		h.enqueue(c, b)
	}
}

func (h *Hub) Broadcast(ctx context.Context, roomID string, n domain.Notification, except ...string) {
	b, ok := encode(ctx, n)
	if !ok {
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[roomID]))
	for id, c := range h.rooms[roomID] {
		if !slices.Contains(except, id) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.enqueue(c, b)
	}
}

// Len is the number of open connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}

// Close disconnects every connection and returns once the director has seen
// each disconnect. Upgrades after Close are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.conns))
	for _, c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}

	h.serving.Wait()
}

// enqueue never blocks. A connection too slow to drain its queue is closed;
// its read pump then reports the disconnect.
func (h *Hub) enqueue(c *client, b []byte) {
	select {
	case <-c.done:
	case c.send <- b:
	default:
		h.drop()
		slog.Warn("hub: send queue full, closing connection", "conn", c.id)
		c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.conns, c.id)
	for roomID, members := range h.rooms {
		if members[c.id] == c {
			h.leave(c.id, roomID)
		}
	}
	h.mu.Unlock()

	c.close()
}

func (h *Hub) drop() {
	if h.c.Dropped != nil {
		h.c.Dropped.Inc()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		// unblocks the read pump
		_ = c.ws.SetReadDeadline(time.Now())
	})
}

func encode(ctx context.Context, n domain.Notification) ([]byte, bool) {
	b, err := json.Marshal(n)
	if err != nil {
		slog.ErrorContext(ctx, "hub: marshal notification failed", "event", n.Event, "error", err)
		return nil, false
	}
	return b, true
}
