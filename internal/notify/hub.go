package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var (
	// ErrUnknownChannel is returned for channels outside global, admin and room:<id>.
	ErrUnknownChannel = errors.New("notify: unknown channel")
	// ErrChannelForbidden is returned when a non-admin joins the admin channel.
	ErrChannelForbidden = errors.New("notify: channel requires admin role")
)

// Subscriber identifies the user behind a connection.
type Subscriber struct {
	UserID   string
	Username string
	IsAdmin  bool
}

// Hub tracks WebSocket connections and their channel memberships and
// delivers published events to them.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}

	upgrader websocket.Upgrader
	logger   *slog.Logger
	observer func(active int)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithConnectionObserver is called with the number of open connections
// whenever it changes.
func WithConnectionObserver(fn func(active int)) HubOption {
	return func(h *Hub) {
		h.observer = fn
	}
}

// WithCheckOrigin overrides the upgrader origin check.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHub constructs an empty hub.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With("component", "notify.hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish queues event for every connection subscribed to channel. Slow
// connections whose queue is full miss the event.
func (h *Hub) Publish(ctx context.Context, channel string, event Event) error {
	payload, err := json.Marshal(serverMessage{Type: messageEvent, Channel: channel, Event: &event})
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.channels[channel] {
		if !c.queue(payload) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.WarnContext(ctx, "event dropped for slow subscribers",
			"channel", channel,
			"event", event.Type,
			"dropped", dropped,
		)
	}
	return nil
}

// ServeWS upgrades the request and attaches the connection to the global
// channel. It returns once the pumps are started.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sub Subscriber) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	c := newClient(h, conn, sub)
	h.register(c)
	if err := h.join(c, GlobalChannel); err != nil {
		h.unregister(c)
		conn.Close()
		return err
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// Connections returns the number of open connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Subscribers returns the number of connections joined to channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// SetAdmin updates the role of every connection opened by userID. Demoted
// connections leave the admin channel immediately.
func (h *Hub) SetAdmin(userID string, isAdmin bool) {
	h.mu.Lock()
	updated := 0
	for c := range h.clients {
		if c.sub.UserID != userID {
			continue
		}
		c.sub.IsAdmin = isAdmin
		if !isAdmin {
			if members, ok := h.channels[AdminChannel]; ok {
				delete(members, c)
				if len(members) == 0 {
					delete(h.channels, AdminChannel)
				}
			}
		}
		updated++
	}
	h.mu.Unlock()

	if updated > 0 {
		h.logger.Info("subscriber role changed", "user_id", userID, "is_admin", isAdmin, "connections", updated)
	}
}

// Disconnect closes every connection opened by userID.
func (h *Hub) Disconnect(userID string) {
	h.mu.RLock()
	var owned []*Client
	for c := range h.clients {
		if c.sub.UserID == userID {
			owned = append(owned, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range owned {
		h.unregister(c)
	}
	if len(owned) > 0 {
		h.logger.Info("subscriber disconnected", "user_id", userID, "connections", len(owned))
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client connected", "user_id", c.sub.UserID, "active", active)
	h.observe(active)
}

// unregister removes c from every channel and closes its send queue. It is
// safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for channel, members := range h.channels {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	close(c.send)
	active := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client disconnected", "user_id", c.sub.UserID, "active", active)
	h.observe(active)
}

func (h *Hub) join(c *Client, channel string) error {
	if !ValidChannel(channel) {
		return ErrUnknownChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if channel == AdminChannel && !c.sub.IsAdmin {
		return ErrChannelForbidden
	}
	if _, ok := h.clients[c]; !ok {
		return nil
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*Client]struct{})
		h.channels[channel] = members
	}
	members[c] = struct{}{}
	return nil
}

func (h *Hub) leave(c *Client, channel string) error {
	if !ValidChannel(channel) {
		return ErrUnknownChannel
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.channels[channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	return nil
}

func (h *Hub) observe(active int) {
	if h.observer != nil {
		h.observer(active)
	}
}
