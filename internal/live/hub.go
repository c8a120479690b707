// Package live is the websocket push channel: a registry of sessions keyed
// by user, presence, the typing relay, and targeted notifications.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub owns every websocket session of this process. It is built at startup
// and torn down with Close.
type Hub struct {
	log      *slog.Logger
	presence Presence
	broker   Broker

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	clients map[*Client]struct{}
	groups  map[uint64]map[*Client]struct{}
	closed  bool

	upgrader websocket.Upgrader
}

type Option func(*Hub)

// WithPresence replaces the in-memory presence tracker.
func WithPresence(p Presence) Option { return func(h *Hub) { h.presence = p } }

// WithBroker routes every frame through a shared broadcast medium.
func WithBroker(b Broker) Option { return func(h *Hub) { h.broker = b } }

func NewHub(log *slog.Logger, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		log:      log.With("component", "live"),
		presence: NewMemoryPresence(),
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
		groups:   make(map[uint64]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run consumes the broker subscription until ctx is done. Without a broker
// it only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	return h.broker.Subscribe(ctx, h.deliver)
}

// ServeWS upgrades the request and runs the session of an authenticated
// user until the connection ends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID uint64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := newClient(h, conn, userID)
	if !h.attach(c) {
		_ = conn.Close()
		return nil
	}
	go c.writePump()
	c.readPump()
	return nil
}

// Notify sends an event to every session of userID.
func (h *Hub) Notify(ctx context.Context, userID uint64, event string, data any) {
	if userID == 0 {
		return
	}
	h.publish(ctx, userID, event, data)
}

// Broadcast sends an event to every connected session.
func (h *Hub) Broadcast(ctx context.Context, event string, data any) {
	h.publish(ctx, 0, event, data)
}

// Online reports whether userID has at least one live session.
func (h *Hub) Online(ctx context.Context, userID uint64) (bool, error) {
	return h.presence.Online(ctx, userID)
}

// Sessions returns how many sessions of userID are registered here.
func (h *Hub) Sessions(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// Close disconnects every session. Further connections are refused.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.cancel()
}

func (h *Hub) publish(ctx context.Context, to uint64, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.log.Error("failed to encode live event", "event", event, "err", err)
		return
	}
	env := Envelope{To: to, Frame: frame}

	if h.broker != nil {
		err := h.broker.Publish(ctx, env)
		if err == nil {
			return
		}
		h.log.Warn("broker publish failed, delivering locally", "event", event, "err", err)
	}
	h.deliver(env)
}

// deliver hands a frame to the local sessions it is addressed to.
func (h *Hub) deliver(env Envelope) {
	h.mu.RLock()
	var targets []*Client
	if env.To == 0 {
		targets = make([]*Client, 0, len(h.clients))
		for c := range h.clients {
			targets = append(targets, c)
		}
	} else {
		for c := range h.groups[env.To] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(env.Frame)
	}
}

func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

// register joins c to its user's group. Only the authenticated user may be
// claimed.
func (h *Hub) register(c *Client, claimed uint64) {
	if claimed != c.authID {
		h.log.Warn("register rejected", "claimed", claimed, "auth_user", c.authID)
		c.sendEvent(EventError, map[string]string{"message": "cannot register as another user"})
		return
	}

	h.mu.Lock()
	if c.userID != 0 {
		h.mu.Unlock()
		return
	}
	c.userID = c.authID
	group, ok := h.groups[c.userID]
	if !ok {
		group = make(map[*Client]struct{})
		h.groups[c.userID] = group
	}
	group[c] = struct{}{}
	h.mu.Unlock()

	first, err := h.presence.Join(h.ctx, c.userID)
	if err != nil {
		h.log.Error("presence join failed", "user_id", c.userID, "err", err)
		return
	}
	h.log.Debug("session registered", "user_id", c.userID, "first", first)
	if first {
		h.Broadcast(h.ctx, EventOnlineStatus, OnlineStatus{UserID: c.userID, Online: true})
	}
}

func (h *Hub) detach(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	userID := c.userID
	if userID != 0 {
		if group, ok := h.groups[userID]; ok {
			delete(group, c)
			if len(group) == 0 {
				delete(h.groups, userID)
			}
		}
	}
	h.mu.Unlock()

	if userID == 0 {
		return
	}
	// leave with a fresh context: h.ctx may already be cancelled by Close
	last, err := h.presence.Leave(context.WithoutCancel(h.ctx), userID)
	if err != nil {
		h.log.Error("presence leave failed", "user_id", userID, "err", err)
		return
	}
	if last {
		h.Broadcast(context.WithoutCancel(h.ctx), EventOnlineStatus, OnlineStatus{UserID: userID, Online: false})
	}
}

// relayTyping forwards a typing event to the named recipient only.
func (h *Hub) relayTyping(c *Client, event string, to uint64) {
	if c.userID == 0 || to == 0 {
		return
	}
	h.Notify(h.ctx, to, event, Typing{FromUserID: c.userID})
}
