package live

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 4096
	sendBufferSize = 64
)

// Client is one websocket session.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	authID uint64
	// userID is set once the session registers; guarded by hub.mu.
	userID uint64

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn, authID uint64) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		authID: authID,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// enqueue never blocks; a full buffer drops the frame.
func (c *Client) enqueue(frame []byte) {
	select {
	case <-c.done:
	case c.send <- frame:
	default:
		c.hub.log.Warn("live send buffer full, dropping frame", "user_id", c.authID)
	}
}

func (c *Client) sendEvent(event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		return
	}
	c.enqueue(frame)
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("live read failed", "user_id", c.authID, "err", err)
			}
			return
		}
		c.handle(data)
	}
}

func (c *Client) handle(data []byte) {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		c.sendEvent(EventError, map[string]string{"message": "malformed frame"})
		return
	}

	switch in.Event {
	case EventRegister:
		userID, err := decodeRegister(in.Data)
		if err != nil {
			c.sendEvent(EventError, map[string]string{"message": "invalid register payload"})
			return
		}
		c.hub.register(c, userID)

	case EventTypingStart, EventTypingStop:
		var p typingPayload
		if err := json.Unmarshal(in.Data, &p); err != nil {
			return
		}
		c.hub.mu.RLock()
		registered := c.userID != 0
		c.hub.mu.RUnlock()
		if registered {
			c.hub.relayTyping(c, in.Event, uint64(p.ToUserID))
		}

	default:
		c.hub.log.Debug("ignoring live event", "event", in.Event)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
