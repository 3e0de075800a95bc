package notify

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

const (
	actionJoin  = "join"
	actionLeave = "leave"

	messageAck   = "ack"
	messageError = "error"
	messageEvent = "event"
)

// clientMessage is sent by browsers to manage channel membership.
type clientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel"`
}

type serverMessage struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Channel string `json:"channel,omitempty"`
	Message string `json:"message,omitempty"`
	Event   *Event `json:"event,omitempty"`
}

// Client is one WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	sub    Subscriber
	send   chan []byte
	logger *slog.Logger
}

func newClient(h *Hub, conn *websocket.Conn, sub Subscriber) *Client {
	return &Client{
		hub:    h,
		conn:   conn,
		sub:    sub,
		send:   make(chan []byte, sendBufferSize),
		logger: h.logger.With("user_id", sub.UserID),
	}
}

// queue hands payload to the write pump without blocking. Must be called
// with the hub lock held so the send channel cannot be closed concurrently.
func (c *Client) queue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) reply(msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to encode reply", "error", err)
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	if !c.queue(payload) {
		c.logger.Warn("reply dropped, send queue full")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !c.write(websocket.TextMessage, payload) {
				return
			}
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, payload []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			c.logger.Warn("websocket write failed", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(serverMessage{Type: messageError, Message: "malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg clientMessage) {
	var err error
	switch msg.Action {
	case actionJoin:
		err = c.hub.join(c, msg.Channel)
	case actionLeave:
		err = c.hub.leave(c, msg.Channel)
	default:
		c.reply(serverMessage{Type: messageError, Action: msg.Action, Message: "unknown action"})
		return
	}

	if err != nil {
		message := "unable to " + msg.Action + " channel"
		switch {
		case errors.Is(err, ErrChannelForbidden):
			message = "admin role required"
		case errors.Is(err, ErrUnknownChannel):
			message = "unknown channel"
		}
		c.reply(serverMessage{Type: messageError, Action: msg.Action, Channel: msg.Channel, Message: message})
		return
	}

	c.logger.Debug("channel membership changed", "action", msg.Action, "channel", msg.Channel)
	c.reply(serverMessage{Type: messageAck, Action: msg.Action, Channel: msg.Channel})
}
