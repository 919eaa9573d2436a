package socket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/devforge-org/devforge-backend/internal/logger"
)

type InboundMessage struct {
	Action  string `json:"action,omitempty"`
	Channel string `json:"channel,omitempty"`
}

const (
	OutboundChanBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// UserChannel is the personal channel every client joins on connect.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

type Client struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Conn     *websocket.Conn
	Hub      *Hub
	Log      *logger.Logger
	cancelFn context.CancelFunc
	Outbound chan Message

	closeOnce sync.Once
}

// NewClient builds a client for userID. cancel stops the sibling pump when
// either loop exits.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID, cancel context.CancelFunc, log *logger.Logger) *Client {
	id := uuid.New()
	return &Client{
		ID:       id,
		UserID:   userID,
		Conn:     conn,
		Hub:      hub,
		Log:      log.With("client", id, "userID", userID),
		cancelFn: cancel,
		Outbound: make(chan Message, OutboundChanBuffer),
	}
}

// CanJoin limits a client to its user channel and sub-channels of it.
func (c *Client) CanJoin(channel string) bool {
	own := UserChannel(c.UserID)
	return channel == own || strings.HasPrefix(channel, own+":")
}

func (c *Client) ReadLoop(ctx context.Context)  { c.readLoop(ctx) }
func (c *Client) WriteLoop(ctx context.Context) { c.writeLoop(ctx) }

func (c *Client) readLoop(ctx context.Context) {
	defer c.close()

	c.Conn.SetReadLimit(1 << 20)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			c.Log.Debug("websocket read error, closing client", "error", err)
			return
		}

		var inbound InboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			c.Log.Debug("failed to unmarshal inbound message", "error", err)
			continue
		}
		c.handleInbound(inbound)
	}
}

func (c *Client) handleInbound(inbound InboundMessage) {
	switch inbound.Action {
	case "subscribe":
		if !c.CanJoin(inbound.Channel) {
			c.Log.Warn("client tried to join a foreign channel", "channel", inbound.Channel)
			c.send(Message{Channel: inbound.Channel, Type: "error", Data: map[string]string{"error": "channel not allowed"}})
			return
		}
		c.Hub.Subscribe(c, []string{inbound.Channel})
	case "unsubscribe":
		if inbound.Channel != "" {
			c.Hub.UnsubscribeFromChannel(c, inbound.Channel)
		}
	default:
		c.Log.Debug("inbound WS message unhandled", "action", inbound.Action)
	}
}

// send queues a direct reply without going through the hub.
func (c *Client) send(msg Message) {
	select {
	case c.Outbound <- msg:
	default:
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-c.Outbound:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.writeJSON(msg); err != nil {
				c.Log.Warn("failed writing JSON", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Log.Debug("ping error, shutting down", "error", err)
				return
			}
		}
	}
}

func (c *Client) writeJSON(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w, err := c.Conn.NextWriter(websocket.TextMessage)
	if err != nil {
		return err
	}
	if _, err = w.Write(payload); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// close runs once from whichever loop exits first. Outbound stays open so a
// concurrent broadcast never sends on a closed channel.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.Log.Debug("closing client connection")
		c.Hub.Unsubscribe(c)
		if c.cancelFn != nil {
			c.cancelFn()
		}
		_ = c.Conn.Close()
	})
}
