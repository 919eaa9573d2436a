package socket

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

// Message is what travels over the wire and through redis.
type Message = eventdata.Event

type Hub struct {
	log      *logger.Logger
	mu       sync.RWMutex
	channels map[string]map[uuid.UUID]*Client

	redisPubSub *RedisPubSub
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:      log.With("component", "Hub"),
		channels: make(map[string]map[uuid.UUID]*Client),
	}
}

func (h *Hub) SetRedisPubSub(rp *RedisPubSub) {
	h.redisPubSub = rp
}

func (h *Hub) Subscribe(client *Client, channels []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range channels {
		if h.channels[ch] == nil {
			h.channels[ch] = make(map[uuid.UUID]*Client)
		}
		h.channels[ch][client.ID] = client
	}
	h.log.Debug("Client subscribed", "client", client.ID, "channels", channels)
}

// Unsubscribe drops the client from every channel.
func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch, clientsMap := range h.channels {
		if _, ok := clientsMap[client.ID]; ok {
			delete(clientsMap, client.ID)
			if len(clientsMap) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	h.log.Debug("Client unsubscribed from all channels", "client", client.ID)
}

func (h *Hub) UnsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clientsMap, ok := h.channels[channel]; ok {
		delete(clientsMap, client.ID)
		if len(clientsMap) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Subscribers counts the clients listening on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) localBroadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clientsMap, ok := h.channels[msg.Channel]
	if !ok {
		return
	}
	for _, client := range clientsMap {
		select {
		case client.Outbound <- msg:
		default:
			h.log.Warn("Dropping message to client; outbound buffer full", "client", client.ID, "channel", msg.Channel)
		}
	}
}

// BroadcastGlobal delivers locally and, with redis configured, publishes so
// other nodes deliver to their own clients.
func (h *Hub) BroadcastGlobal(ctx context.Context, msg Message) {
	if h.redisPubSub != nil {
		// the subscriber loop delivers our own publication back to us
		err := h.redisPubSub.Publish(ctx, msg)
		if err == nil {
			return
		}
		h.log.Warn("Failed to publish to Redis, delivering locally only", "error", err)
	}
	h.localBroadcast(msg)
}

// Emit broadcasts queued request events.
func (h *Hub) Emit(ctx context.Context, events ...eventdata.Event) {
	for _, ev := range events {
		h.BroadcastGlobal(ctx, ev)
	}
}
