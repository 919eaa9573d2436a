package socket

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devforge-org/devforge-backend/internal/eventdata"
	"github.com/devforge-org/devforge-backend/internal/logger"
)

func newTestClient(hub *Hub, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Hub:      hub,
		Log:      logger.NewNop(),
		Outbound: make(chan Message, 4),
	}
}

func TestBroadcastReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(logger.NewNop())
	alice, bob := uuid.New(), uuid.New()
	ca, cb := newTestClient(hub, alice), newTestClient(hub, bob)
	hub.Subscribe(ca, []string{UserChannel(alice)})
	hub.Subscribe(cb, []string{UserChannel(bob)})

	hub.Emit(context.Background(), eventdata.Event{Channel: UserChannel(alice), Type: eventdata.ConversationUpdated, Data: "x"})

	require.Len(t, ca.Outbound, 1)
	assert.Len(t, cb.Outbound, 0)
	msg := <-ca.Outbound
	assert.Equal(t, eventdata.ConversationUpdated, msg.Type)
}

func TestCanJoin(t *testing.T) {
	hub := NewHub(logger.NewNop())
	uid := uuid.New()
	c := newTestClient(hub, uid)
	assert.True(t, c.CanJoin(UserChannel(uid)))
	assert.True(t, c.CanJoin(UserChannel(uid)+":projects"))
	assert.False(t, c.CanJoin(UserChannel(uuid.New())))
	assert.False(t, c.CanJoin("global"))
}

func TestHandleInboundRejectsForeignChannel(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := newTestClient(hub, uuid.New())
	other := UserChannel(uuid.New())

	c.handleInbound(InboundMessage{Action: "subscribe", Channel: other})
	assert.Equal(t, 0, hub.Subscribers(other))
	require.Len(t, c.Outbound, 1)
	assert.Equal(t, "error", (<-c.Outbound).Type)

	own := UserChannel(c.UserID) + ":files"
	c.handleInbound(InboundMessage{Action: "subscribe", Channel: own})
	assert.Equal(t, 1, hub.Subscribers(own))

	c.handleInbound(InboundMessage{Action: "unsubscribe", Channel: own})
	assert.Equal(t, 0, hub.Subscribers(own))
}

func TestUnsubscribeAll(t *testing.T) {
	hub := NewHub(logger.NewNop())
	c := newTestClient(hub, uuid.New())
	hub.Subscribe(c, []string{"a", "b"})
	hub.Unsubscribe(c)
	assert.Equal(t, 0, hub.Subscribers("a"))
	assert.Equal(t, 0, hub.Subscribers("b"))
}

func TestPubSubCodec(t *testing.T) {
	raw, err := encodePubSubMessage(Message{Channel: "user:1", Type: "t", Data: map[string]interface{}{"k": "v"}})
	require.NoError(t, err)
	msg, err := decodePubSubMessage(raw)
	require.NoError(t, err)
	assert.Equal(t, "user:1", msg.Channel)
	_, err = decodePubSubMessage("{")
	assert.Error(t, err)
}
