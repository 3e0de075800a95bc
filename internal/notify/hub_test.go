package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func detachedClient(h *Hub, sub Subscriber, buffer int) *Client {
	c := &Client{hub: h, sub: sub, send: make(chan []byte, buffer), logger: testLogger()}
	h.register(c)
	return c
}

func decode(t *testing.T, payload []byte) serverMessage {
	t.Helper()
	var msg serverMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestHub_PublishFanout(t *testing.T) {
	h := NewHub(testLogger())
	admin := detachedClient(h, Subscriber{UserID: "a", IsAdmin: true}, 4)
	member := detachedClient(h, Subscriber{UserID: "m"}, 4)
	outsider := detachedClient(h, Subscriber{UserID: "o"}, 4)

	require.NoError(t, h.join(admin, AdminChannel))
	require.NoError(t, h.join(member, RoomChannel("r1")))
	require.NoError(t, h.join(outsider, GlobalChannel))

	event := Event{Type: EventBookingCreated, BookingID: "b1", RoomID: "r1"}
	require.NoError(t, h.Publish(context.Background(), RoomChannel("r1"), event))

	require.Len(t, member.send, 1)
	assert.Empty(t, admin.send)
	assert.Empty(t, outsider.send)

	msg := decode(t, <-member.send)
	assert.Equal(t, messageEvent, msg.Type)
	assert.Equal(t, "room:r1", msg.Channel)
	require.NotNil(t, msg.Event)
	assert.Equal(t, "b1", msg.Event.BookingID)
}

func TestHub_FullQueueDropsEvent(t *testing.T) {
	h := NewHub(testLogger())
	slow := detachedClient(h, Subscriber{UserID: "s"}, 1)
	require.NoError(t, h.join(slow, GlobalChannel))

	for i := 0; i < 3; i++ {
		require.NoError(t, h.Publish(context.Background(), GlobalChannel, Event{Type: EventBookingUpdated}))
	}
	assert.Len(t, slow.send, 1)
}

func TestHub_JoinRules(t *testing.T) {
	h := NewHub(testLogger())
	user := detachedClient(h, Subscriber{UserID: "u"}, 1)

	assert.ErrorIs(t, h.join(user, AdminChannel), ErrChannelForbidden)
	assert.ErrorIs(t, h.join(user, "lobby"), ErrUnknownChannel)
	assert.ErrorIs(t, h.join(user, "room:"), ErrUnknownChannel)
	assert.NoError(t, h.join(user, RoomChannel("r1")))
	assert.Equal(t, 1, h.Subscribers(RoomChannel("r1")))

	assert.NoError(t, h.leave(user, RoomChannel("r1")))
	assert.Zero(t, h.Subscribers(RoomChannel("r1")))
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	var observed []int
	h := NewHub(testLogger(), WithConnectionObserver(func(active int) { observed = append(observed, active) }))
	c := detachedClient(h, Subscriber{UserID: "u"}, 1)
	require.NoError(t, h.join(c, GlobalChannel))

	h.unregister(c)
	h.unregister(c)

	_, open := <-c.send
	assert.False(t, open)
	assert.Zero(t, h.Connections())
	assert.Zero(t, h.Subscribers(GlobalChannel))
	assert.Equal(t, []int{1, 0}, observed)

	assert.NoError(t, h.Publish(context.Background(), GlobalChannel, Event{}))
}

func TestHub_SetAdmin(t *testing.T) {
	h := NewHub(testLogger())
	first := detachedClient(h, Subscriber{UserID: "a", IsAdmin: true}, 4)
	second := detachedClient(h, Subscriber{UserID: "a", IsAdmin: true}, 4)
	other := detachedClient(h, Subscriber{UserID: "b", IsAdmin: true}, 4)
	for _, c := range []*Client{first, second, other} {
		require.NoError(t, h.join(c, AdminChannel))
	}

	h.SetAdmin("a", false)
	assert.Equal(t, 1, h.Subscribers(AdminChannel))
	assert.ErrorIs(t, h.join(first, AdminChannel), ErrChannelForbidden)

	require.NoError(t, h.Publish(context.Background(), AdminChannel, Event{Type: EventBookingCreated, User: "alice"}))
	assert.Empty(t, first.send)
	assert.Empty(t, second.send)
	assert.Len(t, other.send, 1)

	h.SetAdmin("a", true)
	assert.NoError(t, h.join(first, AdminChannel))
	assert.Equal(t, 2, h.Subscribers(AdminChannel))
}

func TestHub_Disconnect(t *testing.T) {
	h := NewHub(testLogger())
	gone := detachedClient(h, Subscriber{UserID: "gone"}, 1)
	kept := detachedClient(h, Subscriber{UserID: "kept"}, 1)
	require.NoError(t, h.join(gone, GlobalChannel))
	require.NoError(t, h.join(kept, GlobalChannel))

	h.Disconnect("gone")
	h.Disconnect("nobody")

	_, open := <-gone.send
	assert.False(t, open)
	assert.Equal(t, 1, h.Connections())
	assert.Equal(t, 1, h.Subscribers(GlobalChannel))
}

func TestHub_ServeWS(t *testing.T) {
	h := NewHub(testLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = h.ServeWS(w, r, Subscriber{UserID: "u1", Username: "alice"})
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() serverMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, payload, err := conn.ReadMessage()
		require.NoError(t, err)
		return decode(t, payload)
	}

	require.NoError(t, conn.WriteJSON(clientMessage{Action: actionJoin, Channel: "room:r1"}))
	ack := read()
	assert.Equal(t, messageAck, ack.Type)
	assert.Equal(t, "room:r1", ack.Channel)

	require.NoError(t, conn.WriteJSON(clientMessage{Action: actionJoin, Channel: AdminChannel}))
	denied := read()
	assert.Equal(t, messageError, denied.Type)
	assert.Equal(t, "admin role required", denied.Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, messageError, read().Type)

	require.NoError(t, h.Publish(context.Background(), GlobalChannel, Event{Type: EventBookingDeleted, BookingID: "b9"}))
	event := read()
	assert.Equal(t, messageEvent, event.Type)
	assert.Equal(t, GlobalChannel, event.Channel)
	assert.Equal(t, "b9", event.Event.BookingID)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return h.Connections() == 0 }, 2*time.Second, 10*time.Millisecond)
}
