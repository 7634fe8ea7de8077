package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const coll = "0x00000000000000000000000000000000000000c1"

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) Msg {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, b, err := c.ReadMessage()
	require.NoError(t, err)
	var m Msg
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestPublishReachesRoom(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	all := dial(t, srv, "?room=*")
	one := dial(t, srv, "")
	require.NoError(t, one.WriteJSON(map[string]string{"action": "subscribe", "room": strings.ToUpper(coll[2:])}))

	require.Eventually(t, func() bool {
		return h.RoomSize(AllRoom) == 1 && h.RoomSize(coll) == 1
	}, 2*time.Second, 10*time.Millisecond)

	room := RoomKey(coll)
	h.Publish(room, "Bid", map[string]int{"amount": 5})
	h.Publish(AllRoom, "Bid", map[string]int{"amount": 5})

	got := read(t, one)
	require.Equal(t, "Bid", got.Type)
	require.Equal(t, room, got.Room)

	got = read(t, all)
	require.Equal(t, AllRoom, got.Room)
}

func TestUnsubscribeAndDisconnect(t *testing.T) {
	h := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	c := dial(t, srv, "?room="+coll)
	require.Eventually(t, func() bool { return h.RoomSize(coll) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.WriteJSON(map[string]string{"action": "unsubscribe", "room": coll}))
	require.Eventually(t, func() bool { return h.RoomSize(coll) == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.WriteJSON(map[string]string{"action": "subscribe", "room": AllRoom}))
	require.Eventually(t, func() bool { return h.RoomSize(AllRoom) == 1 }, 2*time.Second, 10*time.Millisecond)

	c.Close()
	require.Eventually(t, func() bool { return h.RoomSize(AllRoom) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRoomKey(t *testing.T) {
	require.Equal(t, AllRoom, RoomKey(AllRoom))
	require.Equal(t, RoomKey(strings.ToLower(coll)), RoomKey(strings.ToUpper("0x"+coll[2:])))
	require.Equal(t, "lobby", RoomKey("lobby"))
}
