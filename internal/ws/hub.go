package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// AllRoom carries every event.
const AllRoom = "*"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Msg is a message sent to clients.
type Msg struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data any    `json:"data"`
}

// Hub manages per-collection WebSocket subscriptions. A connection may join
// any number of rooms; AllRoom receives everything.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*conn]bool
	allConn map[*conn]bool
	log     *zap.Logger
}

type conn struct {
	ws    *websocket.Conn
	send  chan []byte
	hub   *Hub
	rooms map[string]bool
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:   make(map[string]map[*conn]bool),
		allConn: make(map[*conn]bool),
		log:     log.Named("ws"),
	}
}

// RoomKey normalizes a collection address so any hex casing lands in the
// same room.
func RoomKey(room string) string {
	if room == AllRoom || !common.IsHexAddress(room) {
		return room
	}
	return common.HexToAddress(room).Hex()
}

// Publish sends a message to all subscribers of a room. Slow clients drop
// messages rather than block the publisher.
func (h *Hub) Publish(room, msgType string, data any) {
	b, err := json.Marshal(Msg{Type: msgType, Room: room, Data: data})
	if err != nil {
		h.log.Warn("marshal failed", zap.String("type", msgType), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		select {
		case c.send <- b:
		default:
		}
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[RoomKey(room)])
}

// HandleWS upgrades the request. Rooms named in ?room= are joined right away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	c := &conn{
		ws:    wsConn,
		send:  make(chan []byte, 64),
		hub:   h,
		rooms: make(map[string]bool),
	}
	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()
	for _, room := range r.URL.Query()["room"] {
		h.subscribe(c, room)
	}

	go c.writePump()
	go c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		// {"action":"subscribe","room":"0x..."}
		var sub struct {
			Action string `json:"action"`
			Room   string `json:"room"`
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.hub.subscribe(c, sub.Room)
		case "unsubscribe":
			c.hub.unsubscribe(c, sub.Room)
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) subscribe(c *conn, room string) {
	room = RoomKey(room)
	if room == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.allConn[c] {
		return
	}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*conn]bool)
		h.rooms[room] = set
	}
	set[c] = true
	c.rooms[room] = true
}

func (h *Hub) unsubscribe(c *conn, room string) {
	room = RoomKey(room)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

func (h *Hub) leaveLocked(c *conn, room string) {
	if set, ok := h.rooms[room]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.allConn[c] {
		return
	}
	delete(h.allConn, c)
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
}
