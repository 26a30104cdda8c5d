package infrastructure

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"project_citabot/internal/interfaces"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
)

// Connection wraps a websocket and serialises outbound writes through a
// buffered channel.
type Connection struct {
	ID           string
	SubscriberID string
	Room         string

	ws    *websocket.Conn
	send  chan []byte
	once  sync.Once
	close chan struct{}
}

func NewConnection(room, subscriberID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:           uuid.NewString(),
		SubscriberID: subscriberID,
		Room:         room,
		ws:           ws,
		send:         make(chan []byte, 128),
		close:        make(chan struct{}),
	}
}

// Send enqueues payload. A slow client whose buffer is full is disconnected.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.close:
		return errors.New("connection closed")
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return errors.New("connection buffer exceeded")
	}
}

// Close terminates the connection and stops the write loop.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.close)
		deadline := time.Now().Add(wsWriteWait)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.close:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}

// Hub fans events out to websocket subscribers grouped by room. Each
// subscriber keeps at most one socket per room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Connection // room -> subscriberID -> connection
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]*Connection)}
}

var _ interfaces.Broadcaster = (*Hub)(nil)

// Attach registers conn and starts its write loop. A previous socket of the
// same subscriber in the room is closed.
func (h *Hub) Attach(conn *Connection) {
	var previous *Connection

	h.mu.Lock()
	room := h.rooms[conn.Room]
	if room == nil {
		room = make(map[string]*Connection)
		h.rooms[conn.Room] = room
	}
	previous = room[conn.SubscriberID]
	room[conn.SubscriberID] = conn
	h.mu.Unlock()

	go conn.writeLoop()

	if previous != nil {
		previous.Close(4001, "session replaced")
	}
}

// Detach removes conn if it is still the subscriber's current socket.
func (h *Hub) Detach(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[conn.Room]
	if room == nil {
		return
	}
	if current := room[conn.SubscriberID]; current != nil && current.ID == conn.ID {
		delete(room, conn.SubscriberID)
	}
	if len(room) == 0 {
		delete(h.rooms, conn.Room)
	}
}

// Serve attaches conn and reads until the client goes away. Inbound frames
// are ignored apart from keeping the connection alive.
func (h *Hub) Serve(conn *Connection) {
	h.Attach(conn)
	defer func() {
		h.Detach(conn)
		conn.Close(websocket.CloseNormalClosure, "session closed")
	}()

	conn.ws.SetReadLimit(1 << 16)
	_ = conn.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	if payload, err := json.Marshal(map[string]string{"type": "connected", "room": conn.Room}); err == nil {
		_ = conn.Send(payload)
	}

	for {
		if _, _, err := conn.ws.ReadMessage(); err != nil {
			return
		}
		_ = conn.ws.SetReadDeadline(time.Now().Add(wsPongWait))
	}
}

// Publish marshals event and delivers it to every socket in room. It
// returns the number of sockets reached.
func (h *Hub) Publish(room string, event any) int {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("room", room).Msg("encode realtime event")
		return 0
	}

	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.rooms[room]))
	for _, conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(payload); err == nil {
			delivered++
		}
	}
	return delivered
}

// Subscribers returns the number of sockets in room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close terminates all tracked connections.
func (h *Hub) Close() {
	h.mu.Lock()
	var conns []*Connection
	for _, room := range h.rooms {
		for _, conn := range room {
			conns = append(conns, conn)
		}
	}
	h.rooms = make(map[string]map[string]*Connection)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
