package devstub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidshare/vidshare/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans broadcast frames out to topic subscribers and interprets the
// watch-party control destinations. It is the stand-in for the production
// broker plus its watch-party controller.
type Hub struct {
	mu     sync.Mutex
	topics map[string]map[*wsClient]bool
	rooms  map[string]*roomState
}

type roomState struct {
	ownerID string
	members map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]map[*wsClient]bool),
		rooms:  make(map[string]*roomState),
	}
}

// wsClient is one websocket connection with its outbound queue.
type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	username string

	closeOnce sync.Once

	mu     sync.Mutex
	topics map[string]bool
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() { close(c.send) })
}

// ServeWS upgrades the request and runs the connection's pumps. username
// labels the connection's membership events.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, username string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("devstub: websocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 64),
		username: username,
		topics:   make(map[string]bool),
	}
	go client.writePump()
	go client.readPump()
}

// RegisterRoom records a room's owner so leave and start semantics can tell
// the owner from members.
func (h *Hub) RegisterRoom(roomID, ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = &roomState{ownerID: ownerID, members: make(map[string]bool)}
	}
}

// RoomOwner returns the owner of a registered room.
func (h *Hub) RoomOwner(roomID string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok {
		return "", false
	}
	return room.ownerID, true
}

// Broadcast publishes body as a MESSAGE frame to every subscriber of topic.
func (h *Hub) Broadcast(topic string, body any) {
	raw, err := json.Marshal(body)
	if err != nil {
		slog.Error("devstub: marshal broadcast body", "topic", topic, "error", err)
		return
	}
	frame, err := json.Marshal(realtime.Frame{
		Command:     realtime.CommandMessage,
		Destination: topic,
		Body:        raw,
	})
	if err != nil {
		slog.Error("devstub: marshal broadcast frame", "topic", topic, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.topics[topic] {
		select {
		case client.send <- frame:
		default:
			// slow consumer; drop the connection rather than block the hub
			client.closeSend()
			h.dropLocked(client)
		}
	}
}

func (h *Hub) subscribe(client *wsClient, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*wsClient]bool)
	}
	h.topics[topic][client] = true
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(client)
}

func (h *Hub) dropLocked(client *wsClient) {
	for topic, subs := range h.topics {
		if subs[client] {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.topics, topic)
			}
		}
	}
}

type controlBody struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}

type roomEvent struct {
	EventType string `json:"eventType"`
	Username  string `json:"username,omitempty"`
	VideoID   int64  `json:"videoId,omitempty"`
}

// handleSend routes an application SEND frame to its destination handler.
func (h *Hub) handleSend(client *wsClient, frame realtime.Frame) {
	switch {
	case frame.Destination == "/app/watchparty.createRoom":
		var body controlBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return
		}
		h.RegisterRoom(body.RoomID, body.UserID)

	case frame.Destination == "/app/watchparty.join":
		var body controlBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return
		}
		h.mu.Lock()
		if room, ok := h.rooms[body.RoomID]; ok {
			room.members[body.UserID] = true
		}
		h.mu.Unlock()
		h.Broadcast(roomTopic(body.RoomID), roomEvent{EventType: "USER_JOINED", Username: client.displayName(body.UserID)})

	case frame.Destination == "/app/watchparty.leave":
		var body controlBody
		if err := json.Unmarshal(frame.Body, &body); err != nil {
			return
		}
		h.mu.Lock()
		room, ok := h.rooms[body.RoomID]
		ownerLeft := ok && room.ownerID == body.UserID
		if ownerLeft {
			delete(h.rooms, body.RoomID)
		} else if ok {
			delete(room.members, body.UserID)
		}
		h.mu.Unlock()
		if ownerLeft {
			h.Broadcast(roomTopic(body.RoomID), roomEvent{EventType: "ROOM_CLOSED"})
		} else {
			h.Broadcast(roomTopic(body.RoomID), roomEvent{EventType: "USER_LEFT", Username: client.displayName(body.UserID)})
		}

	case strings.HasPrefix(frame.Destination, "/app/chat/"):
		videoID := strings.TrimPrefix(frame.Destination, "/app/chat/")
		h.Broadcast("/topic/video/"+videoID, json.RawMessage(frame.Body))

	default:
		slog.Debug("devstub: frame for unknown destination", "destination", frame.Destination)
	}
}

func roomTopic(roomID string) string {
	return fmt.Sprintf("/topic/watchparty/%s", roomID)
}

func (c *wsClient) displayName(userID string) string {
	if c.username != "" {
		return c.username
	}
	return userID
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		c.closeSend()
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("devstub: websocket read", "error", err)
			}
			return
		}
		var frame realtime.Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendFrame(realtime.Frame{Command: realtime.CommandError, Body: json.RawMessage(`"malformed frame"`)})
			continue
		}

		switch frame.Command {
		case realtime.CommandSubscribe:
			c.hub.subscribe(c, frame.Destination)
			c.mu.Lock()
			c.topics[frame.Destination] = true
			c.mu.Unlock()
			c.sendFrame(realtime.Frame{Command: realtime.CommandConnected, Destination: frame.Destination})
		case realtime.CommandSend:
			c.hub.handleSend(c, frame)
		default:
			slog.Debug("devstub: ignoring frame", "command", frame.Command)
		}
	}
}

func (c *wsClient) sendFrame(frame realtime.Frame) {
	raw, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
	}
}

func (c *wsClient) writePump() {
	defer func() { _ = c.conn.Close() }()
	for raw := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
