package game

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/partyline/soundclash/internal/v1/idalloc"
	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/metrics"
)

const writeWait = 10 * time.Second

// wsConnection is the subset of *websocket.Conn the client needs, kept as
// an interface so tests can substitute a fake transport.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

type createRoomPayload struct {
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Emoji       string `json:"emoji"`
}

type joinRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
	Emoji       string `json:"emoji"`
	Viewer      bool   `json:"viewer"`
}

type reconnectToRoomPayload struct {
	RoomCode    string `json:"roomCode"`
	DisplayName string `json:"displayName"`
	OriginalID  string `json:"originalId"`
}

// Client is one WebSocket connection, either to a participant or a viewer.
// It implements the sender interface the room package dispatches events
// through. Until bound to a room it accepts only createRoom, joinRoom,
// joinRoomAsViewer, and reconnectToRoom.
type Client struct {
	conn   wsConnection
	hub    *Hub
	connID string
	send   chan []byte

	mu            sync.RWMutex
	room          *Room
	participantID ParticipantID
	isViewer      bool
	bound         bool
}

func newClient(conn wsConnection, hub *Hub) *Client {
	return &Client{
		conn:   conn,
		hub:    hub,
		connID: idalloc.NewRoomCode(),
		send:   make(chan []byte, 256),
	}
}

func (c *Client) bind(room *Room, id ParticipantID, isViewer bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.room = room
	c.participantID = id
	c.isViewer = isViewer
	c.bound = true
}

func (c *Client) snapshot() (room *Room, id ParticipantID, isViewer, bound bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.room, c.participantID, c.isViewer, c.bound
}

// Send implements the sender interface, encoding payload as the envelope's
// JSON payload.
func (c *Client) Send(event string, payload any) {
	env := Envelope{Event: event, Payload: marshalPayload(payload)}
	data, err := json.Marshal(env)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
		logging.Warn(context.Background(), "client send channel full, dropping message", zap.String("event", event))
	}
}

// readPump reads envelopes off the connection and either completes the
// room handshake or dispatches to the bound room's command queue.
func (c *Client) readPump() {
	defer func() {
		room, id, isViewer, bound := c.snapshot()
		if bound && room != nil {
			if isViewer {
				room.Post(func() { room.RemoveViewer(string(id)) })
			} else {
				room.Post(func() { room.HandleDisconnect(id) })
			}
		}
		c.conn.Close()
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			metrics.WebsocketEvents.WithLabelValues("unknown", "malformed").Inc()
			c.Send(EventError, ErrorPayload{Message: "malformed message"})
			continue
		}

		if !c.hub.rateLimiter.Allow(context.Background(), c.connID, env.Event) {
			metrics.WebsocketEvents.WithLabelValues(env.Event, "rate_limited").Inc()
			c.Send(EventError, ErrorPayload{Message: "rate limit exceeded"})
			continue
		}

		room, id, isViewer, bound := c.snapshot()
		if !bound {
			c.handleUnbound(env)
			continue
		}
		room.Post(func() {
			timer := prometheus.NewTimer(metrics.MessageProcessingDuration.WithLabelValues(env.Event))
			if isViewer {
				room.DispatchViewer(c, string(id), env.Event, env.Payload)
			} else {
				room.Dispatch(c, id, env.Event, env.Payload)
			}
			timer.ObserveDuration()
			metrics.WebsocketEvents.WithLabelValues(env.Event, "processed").Inc()
		})
	}
}

// handleUnbound services the one-time handshake for a connection that has
// not yet joined a room.
func (c *Client) handleUnbound(env Envelope) {
	switch env.Event {
	case EventCreateRoom:
		var p createRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Send(EventError, ErrorPayload{Message: "malformed createRoom payload"})
			return
		}
		c.hub.handleCreateRoom(c, p.DisplayName, p.Color, p.Emoji)

	case EventJoinRoom:
		var p joinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Send(EventError, ErrorPayload{Message: "malformed joinRoom payload"})
			return
		}
		c.hub.handleJoinRoom(c, RoomCode(strings.ToUpper(p.RoomCode)), p.DisplayName, p.Color, p.Emoji, p.Viewer)

	case EventJoinRoomAsViewer:
		var p joinRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Send(EventError, ErrorPayload{Message: "malformed joinRoomAsViewer payload"})
			return
		}
		c.hub.joinAsViewer(RoomCode(strings.ToUpper(p.RoomCode)), c)

	case EventReconnectToRoom:
		var p reconnectToRoomPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.Send(EventError, ErrorPayload{Message: "malformed reconnectToRoom payload"})
			return
		}
		c.hub.handleReconnectToRoom(c, RoomCode(strings.ToUpper(p.RoomCode)), p.DisplayName, ParticipantID(p.OriginalID))

	default:
		c.Send(EventError, ErrorPayload{Message: "must join or create a room before sending " + env.Event})
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
