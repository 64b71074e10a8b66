package game

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/partyline/soundclash/internal/v1/catalog"
	"github.com/partyline/soundclash/internal/v1/config"
	"github.com/partyline/soundclash/internal/v1/idalloc"
	"github.com/partyline/soundclash/internal/v1/logging"
	"github.com/partyline/soundclash/internal/v1/metrics"
	"github.com/partyline/soundclash/internal/v1/ratelimit"
)

// pendingRoomCode is the :roomCode path sentinel a client uses to connect
// without yet committing to a room. It must then send createRoom, joinRoom,
// or reconnectToRoom as its first event.
const pendingRoomCode = "_"

// Hub is the process-wide registry of live rooms. It owns WebSocket upgrade,
// origin checking, and room lifecycle (creation on demand, cleanup once
// empty). Identity is query-parameter based; this game has no external
// authentication surface.
type Hub struct {
	mu    sync.Mutex
	rooms map[RoomCode]*Room

	catalog        *catalog.Catalog
	rateLimiter    *ratelimit.RateLimiter
	graceSeconds   int
	voteSeconds    int
	allowedOrigins []string
}

// NewHub wires the room registry to its shared dependencies.
func NewHub(cfg *config.Config, cat *catalog.Catalog, rl *ratelimit.RateLimiter) *Hub {
	return &Hub{
		rooms:          make(map[RoomCode]*Room),
		catalog:        cat,
		rateLimiter:    rl,
		graceSeconds:   cfg.ReconnectGraceSeconds,
		voteSeconds:    cfg.ReconnectVoteSeconds,
		allowedOrigins: parseAllowedOrigins(cfg.AllowedOrigins),
	}
}

func parseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"http://localhost:3000"}
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients (tests, native apps)
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}
	return false
}

func newUpgrader(h *Hub) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: h.checkOrigin,
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}
}

// ServeWs upgrades the connection, optionally binds it to the room named by
// the :roomCode path parameter and the name/color/emoji/viewer query
// parameters, and starts the client's read/write goroutines. A roomCode of
// "_" defers binding to the first inbound WebSocket event.
func (h *Hub) ServeWs(c *gin.Context) {
	up := newUpgrader(h)
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade websocket connection", zap.Error(err))
		return
	}

	client := newClient(conn, h)
	metrics.IncConnection()

	code := RoomCode(strings.ToUpper(c.Param("roomCode")))
	isViewer := c.Query("viewer") == "true"
	displayName := c.Query("name")
	colorHint := c.Query("color")
	emojiHint := c.Query("emoji")

	go client.writePump()
	go client.readPump()

	if string(code) == "" || strings.EqualFold(string(code), pendingRoomCode) {
		return // client must send createRoom/joinRoom/reconnectToRoom itself
	}

	if isViewer {
		h.joinAsViewer(code, client)
		return
	}
	h.joinAsParticipant(code, client, displayName, colorHint, emojiHint)
}

func (h *Hub) lookupRoom(code RoomCode) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[code]
}

// createRoom mints a fresh room code and registers an empty room for it.
func (h *Hub) createRoom() *Room {
	h.mu.Lock()
	defer h.mu.Unlock()

	var code RoomCode
	for {
		candidate := RoomCode(idalloc.NewRoomCode())
		if _, exists := h.rooms[candidate]; !exists {
			code = candidate
			break
		}
	}

	room := NewRoom(code, h.catalog, h.graceSeconds, h.voteSeconds, h.removeRoom)
	h.rooms[code] = room
	metrics.ActiveRooms.Inc()
	go room.Run()
	return room
}

func (h *Hub) removeRoom(code RoomCode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, code)
	metrics.ActiveRooms.Dec()
	metrics.RoomParticipants.DeleteLabelValues(string(code))
}

func (h *Hub) joinAsParticipant(code RoomCode, client *Client, displayName, colorHint, emojiHint string) {
	room := h.lookupRoom(code)
	if room == nil {
		client.Send(EventError, ErrorPayload{Message: "room not found"})
		return
	}
	id := ParticipantID(idalloc.NewRoomCode() + "-" + displayName)
	room.Post(func() {
		p, err := room.AddParticipant(id, displayName, colorHint, emojiHint, client)
		if err != nil {
			client.Send(EventError, ErrorPayload{Message: err.Error()})
			return
		}
		client.bind(room, p.ID, false)
		client.Send(EventRoomJoined, room.Snapshot())
	})
}

func (h *Hub) joinAsViewer(code RoomCode, client *Client) {
	room := h.lookupRoom(code)
	if room == nil {
		client.Send(EventError, ErrorPayload{Message: "room not found"})
		return
	}
	viewerID := idalloc.NewRoomCode()
	room.Post(func() {
		room.AddViewer(viewerID, client)
		client.bind(room, ParticipantID(viewerID), true)
		client.Send(EventRoomJoined, room.Snapshot())
	})
}

// handleCreateRoom services an inbound createRoom event on an unbound client.
func (h *Hub) handleCreateRoom(client *Client, displayName, colorHint, emojiHint string) {
	room := h.createRoom()
	id := ParticipantID(string(room.Code) + "-" + displayName)
	room.Post(func() {
		p, err := room.AddParticipant(id, displayName, colorHint, emojiHint, client)
		if err != nil {
			client.Send(EventError, ErrorPayload{Message: err.Error()})
			return
		}
		client.bind(room, p.ID, false)
		client.Send(EventRoomCreated, map[string]any{"code": room.Code})
		client.Send(EventRoomJoined, room.Snapshot())
	})
}

func (h *Hub) handleJoinRoom(client *Client, code RoomCode, displayName, colorHint, emojiHint string, isViewer bool) {
	if isViewer {
		h.joinAsViewer(code, client)
		return
	}
	h.joinAsParticipant(code, client, displayName, colorHint, emojiHint)
}

func (h *Hub) handleReconnectToRoom(client *Client, code RoomCode, displayName string, originalID ParticipantID) {
	room := h.lookupRoom(code)
	if room == nil {
		client.Send(EventError, ErrorPayload{Message: "room not found"})
		return
	}
	room.Post(func() {
		p, err := room.Reconnect(displayName, originalID)
		if err != nil {
			client.Send(EventError, ErrorPayload{Message: err.Error()})
			return
		}
		room.BindParticipantClient(p.ID, client)
		client.bind(room, p.ID, false)
		client.Send(EventRoomJoined, room.Snapshot())
	})
}
