package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tankarena/internal/config"
	"tankarena/internal/game"
)

const (
	// MaxWSConnectionsTotal is the total WebSocket connection cap used when
	// LimitsConfig.MaxWSConnTotal is not positive
	MaxWSConnectionsTotal = 500
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")

		if IsAllowedOrigin(origin) {
			return true
		}

		log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
		RecordConnectionRejected("origin")
		return false
	},
}

// wsClient is one connected socket: a connection plus which room slot it
// currently occupies, if any. A socket
// exists before it joins a room and can outlive a room via reconnect, so
// room membership is tracked here rather than on the Room itself.
type wsClient struct {
	conn     *websocket.Conn
	ip       string
	socketID string

	writeMu sync.Mutex

	mu     sync.Mutex
	roomID string
	role   game.SlotRole
	inRoom bool
}

func (c *wsClient) send(event string, data interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(OutboundMessage{Type: event, Data: data}); err != nil {
		log.Printf("⚠️ ws write failed (socket=%s): %v", c.socketID, err)
	}
}

func (c *wsClient) setRoom(roomID string, role game.SlotRole) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = roomID
	c.role = role
	c.inRoom = true
}

func (c *wsClient) clearRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = ""
	c.inRoom = false
}

func (c *wsClient) roomInfo() (roomID string, role game.SlotRole, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.role, c.inRoom
}

// Hub owns the live socket registry and routes every inbound event to the
// room/engine layer: register/unregister bookkeeping, per-IP connection
// limiting via WebSocketRateLimiter, and per-room fan-out instead of a
// single global broadcast channel, since each room has its own
// authoritative Engine and there is no single "game state" to broadcast
// globally.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient

	rooms     *game.RoomManager
	validator *game.InputValidator
	wsLimiter *WebSocketRateLimiter
	maxTotal  int

	broadcastMu sync.Mutex
	broadcasts  map[string]chan struct{}
}

// NewHub constructs a hub bound to the given room registry and input
// validator.
func NewHub(rooms *game.RoomManager, validator *game.InputValidator, limits config.LimitsConfig) *Hub {
	maxTotal := limits.MaxWSConnTotal
	if maxTotal <= 0 {
		maxTotal = MaxWSConnectionsTotal
	}
	return &Hub{
		clients:    make(map[string]*wsClient),
		rooms:      rooms,
		validator:  validator,
		wsLimiter:  NewWebSocketRateLimiter(limits.MaxWSConnPerIP),
		maxTotal:   maxTotal,
		broadcasts: make(map[string]chan struct{}),
	}
}

// ClientCount returns the number of currently registered sockets.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c.socketID] = c
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("📱 Client connected from %s (%d total)", c.ip, count)
	UpdateWSConnections(count)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c.socketID)
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("📱 Client disconnected (%d remaining)", count)
	UpdateWSConnections(count)
	h.wsLimiter.Release(c.ip)
}

func (h *Hub) clientBySocket(socketID string) *wsClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[socketID]
}

// HandleWebSocket upgrades the request and runs the client's read loop
// until disconnect. Total and per-IP connection caps are checked before
// upgrade.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	if h.ClientCount() >= h.maxTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached")
		RecordConnectionRejected("ws_total_limit")
		http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		return
	}
	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		h.wsLimiter.Release(ip)
		return
	}

	client := &wsClient{conn: conn, ip: ip, socketID: uuid.NewString()}
	h.register(client)
	defer h.handleDisconnect(client)

	h.readLoop(client)
}

func (h *Hub) readLoop(c *wsClient) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages()

		var msg InboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "malformed message envelope"})
			continue
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) dispatch(c *wsClient, msg InboundMessage) {
	switch msg.Type {
	case EventCreateRoom:
		h.handleCreateRoom(c)
	case EventJoinRoom:
		h.handleJoinRoom(c, msg.Data)
	case EventLeaveRoom:
		h.handleLeaveRoom(c)
	case EventReconnect:
		h.handleReconnect(c, msg.Data)
	case EventPlayerInput:
		h.handlePlayerInput(c, msg.Data)
	case EventPing:
		h.handlePing(c, msg.Data)
	case EventGameOver:
		// Client-reported termination hint only; the engine's own Outcome
		// is authoritative and already broadcast by the room's loop.
	default:
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "unknown event type"})
	}
}

func (h *Hub) handleCreateRoom(c *wsClient) {
	if _, _, inRoom := c.roomInfo(); inRoom {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "already in a room"})
		return
	}

	roomID, sessionID, rerr := h.rooms.CreateRoom(c.socketID)
	if rerr != nil {
		c.send(EventRoomError, RoomErrorPayload{Type: string(rerr.Type), Message: rerr.Message})
		return
	}

	c.setRoom(roomID, game.RoleHost)
	c.send(EventRoomCreated, RoomCreatedPayload{RoomID: roomID, SessionID: sessionID, Role: string(game.RoleHost)})
}

func (h *Hub) handleJoinRoom(c *wsClient, raw json.RawMessage) {
	if _, _, inRoom := c.roomInfo(); inRoom {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "already in a room"})
		return
	}

	var payload JoinRoomPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.RoomID == "" {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "missing roomId"})
		return
	}

	sessionID, rerr := h.rooms.JoinRoom(payload.RoomID, c.socketID)
	if rerr != nil {
		c.send(EventRoomError, RoomErrorPayload{Type: string(rerr.Type), Message: rerr.Message})
		return
	}

	c.setRoom(payload.RoomID, game.RoleGuest)
	c.send(EventRoomJoined, RoomJoinedPayload{RoomID: payload.RoomID, SessionID: sessionID, Role: string(game.RoleGuest)})

	room := h.rooms.GetRoom(payload.RoomID)
	if room == nil {
		return
	}
	h.sendToSlot(room, game.RoleHost, EventPlayerJoined, PlayerJoinedPayload{Role: string(game.RoleGuest)})

	if room.GetStatus() == "playing" {
		h.announceGameStart(room)
		h.startBroadcastLoop(room)
	}
}

func (h *Hub) handleLeaveRoom(c *wsClient) {
	roomID, role, inRoom := c.roomInfo()
	if !inRoom {
		return
	}

	room := h.rooms.GetRoom(roomID)
	if room != nil {
		h.sendToSlot(room, opposite(role), EventPlayerLeft, PlayerJoinedPayload{Role: string(role)})
	}
	h.rooms.LeaveRoom(roomID, role)
	h.stopBroadcastLoop(roomID)
	h.validator.Forget(c.socketID)
	c.clearRoom()
}

// onRoomSlotExpired is registered with RoomManager.OnSlotExpired: once a
// disconnected slot's reconnect grace window elapses, the surviving peer
// is told the opponent was dropped and the room's broadcast loop (if any)
// is torn down immediately rather than waiting for the next poll of
// Engine.GameStatus.
func (h *Hub) onRoomSlotExpired(room *game.Room, role game.SlotRole) {
	h.sendToSlot(room, opposite(role), EventPlayerLeft, PlayerJoinedPayload{Role: string(role)})
	h.stopBroadcastLoop(room.ID)
}

func (h *Hub) handleReconnect(c *wsClient, raw json.RawMessage) {
	var payload ReconnectPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.SessionID == "" {
		c.send(EventReconnectFailed, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "missing sessionId"})
		return
	}

	room, role, ok := h.rooms.Reconnect(payload.SessionID, c.socketID)
	if !ok {
		c.send(EventReconnectFailed, RoomErrorPayload{Type: string(game.ErrRoomNotFound), Message: "no matching session"})
		return
	}

	c.setRoom(room.ID, role)
	c.send(EventReconnectSuccess, ReconnectSuccessPayload{RoomID: room.ID, Role: string(role)})
	h.sendToSlot(room, opposite(role), EventOpponentReconnected, PlayerJoinedPayload{Role: string(role)})
	h.startBroadcastLoop(room)
}

func (h *Hub) handlePlayerInput(c *wsClient, raw json.RawMessage) {
	roomID, role, inRoom := c.roomInfo()
	if !inRoom {
		return
	}
	if !h.validator.Allow(c.socketID) {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "input rate exceeded"})
		return
	}

	var payload PlayerInputPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "malformed player_input"})
		return
	}

	var dirStr string
	hasDir := payload.Direction != nil
	if hasDir {
		dirStr = *payload.Direction
	}
	direction, valid := game.ValidateInputShape(payload.Type, dirStr, hasDir, payload.Timestamp)
	if !valid {
		c.send(EventRoomError, RoomErrorPayload{Type: string(game.ErrInvalidInput), Message: "invalid player_input shape"})
		return
	}

	room := h.rooms.GetRoom(roomID)
	if room == nil {
		return
	}
	switch role {
	case game.RoleHost:
		room.Engine.SetHostInput(direction, hasDir, payload.Moving, payload.Firing)
	case game.RoleGuest:
		room.Engine.SetGuestInput(direction, hasDir, payload.Moving, payload.Firing)
	}
}

func (h *Hub) handlePing(c *wsClient, raw json.RawMessage) {
	var payload PingPayload
	_ = json.Unmarshal(raw, &payload)
	c.send(EventPong, PongPayload{ClientTimestamp: payload.Timestamp, ServerTimestamp: time.Now().UnixMilli()})
}

func (h *Hub) handleDisconnect(c *wsClient) {
	h.unregister(c)
	c.conn.Close()
	h.validator.Forget(c.socketID)

	roomID, role, inRoom := c.roomInfo()
	if !inRoom {
		return
	}
	if room := h.rooms.GetRoom(roomID); room != nil {
		h.sendToSlot(room, opposite(role), EventOpponentDisconnected, PlayerJoinedPayload{Role: string(role)})
	}
	h.rooms.DisconnectSlot(roomID, role)
}

func (h *Hub) announceGameStart(room *game.Room) {
	now := time.Now().UnixMilli()
	h.sendToSlot(room, game.RoleHost, EventGameStart, GameStartPayload{Timestamp: now})
	h.sendToSlot(room, game.RoleGuest, EventGameStart, GameStartPayload{Timestamp: now})

	hx, hy := room.Engine.HostSpawn()
	gx, gy := room.Engine.GuestSpawn()
	init := GameStateInitPayload{
		Seed:           room.Engine.Seed(),
		MapID:          "default",
		HostPosition:   [2]float64{hx, hy},
		GuestPosition:  [2]float64{gx, gy},
		HostTankColor:  "yellow",
		GuestTankColor: "green",
		Timestamp:      now,
	}
	h.sendToSlot(room, game.RoleHost, EventGameStateInit, init)
	h.sendToSlot(room, game.RoleGuest, EventGameStateInit, init)
}

// sendToSlot looks up the socket currently bound to role and sends it an
// event, silently dropping if the slot is empty or disconnected.
func (h *Hub) sendToSlot(room *game.Room, role game.SlotRole, event string, data interface{}) {
	var slot *game.PlayerSlot
	switch role {
	case game.RoleHost:
		slot = room.HostSlot()
	case game.RoleGuest:
		slot = room.GuestSlot()
	}
	if slot == nil || slot.Status != game.StatusConnected {
		return
	}
	if client := h.clientBySocket(slot.SocketID); client != nil {
		client.send(event, data)
	}
}

func opposite(role game.SlotRole) game.SlotRole {
	if role == game.RoleHost {
		return game.RoleGuest
	}
	return game.RoleHost
}

// startBroadcastLoop launches the per-room state_sync fan-out if one isn't
// already running for this room. Idempotent so both JoinRoom and Reconnect
// can call it freely.
func (h *Hub) startBroadcastLoop(room *game.Room) {
	h.broadcastMu.Lock()
	if _, running := h.broadcasts[room.ID]; running {
		h.broadcastMu.Unlock()
		return
	}
	stop := make(chan struct{})
	h.broadcasts[room.ID] = stop
	h.broadcastMu.Unlock()

	go h.runBroadcastLoop(room, stop)
}

// stopBroadcastLoop cancels a room's broadcast loop immediately, if one
// is running. Safe to call when no loop is running or it has already
// exited on its own (e.g. by observing GameStatus == "finished").
func (h *Hub) stopBroadcastLoop(roomID string) {
	h.broadcastMu.Lock()
	defer h.broadcastMu.Unlock()
	if stop, ok := h.broadcasts[roomID]; ok {
		close(stop)
		delete(h.broadcasts, roomID)
	}
}

func (h *Hub) runBroadcastLoop(room *game.Room, stop chan struct{}) {
	defer func() {
		h.broadcastMu.Lock()
		delete(h.broadcasts, room.ID)
		h.broadcastMu.Unlock()
	}()

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			start := time.Now()
			snap := room.Engine.GetSnapshot()
			h.sendToSlot(room, game.RoleHost, EventStateSync, snap)
			h.sendToSlot(room, game.RoleGuest, EventStateSync, snap)
			RecordBroadcast(time.Since(start))

			if room.Engine.GameStatus() == "finished" {
				winner, reason := room.Engine.Outcome()
				payload := GameOverPayload{Winner: winner, Reason: reason, Timestamp: time.Now().UnixMilli()}
				h.sendToSlot(room, game.RoleHost, EventGameOver, payload)
				h.sendToSlot(room, game.RoleGuest, EventGameOver, payload)
				return
			}
		}
	}
}
