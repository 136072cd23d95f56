package game

import (
	"crypto/rand"
	"sync"
	"time"

	"tankarena/internal/config"
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RoomManager is the registry of live rooms: creation, join routing,
// code generation, and garbage collection of finished/empty rooms.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	roomCfg   config.RoomConfig
	engineCfg config.EngineConfig
	stage     string

	eventLogPath string

	onSlotExpiredExternal func(room *Room, role SlotRole)
}

// NewRoomManager constructs an empty registry.
func NewRoomManager(roomCfg config.RoomConfig, engineCfg config.EngineConfig, stageDescriptor, eventLogPath string) *RoomManager {
	if stageDescriptor == "" {
		stageDescriptor = DefaultStage
	}
	return &RoomManager{
		rooms:        make(map[string]*Room),
		roomCfg:      roomCfg,
		engineCfg:    engineCfg,
		stage:        stageDescriptor,
		eventLogPath: eventLogPath,
	}
}

// CreateRoom allocates a fresh room code, registers the host slot, and
// returns {roomId, sessionId}.
func (m *RoomManager) CreateRoom(hostSocketID string) (roomID, sessionID string, err *RoomError) {
	m.mu.Lock()
	if len(m.rooms) >= m.roomCfg.MaxConcurrentRoom {
		m.mu.Unlock()
		return "", "", NewRoomError(ErrServerError, "server has reached its concurrent room limit")
	}

	code := m.generateRoomCodeLocked()
	room := NewRoom(code, m.roomCfg, m.engineCfg, m.stage)
	if m.eventLogPath != "" {
		el := NewEventLog()
		if startErr := el.Start(m.eventLogPath); startErr == nil {
			room.EventLog = el
			room.Engine.SetEventLog(el)
		}
	}
	room.SetOnExpire(m.onSlotExpired)
	m.rooms[code] = room
	m.mu.Unlock()

	sessionID = room.AddHost(hostSocketID)
	return code, sessionID, nil
}

// JoinRoom binds a socket to the guest slot of an existing room.
func (m *RoomManager) JoinRoom(roomID, guestSocketID string) (sessionID string, err *RoomError) {
	room := m.GetRoom(roomID)
	if room == nil {
		return "", NewRoomError(ErrRoomNotFound, "no room with that code")
	}
	return room.Join(guestSocketID)
}

// GetRoom looks up a room by code.
func (m *RoomManager) GetRoom(roomID string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[roomID]
}

// LeaveRoom tears down the given slot's room entirely.
func (m *RoomManager) LeaveRoom(roomID string, role SlotRole) {
	room := m.GetRoom(roomID)
	if room == nil {
		return
	}
	room.Leave(role)
	m.removeRoom(roomID)
}

// DisconnectSlot marks a slot disconnected and starts its grace window.
func (m *RoomManager) DisconnectSlot(roomID string, role SlotRole) {
	if room := m.GetRoom(roomID); room != nil {
		room.Disconnect(role)
	}
}

// Reconnect finds the room (if any) owning sessionID across all rooms
// and rebinds the new socket.
func (m *RoomManager) Reconnect(sessionID, newSocketID string) (room *Room, role SlotRole, ok bool) {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	for _, r := range rooms {
		if role, ok := r.Reconnect(sessionID, newSocketID); ok {
			return r, role, true
		}
	}
	return nil, "", false
}

// OnSlotExpired registers a callback invoked after a disconnected slot's
// reconnect grace window elapses and the room has been evicted from the
// registry. The transport layer uses this to notify the surviving peer
// and tear down the room's broadcast loop.
func (m *RoomManager) OnSlotExpired(fn func(room *Room, role SlotRole)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSlotExpiredExternal = fn
}

// onSlotExpired runs when a room's disconnect grace window elapses
// without a reconnect; the room is already finished by Room itself, so
// this evicts it from the registry and forwards the event to whatever
// was registered via OnSlotExpired.
func (m *RoomManager) onSlotExpired(room *Room, role SlotRole) {
	m.removeRoom(room.ID)

	m.mu.RLock()
	fn := m.onSlotExpiredExternal
	m.mu.RUnlock()
	if fn != nil {
		fn(room, role)
	}
}

func (m *RoomManager) removeRoom(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		if room.EventLog != nil {
			room.EventLog.Stop()
		}
		delete(m.rooms, roomID)
	}
}

// CleanupFinishedRooms removes rooms that are empty or finished; meant
// to run on a periodic ticker from the server's lifecycle goroutine.
func (m *RoomManager) CleanupFinishedRooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, room := range m.rooms {
		if room.IsEmpty() || room.GetStatus() == "finished" {
			if room.EventLog != nil {
				room.EventLog.Stop()
			}
			delete(m.rooms, id)
			removed++
		}
	}
	return removed
}

// RunCleanupLoop periodically calls CleanupFinishedRooms until stopChan
// is closed.
func (m *RoomManager) RunCleanupLoop(interval time.Duration, stopChan <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			m.CleanupFinishedRooms()
		}
	}
}

// AllRooms returns a snapshot slice of every currently registered room,
// used by the metrics sampler to aggregate per-room event-log stats.
func (m *RoomManager) AllRooms() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// Stats reports registry-wide counts for the health endpoint.
type Stats struct {
	RoomCount   int
	PlayerCount int
}

// GetStats returns aggregate counts across all live rooms.
func (m *RoomManager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{RoomCount: len(m.rooms)}
	for _, room := range m.rooms {
		if room.HostSlot() != nil {
			stats.PlayerCount++
		}
		if room.GuestSlot() != nil {
			stats.PlayerCount++
		}
	}
	return stats
}

// generateRoomCodeLocked produces a 6-char uppercase alphanumeric code,
// retrying on collision. Caller must hold m.mu.
func (m *RoomManager) generateRoomCodeLocked() string {
	for {
		code := randomRoomCode(m.roomCfg.CodeLength)
		if _, exists := m.rooms[code]; !exists {
			return code
		}
	}
}

func randomRoomCode(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	out := make([]byte, length)
	for i, v := range b {
		out[i] = roomCodeAlphabet[int(v)%len(roomCodeAlphabet)]
	}
	return string(out)
}
