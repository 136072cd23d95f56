package game

import (
	"sync"
	"time"

	"tankarena/internal/config"
)

// SlotRole identifies one of a room's two fixed player slots.
type SlotRole string

const (
	RoleHost  SlotRole = "host"
	RoleGuest SlotRole = "guest"
)

// ConnectionStatus tracks whether a slot's socket is currently attached.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
)

// PlayerSlot is one occupied room slot.
type PlayerSlot struct {
	Role      SlotRole
	SessionID string
	SocketID  string
	Status    ConnectionStatus
	JoinedAt  time.Time
}

// Room is the per-room actor: slot bookkeeping plus the engine it drives
// once both slots are filled. Exactly two fixed slots, host and guest.
type Room struct {
	mu sync.Mutex

	ID        string
	Status    string // waiting|playing|finished
	CreatedAt time.Time

	host  *PlayerSlot
	guest *PlayerSlot

	Engine   *Engine
	EventLog *EventLog

	cfg config.RoomConfig

	disconnectTimers map[SlotRole]*time.Timer

	// onExpire is invoked when a disconnected slot's reconnect grace
	// window elapses without a reconnect.
	onExpire func(room *Room, role SlotRole)
}

// NewRoom constructs a waiting room with no slots filled yet.
func NewRoom(id string, roomCfg config.RoomConfig, engineCfg config.EngineConfig, stageDescriptor string) *Room {
	return &Room{
		ID:               id,
		Status:           "waiting",
		CreatedAt:        time.Now(),
		Engine:           NewEngine(id, engineCfg, stageDescriptor),
		cfg:              roomCfg,
		disconnectTimers: make(map[SlotRole]*time.Timer),
	}
}

// SetOnExpire registers the callback fired when a disconnect grace
// window elapses (used by RoomManager to finish tearing the room down).
func (r *Room) SetOnExpire(fn func(room *Room, role SlotRole)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// AddHost fills the host slot for a newly-created room.
func (r *Room) AddHost(socketID string) (sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID = generateSessionID()
	r.host = &PlayerSlot{
		Role:      RoleHost,
		SessionID: sessionID,
		SocketID:  socketID,
		Status:    StatusConnected,
		JoinedAt:  time.Now(),
	}
	return sessionID
}

// Join fills the guest slot. Returns ErrRoomFull if
// both slots are already occupied by connected players.
func (r *Room) Join(socketID string) (sessionID string, err *RoomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.guest != nil && r.guest.Status == StatusConnected {
		return "", NewRoomError(ErrRoomFull, "room already has two players")
	}

	sessionID = generateSessionID()
	r.guest = &PlayerSlot{
		Role:      RoleGuest,
		SessionID: sessionID,
		SocketID:  socketID,
		Status:    StatusConnected,
		JoinedAt:  time.Now(),
	}

	if r.host != nil && r.host.Status == StatusConnected {
		r.Status = "playing"
		r.Engine.SpawnPlayerTanks()
		r.Engine.Start()
	}

	return sessionID, nil
}

// Leave removes a slot entirely and stops the engine.
func (r *Room) Leave(role SlotRole) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelTimerLocked(role)
	switch role {
	case RoleHost:
		r.host = nil
	case RoleGuest:
		r.guest = nil
	}

	r.Engine.Stop()
	r.Status = "finished"
}

// Disconnect marks a slot disconnected and starts the reconnect grace
// window. Calling Disconnect on an already
// disconnected or absent slot is a no-op.
func (r *Room) Disconnect(role SlotRole) {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot := r.slotLocked(role)
	if slot == nil || slot.Status == StatusDisconnected {
		return
	}
	slot.Status = StatusDisconnected
	slot.SocketID = ""

	r.cancelTimerLocked(role)
	r.disconnectTimers[role] = time.AfterFunc(r.cfg.ReconnectTimeout, func() {
		r.expireSlot(role)
	})
}

func (r *Room) expireSlot(role SlotRole) {
	r.mu.Lock()
	slot := r.slotLocked(role)
	stillDisconnected := slot != nil && slot.Status == StatusDisconnected
	if stillDisconnected {
		switch role {
		case RoleHost:
			r.host = nil
		case RoleGuest:
			r.guest = nil
		}
		r.Engine.Stop()
		r.Status = "finished"
	}
	onExpire := r.onExpire
	r.mu.Unlock()

	if stillDisconnected && onExpire != nil {
		onExpire(r, role)
	}
}

// Reconnect rebinds a new socket id to the slot owning sessionID.
// ok is false if no slot holds that session.
func (r *Room) Reconnect(sessionID, newSocketID string) (role SlotRole, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, role := range [2]SlotRole{RoleHost, RoleGuest} {
		slot := r.slotLocked(role)
		if slot != nil && slot.SessionID == sessionID {
			slot.SocketID = newSocketID
			slot.Status = StatusConnected
			r.cancelTimerLocked(role)
			return role, true
		}
	}
	return "", false
}

func (r *Room) slotLocked(role SlotRole) *PlayerSlot {
	switch role {
	case RoleHost:
		return r.host
	case RoleGuest:
		return r.guest
	}
	return nil
}

func (r *Room) cancelTimerLocked(role SlotRole) {
	if t, ok := r.disconnectTimers[role]; ok {
		t.Stop()
		delete(r.disconnectTimers, role)
	}
}

// IsEmpty reports whether neither slot is filled.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host == nil && r.guest == nil
}

// HostSlot/GuestSlot return a copy of slot state (nil if unfilled).
func (r *Room) HostSlot() *PlayerSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySlot(r.host)
}

func (r *Room) GuestSlot() *PlayerSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copySlot(r.guest)
}

func copySlot(s *PlayerSlot) *PlayerSlot {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// GetStatus returns the room's current lifecycle status.
func (r *Room) GetStatus() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Status
}
