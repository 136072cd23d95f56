package game

import (
	"testing"

	"tankarena/internal/config"
)

func testManager() *RoomManager {
	return NewRoomManager(config.DefaultRoom(), config.DefaultEngine(), "", "")
}

func TestCreateRoomGeneratesUniqueCode(t *testing.T) {
	m := testManager()
	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		roomID, sessionID, err := m.CreateRoom("host-sock")
		if err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
		if len(roomID) != config.DefaultRoom().CodeLength {
			t.Errorf("expected %d-char room code, got %q", config.DefaultRoom().CodeLength, roomID)
		}
		if sessionID == "" {
			t.Error("expected non-empty session id")
		}
		if seen[roomID] {
			t.Fatalf("duplicate room code generated: %s", roomID)
		}
		seen[roomID] = true
	}
}

func TestCreateRoomRejectsOverConcurrentLimit(t *testing.T) {
	roomCfg := config.DefaultRoom()
	roomCfg.MaxConcurrentRoom = 1
	m := NewRoomManager(roomCfg, config.DefaultEngine(), "", "")

	if _, _, err := m.CreateRoom("host-1"); err != nil {
		t.Fatalf("first CreateRoom should succeed: %v", err)
	}
	_, _, err := m.CreateRoom("host-2")
	if err == nil {
		t.Fatal("expected second CreateRoom to fail over the concurrent room cap")
	}
	if err.Type != ErrServerError {
		t.Errorf("expected ErrServerError, got %v", err.Type)
	}
}

func TestJoinRoomUnknownCode(t *testing.T) {
	m := testManager()
	_, err := m.JoinRoom("NOSUCH", "guest-sock")
	if err == nil || err.Type != ErrRoomNotFound {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestReconnectAcrossRooms(t *testing.T) {
	m := testManager()
	roomID, sessionID, _ := m.CreateRoom("host-sock")
	m.JoinRoom(roomID, "guest-sock")
	defer m.GetRoom(roomID).Engine.Stop()

	m.DisconnectSlot(roomID, RoleHost)

	room, role, ok := m.Reconnect(sessionID, "host-sock-2")
	if !ok {
		t.Fatal("expected reconnect to succeed")
	}
	if room.ID != roomID || role != RoleHost {
		t.Fatalf("unexpected reconnect result room=%s role=%v", room.ID, role)
	}
}

func TestLeaveRoomRemovesFromRegistry(t *testing.T) {
	m := testManager()
	roomID, _, _ := m.CreateRoom("host-sock")

	m.LeaveRoom(roomID, RoleHost)
	if m.GetRoom(roomID) != nil {
		t.Fatal("room should be removed from the registry after Leave")
	}
}

func TestCleanupFinishedRooms(t *testing.T) {
	m := testManager()
	roomID, _, _ := m.CreateRoom("host-sock")
	room := m.GetRoom(roomID)
	room.Leave(RoleHost)

	removed := m.CleanupFinishedRooms()
	if removed != 1 {
		t.Fatalf("expected 1 room removed, got %d", removed)
	}
	if m.GetRoom(roomID) != nil {
		t.Fatal("finished room should have been evicted")
	}
}
