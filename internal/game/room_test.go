package game

import (
	"testing"
	"time"

	"tankarena/internal/config"
)

func testRoom() *Room {
	roomCfg := config.DefaultRoom()
	roomCfg.ReconnectTimeout = 50 * time.Millisecond
	return NewRoom("TESTRM", roomCfg, config.DefaultEngine(), "")
}

func TestAddHostThenJoinStartsGame(t *testing.T) {
	r := testRoom()
	defer r.Engine.Stop()

	hostSession := r.AddHost("sock-host")
	if hostSession == "" {
		t.Fatal("AddHost returned empty session id")
	}
	if r.GetStatus() != "waiting" {
		t.Fatalf("expected waiting status, got %q", r.GetStatus())
	}

	guestSession, err := r.Join("sock-guest")
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if guestSession == hostSession {
		t.Fatal("guest and host sessions must differ")
	}
	if r.GetStatus() != "playing" {
		t.Fatalf("expected playing status after second slot fills, got %q", r.GetStatus())
	}
	if !r.Engine.IsRunning() {
		t.Fatal("engine should be running once both slots are filled")
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	r := testRoom()
	defer r.Engine.Stop()

	r.AddHost("sock-host")
	if _, err := r.Join("sock-guest-1"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	if _, err := r.Join("sock-guest-2"); err == nil {
		t.Fatal("expected second join to a full room to fail")
	} else if err.Type != ErrRoomFull {
		t.Errorf("expected ErrRoomFull, got %v", err.Type)
	}
}

func TestDisconnectThenReconnectCancelsGrace(t *testing.T) {
	r := testRoom()
	defer r.Engine.Stop()

	hostSession := r.AddHost("sock-host")
	r.Join("sock-guest")

	r.Disconnect(RoleHost)
	if r.HostSlot().Status != StatusDisconnected {
		t.Fatal("host slot should be disconnected")
	}

	role, ok := r.Reconnect(hostSession, "sock-host-2")
	if !ok || role != RoleHost {
		t.Fatalf("expected successful host reconnect, got ok=%v role=%v", ok, role)
	}
	if r.HostSlot().Status != StatusConnected {
		t.Fatal("host slot should be connected again after reconnect")
	}
	if r.HostSlot().SocketID != "sock-host-2" {
		t.Fatalf("expected rebound socket id, got %q", r.HostSlot().SocketID)
	}
}

func TestDisconnectGraceExpiryFinishesRoom(t *testing.T) {
	r := testRoom()
	defer r.Engine.Stop()

	r.AddHost("sock-host")
	r.Join("sock-guest")

	expired := make(chan SlotRole, 1)
	r.SetOnExpire(func(room *Room, role SlotRole) {
		expired <- role
	})

	r.Disconnect(RoleGuest)

	select {
	case role := <-expired:
		if role != RoleGuest {
			t.Fatalf("expected guest to expire, got %v", role)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for disconnect grace window to expire")
	}
	if r.GetStatus() != "finished" {
		t.Fatalf("expected finished status after grace expiry, got %q", r.GetStatus())
	}
}

func TestLeaveStopsEngineAndFinishesRoom(t *testing.T) {
	r := testRoom()

	r.AddHost("sock-host")
	r.Join("sock-guest")
	if !r.Engine.IsRunning() {
		t.Fatal("engine should be running")
	}

	r.Leave(RoleHost)
	if r.Engine.IsRunning() {
		t.Fatal("engine should stop once a slot leaves")
	}
	if r.GetStatus() != "finished" {
		t.Fatalf("expected finished status, got %q", r.GetStatus())
	}
	if r.HostSlot() != nil {
		t.Fatal("host slot should be cleared")
	}
}
