package game

import (
	"testing"
	"time"

	"tankarena/internal/config"
)

func testEngine(roomID string) *Engine {
	return NewEngine(roomID, config.DefaultEngine(), DefaultStage)
}

// TestNewEngine verifies engine creation with correct defaults.
func TestNewEngine(t *testing.T) {
	tests := []struct {
		name   string
		roomID string
	}{
		{"room A", "AAAAAA"},
		{"room B", "BCDEFG"},
		{"empty id falls back to seed 1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine(tt.roomID)
			if e == nil {
				t.Fatal("NewEngine returned nil")
			}
			if e.GameStatus() != "waiting" {
				t.Errorf("expected initial status 'waiting', got %q", e.GameStatus())
			}
		})
	}
}

// TestEngineStartStop verifies the tick loop starts and stops without
// panicking, and that Start/Stop are idempotent.
func TestEngineStartStop(t *testing.T) {
	e := testEngine("ROOM01")

	e.Start()
	e.Start() // idempotent
	time.Sleep(50 * time.Millisecond)

	if !e.IsRunning() {
		t.Error("engine should report running after Start")
	}

	e.Stop()
	e.Stop() // idempotent, must not panic on double close

	if e.IsRunning() {
		t.Error("engine should report stopped after Stop")
	}
}

// TestSpawnPlayerTanks verifies host/guest tanks are placed and the
// engine transitions to playing.
func TestSpawnPlayerTanks(t *testing.T) {
	e := testEngine("ROOM02")
	e.SpawnPlayerTanks()

	if e.GameStatus() != "playing" {
		t.Fatalf("expected status 'playing' after spawning tanks, got %q", e.GameStatus())
	}
	if len(e.tanks) != 2 {
		t.Fatalf("expected 2 tanks, got %d", len(e.tanks))
	}
	if !e.hostSlot.HasActive || !e.guestSlot.HasActive {
		t.Error("both slots should have an active tank")
	}
}

// TestTurnAlignsPerpendicularAxis verifies spec's grid-alignment rule:
// a perpendicular turn snaps the other axis to the nearest free 8-unit
// grid line, while a same-axis update never aligns.
func TestTurnAlignsPerpendicularAxis(t *testing.T) {
	e := testEngine("ROOM03")
	tank := &Tank{ID: 1, X: 61, Y: 100, Direction: DirRight, Alive: true, Side: SidePlayer}
	e.tanks[1] = tank

	e.applyTurn(tank, DirUp) // perpendicular: aligns X
	if tank.X != 64 {
		t.Errorf("expected X aligned to 64, got %v", tank.X)
	}

	tank2 := &Tank{ID: 2, X: 61, Y: 100, Direction: DirRight, Alive: true, Side: SidePlayer}
	e.tanks[2] = tank2
	e.applyTurn(tank2, DirLeft) // parallel (180 deg): no alignment
	if tank2.X != 61 {
		t.Errorf("parallel turn should not align X, got %v", tank2.X)
	}
}

// TestNoSlidingOnBlockedMove verifies that a blocked move leaves the
// tank exactly where it started (no partial/sliding progress).
func TestNoSlidingOnBlockedMove(t *testing.T) {
	e := testEngine("ROOM04")
	// Place a tank directly against the steel border on the left edge.
	tank := &Tank{ID: 1, X: 16, Y: 16, Direction: DirLeft, Alive: true, Side: SidePlayer}
	e.tanks[1] = tank

	startX, startY := tank.X, tank.Y
	e.tryMove(tank, 1000) // large delta, would travel far if unblocked

	if tank.X != startX || tank.Y != startY {
		t.Errorf("blocked tank should not move at all, got (%v,%v)", tank.X, tank.Y)
	}
}

// TestBulletWallDestruction verifies a bullet destroys a brick cell on
// contact and is consumed.
func TestBulletWallDestruction(t *testing.T) {
	e := testEngine("ROOM05")
	idx := 0
	for i, v := range e.tileMap.Bricks {
		if v {
			idx = i
			break
		}
	}
	cx, cy, _ := brickCellRect(idx)

	b := &Bullet{ID: 1, X: cx, Y: cy, Direction: DirRight, TankID: 99}
	var changes MapChanges
	hit := e.resolveBulletWall(b, &changes)

	if !hit {
		t.Fatal("expected bullet to hit a brick cell")
	}
	if e.tileMap.BrickAt(idx) {
		t.Error("brick should be destroyed after hit")
	}
	if len(changes.BricksDestroyed) != 1 {
		t.Errorf("expected 1 destroyed brick recorded, got %d", len(changes.BricksDestroyed))
	}
}

// TestSteelSurvivesLowPowerBullet verifies steel only falls to a
// power>=3 bullet, per spec's threshold.
func TestSteelSurvivesLowPowerBullet(t *testing.T) {
	e := testEngine("ROOM06")
	idx := 0
	for i, v := range e.tileMap.Steels {
		if v {
			idx = i
			break
		}
	}
	cx, cy, _ := steelCellRect(idx)

	weak := &Bullet{ID: 1, X: cx, Y: cy, Direction: DirRight, TankID: 99, Power: 1}
	var changes MapChanges
	e.resolveBulletWall(weak, &changes)
	if !e.tileMap.SteelAt(idx) {
		t.Fatal("steel should survive a power-1 bullet")
	}

	strong := &Bullet{ID: 2, X: cx, Y: cy, Direction: DirRight, TankID: 99, Power: 3}
	e.resolveBulletWall(strong, &changes)
	if e.tileMap.SteelAt(idx) {
		t.Error("steel should be destroyed by a power-3 bullet")
	}
}

// TestBulletDamagePolicy exercises the four-way bullet damage table.
func TestBulletDamagePolicy(t *testing.T) {
	tests := []struct {
		name       string
		ownerSide  Side
		victimSide Side
		helmet     float64
		wantDamage bool
		wantConsume bool
	}{
		{"player vs player: friendly fire suppressed", SidePlayer, SidePlayer, 0, false, true},
		{"player vs bot: damages", SidePlayer, SideBot, 0, true, true},
		{"bot vs player: damages", SideBot, SidePlayer, 0, true, true},
		{"bot vs player with helmet: no damage, still consumed", SideBot, SidePlayer, 1000, false, true},
		{"bot vs bot: passes through", SideBot, SideBot, 0, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := testEngine("ROOM07")
			owner := &Tank{ID: 1, X: 0, Y: 0, Alive: true, Side: tt.ownerSide, HP: 1}
			victim := &Tank{ID: 2, X: 0, Y: 0, Alive: true, Side: tt.victimSide, HP: 1, HelmetDuration: tt.helmet}
			e.tanks[1] = owner
			e.tanks[2] = victim

			b := &Bullet{ID: 1, X: 0, Y: 0, TankID: owner.ID}
			consumed := e.resolveBulletTank(b)

			if consumed != tt.wantConsume {
				t.Errorf("expected consumed=%v, got %v", tt.wantConsume, consumed)
			}
			gotDamage := victim.HP < 1
			if gotDamage != tt.wantDamage {
				t.Errorf("expected damage=%v, got HP=%d", tt.wantDamage, victim.HP)
			}
		})
	}
}

// TestOrphanedBulletDestroyed verifies a bullet whose owning tank no
// longer exists is destroyed on the next resolution pass.
func TestOrphanedBulletDestroyed(t *testing.T) {
	e := testEngine("ROOM08")
	b := &Bullet{ID: 1, X: 0, Y: 0, TankID: 404}
	if !e.resolveBulletTank(b) {
		t.Error("orphaned bullet should be destroyed")
	}
}

// TestLivesExhaustionEndsGame verifies the supplemented lives rule:
// a player slot's last life loss ends the game for the opposing side.
func TestLivesExhaustionEndsGame(t *testing.T) {
	e := testEngine("ROOM09")
	e.SpawnPlayerTanks()
	host := e.tanks[e.hostTankID]
	e.hostSlot.Lives = 1

	e.damageTank(host, 1, e.guestTankID)

	if e.GameStatus() != "finished" {
		t.Fatalf("expected game finished after last life lost, got %q", e.GameStatus())
	}
	winner, reason := e.Outcome()
	if winner != "guest" || reason != "lives_exhausted" {
		t.Errorf("expected guest win by lives_exhausted, got winner=%q reason=%q", winner, reason)
	}
}

// TestEagleDestructionLosesForFirer verifies destroying one's own
// eagle loses the game for the firer's side (supplemented rule).
func TestEagleDestructionLosesForFirer(t *testing.T) {
	e := testEngine("ROOM10")
	e.SpawnPlayerTanks()
	host := e.tanks[e.hostTankID] // ColorYellow

	ex := float64(e.tileMap.EagleCol) * BrickCell
	ey := float64(e.tileMap.EagleRow) * BrickCell
	b := &Bullet{ID: 1, X: ex, Y: ey, TankID: host.ID}

	var changes MapChanges
	e.resolveBulletWall(b, &changes)

	if e.GameStatus() != "finished" {
		t.Fatal("expected game finished after eagle destruction")
	}
	winner, reason := e.Outcome()
	if winner != "guest" || reason != "eagle_destroyed" {
		t.Errorf("expected guest win (host destroyed own eagle), got winner=%q reason=%q", winner, reason)
	}
}

// TestDeterministicRNGReplay verifies two engines built from the same
// room id produce an identical RNG sequence.
func TestDeterministicRNGReplay(t *testing.T) {
	e1 := testEngine("REPLAY1")
	e2 := testEngine("REPLAY1")

	for i := 0; i < 50; i++ {
		v1 := e1.rng.Next()
		v2 := e2.rng.Next()
		if v1 != v2 {
			t.Fatalf("RNG sequences diverged at step %d: %d != %d", i, v1, v2)
		}
	}
}

// TestConcurrentTickAndSnapshotRead exercises the lock-free
// producer/consumer split: the tick loop runs while a reader polls
// GetSnapshot concurrently, and neither side should race or panic.
func TestConcurrentTickAndSnapshotRead(t *testing.T) {
	e := testEngine("ROOM11")
	e.SpawnPlayerTanks()
	e.Start()
	defer e.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = e.GetSnapshot()
		}
	}()
	<-done
	time.Sleep(50 * time.Millisecond)
}
