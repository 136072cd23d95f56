package game

import (
	"log"
	"sync"
	"time"

	"tankarena/internal/config"
)

// Engine is the authoritative per-room simulation. One Engine exists per
// room; its tick is the single writer of that room's state.
type Engine struct {
	mu sync.RWMutex

	roomID string
	cfg    config.EngineConfig

	tanks   map[int64]*Tank
	bullets map[int64]*Bullet
	tileMap *TileMap

	hostTankID  int64
	guestTankID int64

	hostSlot  PlayerSlotSnapshot
	guestSlot PlayerSlotSnapshot

	nextTankID   int64
	nextBulletID int64

	seed        int64
	rng         *LCG
	spawner     *AISpawner
	botsSpawned int

	tickCount  uint64
	gameStatus string // waiting|playing|finished
	winner     string
	reason     string
	lastTick   time.Time
	running    bool
	stopChan   chan struct{}

	snapshotPool *SnapshotPool
	eventLog     *EventLog

	// latest-input cells, one per slot; written by the transport, read
	// once at the top of each tick.
	hostInput  inputCell
	guestInput inputCell
}

type inputCell struct {
	mu        sync.Mutex
	direction Direction
	hasDir    bool
	moving    bool
	firing    bool
	set       bool
}

// SetInput overwrites the latest-input cell; stale updates are collapsed.
func (c *inputCell) SetInput(direction Direction, hasDir, moving, firing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.direction = direction
	c.hasDir = hasDir
	c.moving = moving
	c.firing = firing
	c.set = true
}

func (c *inputCell) Read() (direction Direction, hasDir, moving, firing, wasSet bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction, c.hasDir, c.moving, c.firing, c.set
}

// NewEngine constructs a room's engine. The engine does not start ticking
// until Start is called, so tests can build an engine without goroutines
// running.
func NewEngine(roomID string, cfg config.EngineConfig, stageDescriptor string) *Engine {
	if stageDescriptor == "" {
		stageDescriptor = DefaultStage
	}
	rng := NewLCG(roomID)
	e := &Engine{
		roomID:       roomID,
		cfg:          cfg,
		tanks:        make(map[int64]*Tank),
		bullets:      make(map[int64]*Bullet),
		tileMap:      NewTileMap(stageDescriptor),
		seed:         rng.state,
		rng:          rng,
		spawner:      NewAISpawner(rng, cfg),
		gameStatus:   "waiting",
		stopChan:     make(chan struct{}),
		snapshotPool: NewSnapshotPool(),
		hostSlot:     PlayerSlotSnapshot{Lives: cfg.StartingLives},
		guestSlot:    PlayerSlotSnapshot{Lives: cfg.StartingLives},
	}
	return e
}

// SetEventLog attaches an (already-started) event log for replay/audit.
func (e *Engine) SetEventLog(el *EventLog) {
	e.eventLog = el
}

func (e *Engine) tankSpeeds() tankSpeeds {
	return tankSpeeds{
		Player:   e.cfg.PlayerSpeed,
		BotBasic: e.cfg.BotBasicSpeed,
		BotFast:  e.cfg.BotFastSpeed,
		BotPower: e.cfg.BotPowerSpeed,
	}
}

// SpawnPlayerTanks places the host and guest tanks at their fixed spawn
// positions and transitions the engine to "playing".
func (e *Engine) SpawnPlayerTanks() {
	e.mu.Lock()
	defer e.mu.Unlock()

	host := &Tank{
		ID:        e.nextID(),
		X:         64,
		Y:         192,
		Direction: DirUp,
		Alive:     true,
		Side:      SidePlayer,
		Level:     LevelBasic,
		Color:     ColorYellow,
		HP:        1,

		HelmetDuration: e.cfg.HelmetMs,
	}
	guest := &Tank{
		ID:        e.nextID(),
		X:         128,
		Y:         192,
		Direction: DirUp,
		Alive:     true,
		Side:      SidePlayer,
		Level:     LevelBasic,
		Color:     ColorGreen,
		HP:        1,

		HelmetDuration: e.cfg.HelmetMs,
	}
	e.tanks[host.ID] = host
	e.tanks[guest.ID] = guest
	e.hostTankID = host.ID
	e.guestTankID = guest.ID
	e.hostSlot.ActiveTankID = host.ID
	e.hostSlot.HasActive = true
	e.guestSlot.ActiveTankID = guest.ID
	e.guestSlot.HasActive = true
	e.gameStatus = "playing"
	e.lastTick = time.Now()
}

func (e *Engine) nextID() int64 {
	e.nextTankID++
	return e.nextTankID
}

func (e *Engine) nextBID() int64 {
	e.nextBulletID++
	return e.nextBulletID
}

// Start begins the tick loop driver goroutine. Start/Stop are idempotent.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopChan = make(chan struct{})
	e.lastTick = time.Now()
	e.mu.Unlock()

	go e.run()
}

func (e *Engine) run() {
	interval := time.Second / time.Duration(e.cfg.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// Stop cooperatively halts the tick loop. A stopped engine is treated as
// finished with no winner, so anything polling GameStatus (the broadcast
// loop) sees the room end even if the stop was externally triggered
// (room torn down by a leave or a reconnect-grace timeout) rather than
// by the simulation itself reaching a win condition.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopChan)
	e.endGame("", "room_closed")
	e.mu.Unlock()
}

// IsRunning reports whether the tick loop is active.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// SetHostInput / SetGuestInput are called by the transport on receipt of
// a validated player_input event.
func (e *Engine) SetHostInput(direction Direction, hasDir, moving, firing bool) {
	e.hostInput.SetInput(direction, hasDir, moving, firing)
}

func (e *Engine) SetGuestInput(direction Direction, hasDir, moving, firing bool) {
	e.guestInput.SetInput(direction, hasDir, moving, firing)
}

// tick executes one fixed-rate simulation step in a fixed order: player
// movement, bot AI, bullet movement, collision resolution, reaping,
// snapshot export.
func (e *Engine) tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ tick panic in room %s: %v", e.roomID, r)
		}
	}()

	if e.gameStatus == "finished" {
		return
	}

	now := time.Now()
	deltaMs := float64(now.Sub(e.lastTick).Milliseconds())
	if deltaMs <= 0 {
		deltaMs = 1
	}
	e.lastTick = now
	e.tickCount++

	seed := e.rng.Next()
	if e.eventLog != nil {
		e.eventLog.EmitSimple(EventTypeTick, e.tickCount, e.roomID, TickPayload{
			RNGSeed:     seed,
			TankCount:   len(e.tanks),
			DeltaTimeMs: int64(deltaMs),
		})
	}

	// Dead bot tanks are retained one tick for the death snapshot (spec
	// §3 Lifecycle) then removed here, at the top of the following tick.
	e.reapDeadBots()

	var changes MapChanges

	// 1. Player tank update, host then guest.
	e.updatePlayerTank(e.hostTankID, &e.hostInput, deltaMs)
	e.updatePlayerTank(e.guestTankID, &e.guestInput, deltaMs)

	// Bot AI: folded into the tick body, not goroutine-per-bot, so bot
	// movement stays deterministic and serialized with everything else.
	for _, t := range e.tanks {
		if t.Side == SideBot && t.Alive {
			e.updateBotTank(t, deltaMs)
		}
	}

	// Spawn due bots.
	for _, entry := range e.spawner.Due(deltaMs) {
		e.spawnBot(entry)
	}

	// 2. Bullet update: advance, remove out-of-bounds.
	for id, b := range e.bullets {
		b.advance(deltaMs)
		if b.outOfBounds() {
			delete(e.bullets, id)
		}
	}

	// 3. Bullet-wall collisions.
	for id, b := range e.bullets {
		if e.resolveBulletWall(b, &changes) {
			delete(e.bullets, id)
		}
	}

	// 4. Bullet-tank collisions.
	for id, b := range e.bullets {
		if e.resolveBulletTank(b) {
			delete(e.bullets, id)
		}
	}

	// 5. Cooldowns.
	for _, t := range e.tanks {
		t.Cooldown = decay(t.Cooldown, deltaMs)
		t.HelmetDuration = decay(t.HelmetDuration, deltaMs)
		t.FrozenTimeout = decay(t.FrozenTimeout, deltaMs)
	}

	e.produceSnapshot(&changes)
}

func decay(v, deltaMs float64) float64 {
	v -= deltaMs
	if v < 0 {
		return 0
	}
	return v
}

// updatePlayerTank applies the latest input for one slot.
func (e *Engine) updatePlayerTank(tankID int64, cell *inputCell, deltaMs float64) {
	tank, ok := e.tanks[tankID]
	if !ok || !tank.Alive {
		return
	}
	direction, hasDir, moving, firing, wasSet := cell.Read()
	if !wasSet {
		return
	}

	if hasDir && direction != tank.Direction {
		e.applyTurn(tank, direction)
	}
	tank.Moving = moving

	if moving {
		e.tryMove(tank, deltaMs)
	}

	if firing && tank.Cooldown <= 0 {
		e.fireBullet(tank)
	}
}

// applyTurn handles a direction change: perpendicular turns align the
// other axis to an 8-unit grid; parallel (180°) or same-direction updates
// never align.
func (e *Engine) applyTurn(tank *Tank, newDir Direction) {
	if perpendicular(tank.Direction, newDir) {
		if newDir == DirUp || newDir == DirDown {
			tank.X = e.alignAxis(tank, tank.X, true) // turning to vertical motion: align X
		} else {
			tank.Y = e.alignAxis(tank, tank.Y, false) // turning to horizontal motion: align Y
		}
	}
	tank.Direction = newDir
}

const alignGrid = 8.0

func floor8(v float64) float64 {
	return float64(int(v/alignGrid)) * alignGrid
}

func ceil8(v float64) float64 {
	f := floor8(v)
	if f == v {
		return f
	}
	return f + alignGrid
}

func round8(v float64) float64 {
	f := floor8(v)
	if v-f >= alignGrid/2 {
		return f + alignGrid
	}
	return f
}

// alignAxis picks floor8/ceil8 if exactly one is collision-free,
// otherwise round8.
func (e *Engine) alignAxis(tank *Tank, v float64, isX bool) float64 {
	fl := floor8(v)
	ce := ceil8(v)

	flFree := !e.wallCollides(tankRectAt(tank, isX, fl))
	ceFree := !e.wallCollides(tankRectAt(tank, isX, ce))

	switch {
	case flFree && !ceFree:
		return fl
	case ceFree && !flFree:
		return ce
	default:
		return round8(v)
	}
}

// tankRectAt returns tank's rectangle with one axis replaced by v.
func tankRectAt(tank *Tank, isX bool, v float64) (x, y, size float64) {
	if isX {
		return v, tank.Y, tank.size()
	}
	return tank.X, v, tank.size()
}

// wallCollides checks a rectangle against the brick and steel grids using
// the tank-vs-wall threshold.
func (e *Engine) wallCollides(x, y, size float64) bool {
	for _, idx := range brickCellsInRange(x, y, x+size, y+size) {
		if !e.tileMap.BrickAt(idx) {
			continue
		}
		cx, cy, cs := brickCellRect(idx)
		if rectOverlapsCell(x, y, size, cx, cy, cs, TankWallThreshold) {
			return true
		}
	}
	for _, idx := range steelCellsInRange(x, y, x+size, y+size) {
		if !e.tileMap.SteelAt(idx) {
			continue
		}
		cx, cy, cs := steelCellRect(idx)
		if rectOverlapsCell(x, y, size, cx, cy, cs, TankWallThreshold) {
			return true
		}
	}
	return false
}

// tryMove applies "no sliding" movement: the tank either moves fully
// this tick or not at all.
func (e *Engine) tryMove(tank *Tank, deltaMs float64) {
	dx, dy := deltaFor(tank.Direction)
	speed := tank.speedFor(e.tankSpeeds())
	dist := speed * deltaMs

	nx := clampF(tank.X+dx*dist, 0, Field-tank.size())
	ny := clampF(tank.Y+dy*dist, 0, Field-tank.size())

	if e.wallCollides(nx, ny, tank.size()) {
		return // blocked: stay put, no jitter, no sliding
	}
	if e.tankCollidesOtherTank(tank, nx, ny) {
		return
	}
	tank.X = nx
	tank.Y = ny
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) tankCollidesOtherTank(self *Tank, x, y float64) bool {
	for _, other := range e.tanks {
		if other.ID == self.ID || !other.Alive {
			continue
		}
		if overlap(x, y, self.size(), self.size(), other.X, other.Y, other.size(), other.size(), ZeroThreshold) {
			return true
		}
	}
	return false
}

// fireBullet spawns a bullet from the tank's muzzle and resets its
// cooldown; callers check that the cooldown has elapsed.
func (e *Engine) fireBullet(tank *Tank) {
	power := 1
	if tank.WithPowerUp {
		power = 3
	}
	b := newBullet(e.nextBID(), tank, power, e.cfg.BulletSpeed)
	e.bullets[b.ID] = b
	tank.Cooldown = e.cfg.FireCooldownMs

	if e.eventLog != nil {
		e.eventLog.EmitSimple(EventTypeBulletFired, e.tickCount, e.roomID, BulletFiredPayload{
			BulletID: b.ID, TankID: tank.ID, Power: power, X: b.X, Y: b.Y, Dir: b.Direction,
		})
	}
}

// resolveBulletWall checks one bullet against the brick and steel grids,
// destroying brick on hit and reporting whether the bullet should die.
func (e *Engine) resolveBulletWall(b *Bullet, changes *MapChanges) bool {
	hit := false
	for _, idx := range brickCellsInRange(b.X, b.Y, b.X+b.size(), b.Y+b.size()) {
		if !e.tileMap.BrickAt(idx) {
			continue
		}
		cx, cy, cs := brickCellRect(idx)
		if rectOverlapsCell(b.X, b.Y, b.size(), cx, cy, cs, ZeroThreshold) {
			e.tileMap.DestroyBrick(idx)
			changes.BricksDestroyed = append(changes.BricksDestroyed, idx)
			if e.eventLog != nil {
				e.eventLog.EmitSimple(EventTypeBrickDestroyed, e.tickCount, e.roomID, WallDestroyedPayload{CellIndex: idx})
			}
			hit = true
		}
	}
	for _, idx := range steelCellsInRange(b.X, b.Y, b.X+b.size(), b.Y+b.size()) {
		if !e.tileMap.SteelAt(idx) {
			continue
		}
		cx, cy, cs := steelCellRect(idx)
		if rectOverlapsCell(b.X, b.Y, b.size(), cx, cy, cs, ZeroThreshold) {
			hit = true
			if b.Power >= e.cfg.SteelPowerThresh {
				e.tileMap.DestroySteel(idx)
				changes.SteelsDestroyed = append(changes.SteelsDestroyed, idx)
				if e.eventLog != nil {
					e.eventLog.EmitSimple(EventTypeSteelDestroyed, e.tickCount, e.roomID, WallDestroyedPayload{CellIndex: idx})
				}
			}
		}
	}
	if !e.tileMap.EagleBroken {
		ex, ey := float64(e.tileMap.EagleCol)*BrickCell, float64(e.tileMap.EagleRow)*BrickCell
		if rectOverlapsCell(b.X, b.Y, b.size(), ex, ey, BrickCell*4, ZeroThreshold) {
			e.tileMap.EagleBroken = true
			hit = true
			e.endGame(e.ownerSideOpponent(b.TankID), "eagle_destroyed")
			if e.eventLog != nil {
				e.eventLog.EmitSimple(EventTypeEagleDestroyed, e.tickCount, e.roomID, nil)
			}
		}
	}
	return hit
}

// ownerSideOpponent returns who wins when the given tank's bullet
// destroys the eagle: destroying the base loses, so the opponent of the
// firer's side wins.
func (e *Engine) ownerSideOpponent(tankID int64) string {
	owner, ok := e.tanks[tankID]
	if !ok {
		return "draw"
	}
	switch owner.Color {
	case ColorYellow:
		return "guest"
	case ColorGreen:
		return "host"
	default:
		return "draw" // a bot destroyed the eagle
	}
}

// resolveBulletTank checks one bullet against every alive tank except its
// owner and applies the damage policy table by owner/target side: player
// vs. player (consumed, no damage), player vs. bot (damage), bot vs.
// player (damage unless helmeted; consumed either way), bot vs. bot
// (passes through). It reports whether the bullet is consumed.
func (e *Engine) resolveBulletTank(b *Bullet) bool {
	owner, ownerOK := e.tanks[b.TankID]
	if !ownerOK {
		return true // orphaned bullet: destroy it
	}

	for _, t := range e.tanks {
		if t.ID == owner.ID || !t.Alive {
			continue
		}
		if !overlap(b.X, b.Y, b.size(), b.size(), t.X, t.Y, t.size(), t.size(), ZeroThreshold) {
			continue
		}

		switch {
		case owner.Side == SidePlayer && t.Side == SidePlayer:
			return true // friendly fire suppressed: bullet dies, no damage
		case owner.Side == SidePlayer && t.Side == SideBot:
			e.damageTank(t, 1, owner.ID)
			return true
		case owner.Side == SideBot && t.Side == SidePlayer:
			if t.HelmetDuration > 0 {
				return true // no effect, but bullet still consumed
			}
			e.damageTank(t, 1, owner.ID)
			return true
		default: // bot vs bot
			return false // bullet passes: no consume, no damage
		}
	}
	return false
}

func (e *Engine) damageTank(t *Tank, dmg int, attackerID int64) {
	t.HP -= dmg
	if e.eventLog != nil {
		e.eventLog.EmitSimple(EventTypeTankDamage, e.tickCount, e.roomID, TankDamagePayload{
			AttackerTankID: attackerID, VictimTankID: t.ID, VictimHP: t.HP,
		})
	}
	if t.HP <= 0 {
		t.Alive = false
		if e.eventLog != nil {
			e.eventLog.EmitSimple(EventTypeTankDeath, e.tickCount, e.roomID, TankDeathPayload{TankID: t.ID})
		}
		if t.Side == SidePlayer {
			e.onPlayerTankDeath(t)
		}
	}
}

// onPlayerTankDeath decrements the slot's lives and ends the game when
// a side is exhausted; if the other side already ran out earlier in the
// same tick, the result is a draw.
func (e *Engine) onPlayerTankDeath(t *Tank) {
	bothExhausted := e.gameStatus == "finished" && e.reason == "lives_exhausted"
	switch t.Color {
	case ColorYellow:
		e.hostSlot.Lives--
		e.hostSlot.HasActive = false
		if e.hostSlot.Lives <= 0 {
			if bothExhausted {
				e.winner = "draw"
			}
			e.endGame("guest", "lives_exhausted")
		}
	case ColorGreen:
		e.guestSlot.Lives--
		e.guestSlot.HasActive = false
		if e.guestSlot.Lives <= 0 {
			if bothExhausted {
				e.winner = "draw"
			}
			e.endGame("host", "lives_exhausted")
		}
	}
}

func (e *Engine) endGame(winner, reason string) {
	if e.gameStatus == "finished" {
		return
	}
	e.gameStatus = "finished"
	e.winner = winner
	e.reason = reason
}

// Outcome returns the winner/reason recorded when the game ended, valid
// only once GameStatus() == "finished".
func (e *Engine) Outcome() (winner, reason string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.winner, e.reason
}

// reapDeadBots removes bot tanks that have been dead since the prior
// tick; it runs at the top of tick, so a bot killed during a tick still
// appears (alive=false) in that tick's snapshot. Player tanks are never
// removed and never respawned: a dead player slot has no active tank for
// the rest of the game, even while it still has lives left.
func (e *Engine) reapDeadBots() {
	for id, t := range e.tanks {
		if t.Side == SideBot && !t.Alive {
			delete(e.tanks, id)
		}
	}
}

// updateBotTank is the per-tick bot movement policy: deterministic
// dwell-then-reroll direction, fire whenever cooldown allows and a
// target is in the forward lane.
func (e *Engine) updateBotTank(t *Tank, deltaMs float64) {
	if t.FrozenTimeout > 0 {
		return
	}

	t.dwellRemainingMs -= deltaMs

	beforeX, beforeY := t.X, t.Y
	e.tryMove(t, deltaMs)
	blocked := t.X == beforeX && t.Y == beforeY

	if t.dwellRemainingMs <= 0 || blocked {
		t.Direction = botDwellDirection(e.rng)
		t.dwellRemainingMs = 500 + e.rng.Float64()*1000
	}
	t.Moving = true

	if t.Cooldown <= 0 && e.botInForwardLane(t) {
		e.fireBullet(t)
	}
}

func botDwellDirection(rng *LCG) Direction {
	dirs := [4]Direction{DirUp, DirDown, DirLeft, DirRight}
	return dirs[rng.Intn(len(dirs))]
}

// botInForwardLane reports whether a tank or the eagle sits roughly
// ahead of t along its current facing, within one tank-width of lane
// tolerance on the perpendicular axis.
func (e *Engine) botInForwardLane(t *Tank) bool {
	dx, dy := deltaFor(t.Direction)
	const laneTolerance = TankSize

	for _, other := range e.tanks {
		if other.ID == t.ID || !other.Alive {
			continue
		}
		if dx != 0 {
			if approxAligned(t.Y, other.Y, laneTolerance) && aheadAlong(t.X, other.X, dx) {
				return true
			}
		} else {
			if approxAligned(t.X, other.X, laneTolerance) && aheadAlong(t.Y, other.Y, dy) {
				return true
			}
		}
	}

	ex := float64(e.tileMap.EagleCol) * BrickCell
	ey := float64(e.tileMap.EagleRow) * BrickCell
	if dx != 0 {
		return approxAligned(t.Y, ey, laneTolerance) && aheadAlong(t.X, ex, dx)
	}
	return approxAligned(t.X, ex, laneTolerance) && aheadAlong(t.Y, ey, dy)
}

func approxAligned(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func aheadAlong(selfCoord, otherCoord, d float64) bool {
	if d > 0 {
		return otherCoord > selfCoord
	}
	if d < 0 {
		return otherCoord < selfCoord
	}
	return false
}

// spawnBot places a new bot tank from the spawn queue.
func (e *Engine) spawnBot(entry botQueueEntry) {
	x, y := spawnPosition(e.botsSpawned)
	e.botsSpawned++

	color := ColorSilver
	if entry.level == LevelPower {
		color = ColorRed
	}

	t := &Tank{
		ID:          e.nextID(),
		X:           x,
		Y:           y,
		Direction:   DirDown,
		Alive:       true,
		Side:        SideBot,
		Level:       entry.level,
		Color:       color,
		HP:          entry.hp,
		WithPowerUp: entry.withPowerUp,
	}
	e.tanks[t.ID] = t

	if e.eventLog != nil {
		e.eventLog.EmitSimple(EventTypeBotSpawn, e.tickCount, e.roomID, BotSpawnPayload{
			TankID: t.ID, Level: t.Level, X: t.X, Y: t.Y, WithPowerUp: t.WithPowerUp,
		})
	}
}

// RemainingBots reports the count of not-yet-spawned queue entries.
func (e *Engine) RemainingBots() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spawner.Remaining()
}

// produceSnapshot fills and publishes the next snapshot buffer.
func (e *Engine) produceSnapshot(changes *MapChanges) {
	snap := e.snapshotPool.AcquireWrite()

	for _, t := range e.tanks {
		snap.Tanks = append(snap.Tanks, TankSnapshot{
			ID: t.ID, X: t.X, Y: t.Y, Direction: t.Direction, Moving: t.Moving,
			Alive: t.Alive, Side: t.Side, Level: t.Level, Color: t.Color, HP: t.HP,
			Helmet: t.HelmetDuration, Frozen: t.FrozenTimeout, Cooldown: t.Cooldown,
			WithPowerUp: t.WithPowerUp,
		})
	}
	for _, b := range e.bullets {
		snap.Bullets = append(snap.Bullets, BulletSnapshot{
			ID: b.ID, X: b.X, Y: b.Y, Direction: b.Direction, Speed: b.Speed,
			TankID: b.TankID, Power: b.Power,
		})
	}

	snap.Map = MapSnapshot{
		Bricks:      cloneBoolSlice(e.tileMap.Bricks),
		Steels:      cloneBoolSlice(e.tileMap.Steels),
		EagleBroken: e.tileMap.EagleBroken,
	}
	snap.Host = e.hostSlot
	snap.Guest = e.guestSlot
	snap.RemainingBots = e.spawner.Remaining()
	snap.GameStatus = e.gameStatus
	if len(changes.BricksDestroyed) > 0 || len(changes.SteelsDestroyed) > 0 {
		snap.Changes = changes
	}

	e.snapshotPool.PublishWrite()
}

// GetSnapshot returns the most recently published snapshot (read-only,
// lock-free, safe to call from the broadcast loop concurrently with tick).
func (e *Engine) GetSnapshot() *GameSnapshot {
	return e.snapshotPool.AcquireRead()
}

// GameStatus returns the current room status (waiting|playing|finished).
func (e *Engine) GameStatus() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.gameStatus
}

// TickCount returns the number of ticks executed so far.
func (e *Engine) TickCount() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tickCount
}

// Seed returns the room's deterministic RNG seed, sent once in
// game_state_init so a client can display/log it.
func (e *Engine) Seed() int64 {
	return e.seed
}

// HostSpawn and GuestSpawn return the fixed spawn coordinates used by
// SpawnPlayerTanks, sent in game_state_init ahead of the first snapshot.
func (e *Engine) HostSpawn() (x, y float64) {
	return 64, 192
}

func (e *Engine) GuestSpawn() (x, y float64) {
	return 128, 192
}
