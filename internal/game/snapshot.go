package game

import (
	"sync/atomic"
	"time"
)

// TankSnapshot is an immutable copy of tank state for broadcast.
type TankSnapshot struct {
	ID          int64
	X, Y        float64
	Direction   Direction
	Moving      bool
	Alive       bool
	Side        Side
	Level       Level
	Color       Color
	HP          int
	Helmet      float64
	Frozen      float64
	Cooldown    float64
	WithPowerUp bool
}

// BulletSnapshot is an immutable copy of bullet state for broadcast.
type BulletSnapshot struct {
	ID        int64
	X, Y      float64
	Direction Direction
	Speed     float64
	TankID    int64
	Power     int
}

// MapSnapshot is an immutable copy of the tile map for broadcast. Every
// snapshot carries full copies of the Bricks and Steels arrays.
type MapSnapshot struct {
	Bricks      []bool
	Steels      []bool
	EagleBroken bool
}

// cloneBoolSlice copies a tile-map bitmap so a published snapshot never
// aliases the engine's live array: the broadcast loop serializes a
// snapshot concurrently with the next tick's DestroyBrick/DestroySteel
// calls mutating that array in place.
func cloneBoolSlice(src []bool) []bool {
	out := make([]bool, len(src))
	copy(out, src)
	return out
}

// PlayerSlotSnapshot mirrors one player slot.
type PlayerSlotSnapshot struct {
	Lives        int
	Score        int
	ActiveTankID int64
	HasActive    bool
}

// MapChanges is the lightweight optional payload emitted on ticks where
// destruction occurred.
type MapChanges struct {
	BricksDestroyed []int
	SteelsDestroyed []int
}

// GameSnapshot is the full authoritative state exported from the engine
// on each broadcast sample.
type GameSnapshot struct {
	Sequence     uint64
	Timestamp    int64
	Tanks        []TankSnapshot
	Bullets      []BulletSnapshot
	Map          MapSnapshot
	Host         PlayerSlotSnapshot
	Guest        PlayerSlotSnapshot
	RemainingBots int
	GameStatus   string
	Changes      *MapChanges
}

// SnapshotPool is a lock-free triple-buffered snapshot pool: the tick
// loop is the sole producer, the broadcast loop the sole consumer, so
// the broadcast loop never blocks or races against the tick.
type SnapshotPool struct {
	snapshots [3]GameSnapshot
	writeIdx  atomic.Uint32
	readIdx   atomic.Uint32
	sequence  atomic.Uint64
}

// NewSnapshotPool constructs an empty pool.
func NewSnapshotPool() *SnapshotPool {
	return &SnapshotPool{}
}

// AcquireWrite returns the next buffer slot for the producer to fill.
func (p *SnapshotPool) AcquireWrite() *GameSnapshot {
	idx := (p.writeIdx.Load() + 1) % 3
	snap := &p.snapshots[idx]
	snap.Sequence = p.sequence.Add(1)
	snap.Timestamp = time.Now().UnixMilli()
	snap.Tanks = snap.Tanks[:0]
	snap.Bullets = snap.Bullets[:0]
	snap.Changes = nil
	p.writeIdx.Store(idx)
	return snap
}

// PublishWrite makes the just-filled buffer visible to readers.
func (p *SnapshotPool) PublishWrite() {
	p.readIdx.Store(p.writeIdx.Load())
}

// AcquireRead returns the most recently published snapshot.
func (p *SnapshotPool) AcquireRead() *GameSnapshot {
	idx := p.readIdx.Load()
	return &p.snapshots[idx]
}
