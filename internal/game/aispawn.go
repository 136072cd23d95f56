package game

import "tankarena/internal/config"

// botSpawnPositions cycles through three fixed spawn points.
var botSpawnPositions = [3][2]float64{
	{0, 0},
	{192, 0},
	{384, 0},
}

// botQueueEntry is one scheduled bot in the room's spawn queue.
type botQueueEntry struct {
	level       Level
	hp          int
	withPowerUp bool
}

// AISpawner generates and drains the per-room deterministic bot queue
//.
type AISpawner struct {
	queue      []botQueueEntry
	spawned    int
	burstDone  bool
	sinceLast  int64 // ms since last non-burst spawn
	cfg        config.EngineConfig
}

// NewAISpawner builds the 20-bot queue (18 basic, 1 fast, 1 power)
// shuffled with the room's LCG§9 determinism notes.
func NewAISpawner(rng *LCG, cfg config.EngineConfig) *AISpawner {
	n := cfg.BotQueueSize
	queue := make([]botQueueEntry, 0, n)

	levels := make([]Level, 0, n)
	for i := 0; i < n-2; i++ {
		levels = append(levels, LevelBasic)
	}
	levels = append(levels, LevelFast, LevelPower)

	rng.Shuffle(len(levels), func(i, j int) {
		levels[i], levels[j] = levels[j], levels[i]
	})

	powerUpIndices := map[int]bool{3: true, 10: true, 17: true}
	for i, lvl := range levels {
		hp := 1
		if lvl == LevelArmor {
			hp = 4
		}
		queue = append(queue, botQueueEntry{
			level:       lvl,
			hp:          hp,
			withPowerUp: powerUpIndices[i],
		})
	}

	return &AISpawner{queue: queue, cfg: cfg}
}

// Remaining reports how many bots are left in the queue.
func (a *AISpawner) Remaining() int { return len(a.queue) - a.spawned }

// Due returns the bots that should spawn this tick given elapsed deltaMs,
// advancing internal timers. The initial burst (first N entries) fires
// immediately on the first call; thereafter one bot spawns every
// BotSpawnEveryMs until the queue drains.
func (a *AISpawner) Due(deltaMs float64) []botQueueEntry {
	var due []botQueueEntry

	if !a.burstDone {
		a.burstDone = true
		burst := a.cfg.BotBurst
		for burst > 0 && a.spawned < len(a.queue) {
			due = append(due, a.queue[a.spawned])
			a.spawned++
			burst--
		}
		return due
	}

	if a.spawned >= len(a.queue) {
		return nil
	}

	a.sinceLast += int64(deltaMs)
	for a.sinceLast >= a.cfg.BotSpawnEveryMs && a.spawned < len(a.queue) {
		a.sinceLast -= a.cfg.BotSpawnEveryMs
		due = append(due, a.queue[a.spawned])
		a.spawned++
	}
	return due
}

// spawnPosition returns the cycling spawn point for the nth bot spawned
// (zero-indexed across the room's lifetime).
func spawnPosition(index int) (x, y float64) {
	p := botSpawnPositions[index%len(botSpawnPositions)]
	return p[0], p[1]
}
