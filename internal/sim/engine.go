package sim

import (
	"math/rand"
	"time"
)

const (
	scorePerFood = 10

	// Random placement gives up after this many collisions and falls back
	// to a linear scan, so a nearly full board still seeds deterministically.
	maxFoodPlacementAttempts = 128
)

// EngineCore is the surface the loop drives once per tick.
type EngineCore interface {
	Apply([]Command) error
	Step(delta time.Duration)
	Snapshot() Snapshot
	Deps() Deps
}

// Engine owns the single mutable copy of world truth. All mutation happens
// on the tick goroutine through Apply and Step; everything else sees only
// immutable snapshots.
type Engine struct {
	cfg  WorldConfig
	deps Deps

	phase        Phase
	score        int
	tick         uint64
	moveInterval time.Duration
	moveTimer    time.Duration

	segments []Point
	dir      Vec
	nextDir  Vec
	food     []Point
}

// NewEngine constructs an engine in the idle phase with a freshly seeded
// world.
func NewEngine(cfg WorldConfig, deps Deps) *Engine {
	cfg = cfg.Normalized()
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.RNG == nil {
		deps.RNG = rand.New(rand.NewSource(cfg.Seed))
	}
	engine := &Engine{cfg: cfg, deps: deps}
	engine.Reset()
	return engine
}

// Deps returns the injected infrastructure dependencies.
func (e *Engine) Deps() Deps { return e.deps }

// Config returns the immutable world configuration.
func (e *Engine) Config() WorldConfig { return e.cfg }

// Reset rebuilds the snake, reseeds the food set, and zeroes score, tick
// counter, and move cadence. The engine lands in the idle phase.
func (e *Engine) Reset() {
	cell := e.cfg.CellSize
	cx := e.cfg.WorldWidth() / cell / 2 * cell
	cy := e.cfg.WorldHeight() / cell / 2 * cell

	// Head first, body trailing downward, moving up.
	e.segments = []Point{
		{X: cx, Y: cy},
		{X: cx, Y: cy + cell},
		{X: cx, Y: cy + 2*cell},
	}
	e.dir = Up
	e.nextDir = Up

	e.food = nil
	for i := 0; i < e.cfg.FoodCount; i++ {
		e.spawnFood()
	}

	e.score = 0
	e.tick = 0
	e.moveInterval = e.cfg.BaseMoveInterval()
	e.moveTimer = 0
	e.phase = PhaseIdle
}

// Start arms a fresh run. From idle or gameOver it rebuilds the world and
// enters playing; while playing or paused it is a no-op, so a stray start
// cannot wipe a run in progress.
func (e *Engine) Start() {
	switch e.phase {
	case PhaseIdle, PhaseGameOver:
		e.Reset()
		e.phase = PhasePlaying
	}
}

// Pause suspends the run. Valid only while playing; otherwise a no-op.
func (e *Engine) Pause() {
	if e.phase == PhasePlaying {
		e.phase = PhasePaused
	}
}

// Resume continues a paused run. Valid only while paused; otherwise a no-op.
func (e *Engine) Resume() {
	if e.phase == PhasePaused {
		e.phase = PhasePlaying
	}
}

// SubmitDirection buffers the next turn. Non-unit vectors and vectors that
// would reverse the snake onto itself are silently discarded; the last
// accepted submission before a move step wins.
func (e *Engine) SubmitDirection(screenID string, dir Vec) {
	if !dir.IsUnit() {
		return
	}
	if dir.Opposes(e.dir) {
		return
	}
	e.nextDir = dir
}

// Apply executes queued commands in strict arrival order. It never fails;
// unknown command types are logged and skipped.
func (e *Engine) Apply(commands []Command) error {
	for _, cmd := range commands {
		switch cmd.Type {
		case CommandInput:
			if cmd.Input == nil {
				continue
			}
			e.SubmitDirection(cmd.ScreenID, cmd.Input.Direction)
		case CommandStart:
			e.Start()
		case CommandPause:
			e.Pause()
		case CommandResume:
			e.Resume()
		case CommandReset:
			e.Reset()
		default:
			if e.deps.Logger != nil {
				e.deps.Logger.Printf("ignoring unknown command type %q from %s", cmd.Type, cmd.ScreenID)
			}
		}
	}
	return nil
}

// Step advances the simulation by delta. A no-op outside the playing phase.
// The move timer accumulates until it crosses the move interval, at which
// point the snake advances one grid cell; a large delta may cross the
// interval more than once.
func (e *Engine) Step(delta time.Duration) {
	if e.phase != PhasePlaying {
		return
	}
	e.tick++
	e.rollExtraFood()

	e.moveTimer += delta
	for e.moveTimer >= e.moveInterval {
		e.moveTimer -= e.moveInterval
		e.advanceOneCell()
		if e.phase != PhasePlaying {
			e.moveTimer = 0
			return
		}
	}
}

// Snapshot returns an immutable full copy of the world, safe to hand to
// every renderer.
func (e *Engine) Snapshot() Snapshot {
	segments := make([]Point, len(e.segments))
	copy(segments, e.segments)
	food := make([]Point, len(e.food))
	copy(food, e.food)
	return Snapshot{
		Phase:  e.phase,
		Score:  e.score,
		Tick:   e.tick,
		Snake:  SnakeState{Segments: segments, Direction: e.dir},
		Food:   food,
		Config: e.cfg,
	}
}

func (e *Engine) advanceOneCell() {
	e.dir = e.nextDir
	cell := e.cfg.CellSize
	head := e.segments[0]
	newHead := Point{X: head.X + e.dir.X*cell, Y: head.Y + e.dir.Y*cell}

	if newHead.X < 0 || newHead.X >= e.cfg.WorldWidth() ||
		newHead.Y < 0 || newHead.Y >= e.cfg.WorldHeight() {
		e.endRun("wall")
		return
	}
	for _, seg := range e.segments {
		if seg == newHead {
			e.endRun("self")
			return
		}
	}

	e.segments = append(e.segments, Point{})
	copy(e.segments[1:], e.segments)
	e.segments[0] = newHead

	// The tail cell vacates on every step; eating appends two duplicates of
	// the new tail, for a net growth of exactly two segments.
	e.segments = e.segments[:len(e.segments)-1]

	if idx := e.foodIndex(newHead); idx >= 0 {
		e.food = append(e.food[:idx], e.food[idx+1:]...)
		e.score += scorePerFood
		tail := e.segments[len(e.segments)-1]
		e.segments = append(e.segments, tail, tail)
		e.moveInterval = e.intervalForScore(e.score)
		e.spawnFood()
	}
}

func (e *Engine) endRun(cause string) {
	e.phase = PhaseGameOver
	if e.deps.Logger != nil {
		e.deps.Logger.Printf("game over: %s collision score=%d length=%d tick=%d",
			cause, e.score, len(e.segments), e.tick)
	}
	if e.deps.Metrics != nil {
		e.deps.Metrics.Add("sim_game_over_total", 1)
	}
}

// intervalForScore shrinks the cadence linearly with food eaten, clamped at
// the configured floor.
func (e *Engine) intervalForScore(score int) time.Duration {
	interval := e.cfg.BaseMoveInterval() - time.Duration(score/scorePerFood)*e.cfg.MoveIntervalStep()
	if minInterval := e.cfg.MinMoveInterval(); interval < minInterval {
		interval = minInterval
	}
	return interval
}

// rollExtraFood gives each tick a small chance of spawning bonus food. The
// roll consumes the seeded RNG, so a fixed seed yields a fixed spawn
// schedule; the cadence is tied to the tick count, never the wall clock.
func (e *Engine) rollExtraFood() {
	if e.cfg.ExtraFoodChance <= 0 || len(e.food) >= e.cfg.FoodCap {
		return
	}
	if e.deps.RNG.Float64() < e.cfg.ExtraFoodChance {
		e.spawnFood()
	}
}

func (e *Engine) foodIndex(p Point) int {
	for i, f := range e.food {
		if f == p {
			return i
		}
	}
	return -1
}

// spawnFood places one food item on a grid cell disjoint from the snake and
// every existing food item.
func (e *Engine) spawnFood() {
	cell := e.cfg.CellSize
	cols := e.cfg.WorldWidth() / cell
	rows := e.cfg.WorldHeight() / cell

	for attempt := 0; attempt < maxFoodPlacementAttempts; attempt++ {
		candidate := Point{X: e.deps.RNG.Intn(cols) * cell, Y: e.deps.RNG.Intn(rows) * cell}
		if !e.occupied(candidate) {
			e.food = append(e.food, candidate)
			return
		}
	}

	// Board is nearly full: take the first free cell instead of looping.
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			candidate := Point{X: col * cell, Y: row * cell}
			if !e.occupied(candidate) {
				e.food = append(e.food, candidate)
				return
			}
		}
	}
}

func (e *Engine) occupied(p Point) bool {
	for _, seg := range e.segments {
		if seg == p {
			return true
		}
	}
	return e.foodIndex(p) >= 0
}

var _ EngineCore = (*Engine)(nil)
