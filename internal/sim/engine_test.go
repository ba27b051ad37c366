package sim

import (
	"reflect"
	"testing"
	"time"
)

// testConfig is a 10x30 cell world: three stacked 300x300 screens.
func testConfig() WorldConfig {
	return WorldConfig{
		ScreenCount:        3,
		ScreenWidth:        300,
		ScreenHeight:       300,
		CellSize:           30,
		TickRate:           60,
		BaseMoveIntervalMS: 100,
		MinMoveIntervalMS:  40,
		MoveIntervalStepMS: 10,
		FoodCount:          2,
		FoodCap:            2,
		ExtraFoodChance:    0.25,
		Seed:               7,
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(testConfig(), Deps{})
}

func TestNewEngineStartsIdleWithSeededWorld(t *testing.T) {
	engine := newTestEngine(t)
	snapshot := engine.Snapshot()

	if snapshot.Phase != PhaseIdle {
		t.Fatalf("expected idle phase, got %q", snapshot.Phase)
	}
	if snapshot.Score != 0 || snapshot.Tick != 0 {
		t.Fatalf("expected zero score and tick, got score=%d tick=%d", snapshot.Score, snapshot.Tick)
	}

	want := []Point{{X: 150, Y: 450}, {X: 150, Y: 480}, {X: 150, Y: 510}}
	if !reflect.DeepEqual(snapshot.Snake.Segments, want) {
		t.Fatalf("unexpected initial segments: got %v want %v", snapshot.Snake.Segments, want)
	}
	if snapshot.Snake.Direction != Up {
		t.Fatalf("expected initial direction up, got %v", snapshot.Snake.Direction)
	}

	cfg := engine.Config()
	if len(snapshot.Food) != cfg.FoodCount {
		t.Fatalf("expected %d food items, got %d", cfg.FoodCount, len(snapshot.Food))
	}
	assertWorldInvariants(t, snapshot, cfg)
}

func TestStartOnlyArmsFromIdleOrGameOver(t *testing.T) {
	engine := newTestEngine(t)

	engine.Start()
	if engine.phase != PhasePlaying {
		t.Fatalf("expected playing after start, got %q", engine.phase)
	}

	// A stray start mid-run must not wipe the run.
	engine.score = 50
	engine.Start()
	if engine.phase != PhasePlaying || engine.score != 50 {
		t.Fatalf("start while playing must be a no-op, got phase=%q score=%d", engine.phase, engine.score)
	}

	engine.Pause()
	engine.Start()
	if engine.phase != PhasePaused {
		t.Fatalf("start while paused must be a no-op, got %q", engine.phase)
	}

	engine.phase = PhaseGameOver
	engine.Start()
	if engine.phase != PhasePlaying || engine.score != 0 {
		t.Fatalf("start from gameOver must reset and play, got phase=%q score=%d", engine.phase, engine.score)
	}
}

func TestPauseAndResumeTransitions(t *testing.T) {
	engine := newTestEngine(t)

	engine.Pause()
	if engine.phase != PhaseIdle {
		t.Fatalf("pause from idle must be a no-op, got %q", engine.phase)
	}
	engine.Resume()
	if engine.phase != PhaseIdle {
		t.Fatalf("resume from idle must be a no-op, got %q", engine.phase)
	}

	engine.Start()
	engine.Pause()
	if engine.phase != PhasePaused {
		t.Fatalf("expected paused, got %q", engine.phase)
	}

	tickBefore := engine.tick
	engine.Step(time.Second)
	if engine.tick != tickBefore {
		t.Fatalf("step while paused must not advance the tick counter")
	}

	engine.Resume()
	if engine.phase != PhasePlaying {
		t.Fatalf("expected playing after resume, got %q", engine.phase)
	}
	engine.Resume()
	if engine.phase != PhasePlaying {
		t.Fatalf("resume while playing must be a no-op, got %q", engine.phase)
	}
}

func TestSubmitDirectionFiltersInvalidAndReversing(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()

	for _, dir := range []Vec{{}, {X: 2}, {X: 1, Y: 1}, {Y: -2}} {
		engine.SubmitDirection("1", dir)
		if engine.nextDir != Up {
			t.Fatalf("non-unit vector %v must be discarded", dir)
		}
	}

	// Moving up: down is a 180 degree reversal.
	engine.SubmitDirection("1", Down)
	if engine.nextDir != Up {
		t.Fatalf("reversing input must be discarded")
	}

	engine.SubmitDirection("1", Left)
	if engine.nextDir != Left {
		t.Fatalf("expected buffered direction left, got %v", engine.nextDir)
	}
}

func TestLastDirectionBeforeMoveStepWins(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	engine.food = nil

	engine.SubmitDirection("1", Left)
	engine.SubmitDirection("2", Right)

	head := engine.segments[0]
	engine.Step(engine.moveInterval)
	if got := engine.segments[0]; got != (Point{X: head.X + 30, Y: head.Y}) {
		t.Fatalf("expected head to move right to %d,%d, got %v", head.X+30, head.Y, got)
	}
}

func TestMoveTimerAccumulatesAcrossSteps(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	engine.food = nil
	head := engine.segments[0]

	engine.Step(engine.moveInterval / 2)
	if engine.segments[0] != head {
		t.Fatalf("half an interval must not move the snake")
	}
	engine.Step(engine.moveInterval / 2)
	if got := engine.segments[0]; got != (Point{X: head.X, Y: head.Y - 30}) {
		t.Fatalf("expected one move after a full interval, head at %v", got)
	}

	// A large delta crosses the interval twice.
	head = engine.segments[0]
	engine.Step(2 * engine.moveInterval)
	if got := engine.segments[0]; got != (Point{X: head.X, Y: head.Y - 60}) {
		t.Fatalf("expected two moves for a double delta, head at %v", got)
	}

	if len(engine.segments) != 3 {
		t.Fatalf("moving without eating must not change length, got %d", len(engine.segments))
	}
}

func TestEatingGrowsByTwoAndShrinksInterval(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	head := engine.segments[0]
	engine.food = []Point{{X: head.X, Y: head.Y - 30}}

	engine.Step(engine.moveInterval)

	if engine.score != scorePerFood {
		t.Fatalf("expected score %d, got %d", scorePerFood, engine.score)
	}
	if len(engine.segments) != 5 {
		t.Fatalf("eating must grow the snake by exactly two, got length %d", len(engine.segments))
	}
	want := engine.cfg.BaseMoveInterval() - engine.cfg.MoveIntervalStep()
	if engine.moveInterval != want {
		t.Fatalf("expected move interval %s after one food, got %s", want, engine.moveInterval)
	}
	if len(engine.food) != 1 {
		t.Fatalf("eaten food must be replaced, got %d items", len(engine.food))
	}
	assertWorldInvariants(t, engine.Snapshot(), engine.Config())
}

func TestMoveIntervalClampsAtFloor(t *testing.T) {
	engine := newTestEngine(t)
	if got := engine.intervalForScore(10000); got != engine.cfg.MinMoveInterval() {
		t.Fatalf("expected clamped interval %s, got %s", engine.cfg.MinMoveInterval(), got)
	}
}

func TestWallCollisionEndsRun(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	engine.food = nil
	engine.SubmitDirection("1", Left)

	for i := 0; i < 40 && engine.phase == PhasePlaying; i++ {
		engine.Step(engine.moveInterval)
	}

	if engine.phase != PhaseGameOver {
		t.Fatalf("expected gameOver after hitting the wall, got %q", engine.phase)
	}
	if head := engine.segments[0]; head.X != 0 {
		t.Fatalf("run must end with the head still inside the world, head at %v", head)
	}

	// The world freezes exactly at the fatal step.
	tick := engine.tick
	engine.Step(engine.moveInterval)
	if engine.tick != tick {
		t.Fatalf("stepping after gameOver must be a no-op")
	}
}

func TestSelfCollisionEndsRun(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	engine.food = nil
	engine.segments = []Point{
		{X: 150, Y: 450},
		{X: 150, Y: 480},
		{X: 180, Y: 480},
		{X: 180, Y: 450},
		{X: 180, Y: 420},
	}
	engine.dir = Right
	engine.nextDir = Right

	engine.Step(engine.moveInterval)

	if engine.phase != PhaseGameOver {
		t.Fatalf("expected gameOver after self collision, got %q", engine.phase)
	}
}

func TestResetReturnsToIdleWithFreshWorld(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	engine.score = 70
	engine.tick = 99

	engine.Reset()

	if engine.phase != PhaseIdle || engine.score != 0 || engine.tick != 0 {
		t.Fatalf("reset must zero the run, got phase=%q score=%d tick=%d",
			engine.phase, engine.score, engine.tick)
	}
	if engine.moveInterval != engine.cfg.BaseMoveInterval() {
		t.Fatalf("reset must restore the base cadence, got %s", engine.moveInterval)
	}
	if len(engine.segments) != 3 {
		t.Fatalf("reset must rebuild the three-segment snake, got %d", len(engine.segments))
	}
}

func TestIdenticalSeedsReplayIdentically(t *testing.T) {
	script := func(engine *Engine) Snapshot {
		engine.Apply([]Command{{Type: CommandStart}})
		for i := 0; i < 120; i++ {
			switch i {
			case 10:
				engine.Apply([]Command{{Type: CommandInput, Input: &InputCommand{Direction: Left}}})
			case 25:
				engine.Apply([]Command{{Type: CommandInput, Input: &InputCommand{Direction: Down}}})
			case 40:
				engine.Apply([]Command{{Type: CommandInput, Input: &InputCommand{Direction: Right}}})
			case 60:
				engine.Apply([]Command{{Type: CommandInput, Input: &InputCommand{Direction: Up}}})
			}
			engine.Step(16 * time.Millisecond)
		}
		return engine.Snapshot()
	}

	first := script(NewEngine(testConfig(), Deps{}))
	second := script(NewEngine(testConfig(), Deps{}))

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical seeds and inputs must replay identically:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestFoodStaysDisjointAndAligned(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()

	directions := []Vec{Left, Down, Right, Up}
	for i := 0; i < 300 && engine.phase == PhasePlaying; i++ {
		if i%7 == 0 {
			engine.SubmitDirection("1", directions[(i/7)%len(directions)])
		}
		engine.Step(engine.moveInterval)
		assertWorldInvariants(t, engine.Snapshot(), engine.Config())
	}
}

// Full-size wall: 3 portrait screens, 1080x5760 world, 30px cells. An
// uncontrolled snake rides straight up, crosses two seams, and dies exactly
// once at the top edge.
func TestStraightRunAcrossTheFullWallEndsOnceAtTheTopEdge(t *testing.T) {
	engine := NewEngine(DefaultWorldConfig(), Deps{})
	engine.Start()
	engine.food = nil
	engine.segments = []Point{
		{X: 540, Y: 2880},
		{X: 540, Y: 2910},
		{X: 540, Y: 2940},
	}

	transitions := 0
	previous := engine.phase
	for i := 0; i < 200; i++ {
		engine.Step(engine.moveInterval)
		if engine.phase == PhaseGameOver && previous != PhaseGameOver {
			transitions++
		}
		previous = engine.phase
	}

	if transitions != 1 {
		t.Fatalf("expected exactly one transition to gameOver, got %d", transitions)
	}
	if head := engine.segments[0]; head.Y != 0 {
		t.Fatalf("the run must end with the head on the top row, head at %v", head)
	}

	engine.Start()
	if engine.phase != PhasePlaying {
		t.Fatalf("start must arm a new run after gameOver, got %q", engine.phase)
	}
}

func TestEatingOnTheFullWallReplacesFoodDisjointly(t *testing.T) {
	engine := NewEngine(DefaultWorldConfig(), Deps{})
	engine.Start()
	engine.segments = []Point{
		{X: 540, Y: 990},
		{X: 540, Y: 1020},
		{X: 540, Y: 1050},
	}
	eaten := Point{X: 540, Y: 960}
	engine.food = []Point{eaten}

	engine.Step(engine.moveInterval)

	if engine.score != 10 {
		t.Fatalf("expected score 10, got %d", engine.score)
	}
	if len(engine.segments) != 5 {
		t.Fatalf("expected 5 segments after eating, got %d", len(engine.segments))
	}
	if len(engine.food) != 1 {
		t.Fatalf("eaten food must be replaced, got %d items", len(engine.food))
	}
	if engine.food[0] == eaten {
		t.Fatalf("replacement food must not reuse the occupied head cell")
	}
	assertWorldInvariants(t, engine.Snapshot(), engine.Config())
}

func assertWorldInvariants(t *testing.T, snapshot Snapshot, cfg WorldConfig) {
	t.Helper()
	occupied := make(map[Point]bool, len(snapshot.Snake.Segments))
	for _, seg := range snapshot.Snake.Segments {
		occupied[seg] = true
	}
	for _, food := range snapshot.Food {
		if food.X%cfg.CellSize != 0 || food.Y%cfg.CellSize != 0 {
			t.Fatalf("food %v is not grid aligned", food)
		}
		if food.X < 0 || food.X >= cfg.WorldWidth() || food.Y < 0 || food.Y >= cfg.WorldHeight() {
			t.Fatalf("food %v is outside the world", food)
		}
		if occupied[food] {
			t.Fatalf("food %v overlaps the snake", food)
		}
		occupied[food] = true
	}
	if len(snapshot.Food) > cfg.FoodCap {
		t.Fatalf("food count %d exceeds cap %d", len(snapshot.Food), cfg.FoodCap)
	}
}
