package sim

import (
	"sync"
	"time"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to
	// per-screen queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
)

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerScreenLimit  int
	WarningStep     int
}

// LoopTickContext describes one cadence step handed to Advance.
type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta time.Duration
}

// LoopStepResult reports what a single cadence step produced.
type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        time.Duration
	Snapshot     Snapshot
	Commands     []Command
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
}

// LoopHooks lets the owning hub observe the loop without owning its
// goroutine.
type LoopHooks struct {
	NextTick       func() uint64
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation
// runner. Producers Enqueue concurrently; exactly one goroutine runs
// Advance, so the engine itself never needs a lock.
type Loop struct {
	core   EngineCore
	buffer *CommandBuffer
	hooks  LoopHooks
	config LoopConfig

	dropMu     sync.Mutex
	dropCounts map[string]uint64
}

// NewLoop wraps the provided engine core with a ring-buffer queue and loop.
func NewLoop(core EngineCore, cfg LoopConfig, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = defaultCommandCapacity
	}
	buffer := NewCommandBuffer(cfg.CommandCapacity, cfg.PerScreenLimit, core.Deps().Metrics)
	return &Loop{
		core:       core,
		buffer:     buffer,
		hooks:      hooks,
		config:     cfg,
		dropCounts: make(map[string]uint64),
	}
}

const defaultCommandCapacity = 256

// Deps returns the injected dependencies for the underlying engine.
func (l *Loop) Deps() Deps {
	if l == nil {
		return Deps{}
	}
	return l.core.Deps()
}

// Snapshot delegates to the underlying engine. Only safe before the loop
// starts or from within a hook.
func (l *Loop) Snapshot() Snapshot {
	if l == nil {
		return Snapshot{}
	}
	return l.core.Snapshot()
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// Enqueue stages a command for the next tick. Safe for concurrent use; the
// buffer enforces both the per-screen budget and the ring capacity.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	ok, reason := l.buffer.Push(cmd)
	if !ok {
		l.reportDrop(reason, cmd, l.noteDrop(cmd.ScreenID))
		return false, reason
	}
	if step := l.config.WarningStep; step > 0 {
		if length := l.buffer.Len(); length >= step && length%step == 0 {
			l.warnQueue(length)
		}
	}
	return true, ""
}

// DrainCommands clears the staged command queue without advancing the
// engine.
func (l *Loop) DrainCommands() []Command {
	if l == nil {
		return nil
	}
	return l.buffer.Drain()
}

// Advance executes a single simulation step: drain the queue in arrival
// order, apply, step the engine exactly once, snapshot.
func (l *Loop) Advance(ctx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	commands := l.buffer.Drain()
	_ = l.core.Apply(commands)
	l.core.Step(ctx.Delta)
	return LoopStepResult{
		Tick:     ctx.Tick,
		Now:      ctx.Now,
		Delta:    ctx.Delta,
		Snapshot: l.core.Snapshot(),
		Commands: commands,
	}
}

// Run drives the fixed-timestep loop until the stop channel closes. A tick
// always runs to completion before the loop yields; there is no reentrancy
// into the engine mid-tick.
func (l *Loop) Run(stop <-chan struct{}) {
	if l == nil {
		return
	}
	tickRate := l.config.TickRate
	if tickRate <= 0 {
		tickRate = defaultTickRate
	}
	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	clock := l.core.Deps().Clock
	if clock == nil {
		clock = SystemClock{}
	}
	budget := time.Second / time.Duration(tickRate)
	maxDelta := budget
	if l.config.CatchupMaxTicks > 1 {
		maxDelta = budget * time.Duration(l.config.CatchupMaxTicks)
	}

	last := clock.Now()
	var tick uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			now := clock.Now()
			delta := now.Sub(last)
			clamped := false
			if delta <= 0 {
				delta = budget
			} else if delta > maxDelta {
				delta = maxDelta
				clamped = true
			}
			last = now

			if l.hooks.NextTick != nil {
				tick = l.hooks.NextTick()
			} else {
				tick++
			}

			start := clock.Now()
			result := l.Advance(LoopTickContext{Tick: tick, Now: now, Delta: delta})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped

			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) noteDrop(screenID string) uint64 {
	if screenID == "" {
		return 0
	}
	l.dropMu.Lock()
	defer l.dropMu.Unlock()
	l.dropCounts[screenID]++
	return l.dropCounts[screenID]
}

func (l *Loop) warnQueue(length int) {
	if l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(length)
	}
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	// Log on powers of two so a flooding screen cannot flood the log too.
	if count > 0 && count&(count-1) == 0 {
		if logger := l.core.Deps().Logger; logger != nil {
			logger.Printf("[backpressure] dropping command screen=%s type=%s count=%d reason=%s",
				cmd.ScreenID, cmd.Type, count, reason)
		}
	}
}
