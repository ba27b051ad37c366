package sim

import "sync"

// Metric keys for the staged-command queue.
const (
	commandQueueDepthMetricKey    = "command_queue_depth"
	commandQueueOverflowMetricKey = "command_queue_overflow_total"
	commandQueueThrottleMetricKey = "command_queue_throttled_total"
)

// CommandBuffer is the staging area between the screen sockets and the tick
// goroutine: a fixed-capacity FIFO ring with a per-screen budget. Screens
// push concurrently; the tick goroutine drains everything immediately before
// each step, which also opens a fresh budget window for every screen. A
// flooding screen therefore exhausts only its own budget, never the window
// of the other screens.
type CommandBuffer struct {
	mu        sync.Mutex
	data      []Command
	head      int
	tail      int
	count     int
	perScreen map[string]int
	limit     int
	metrics   telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewCommandBuffer sizes the ring at capacity and caps any single screen at
// perScreenLimit staged commands per drain window. A limit of zero disables
// the cap.
func NewCommandBuffer(capacity, perScreenLimit int, metrics telemetryMetrics) *CommandBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &CommandBuffer{
		data:      make([]Command, capacity),
		perScreen: make(map[string]int),
		limit:     perScreenLimit,
		metrics:   metrics,
	}
}

// Capacity reports the maximum number of commands the ring can hold.
func (b *CommandBuffer) Capacity() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Push stages a command. A screen over its budget is rejected with
// CommandRejectQueueLimit; a saturated ring rejects with
// CommandRejectQueueFull. The budget is only charged when the command
// actually lands in the ring, so a full-ring rejection never costs the
// screen a slot.
func (b *CommandBuffer) Push(cmd Command) (bool, string) {
	if b == nil {
		return false, CommandRejectQueueFull
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.limit > 0 && cmd.ScreenID != "" && b.perScreen[cmd.ScreenID] >= b.limit {
		if b.metrics != nil {
			b.metrics.Add(commandQueueThrottleMetricKey, 1)
		}
		return false, CommandRejectQueueLimit
	}
	if b.count == len(b.data) {
		if b.metrics != nil {
			b.metrics.Add(commandQueueOverflowMetricKey, 1)
		}
		return false, CommandRejectQueueFull
	}
	if cmd.ScreenID != "" {
		b.perScreen[cmd.ScreenID]++
	}
	b.data[b.tail] = cmd
	b.tail = (b.tail + 1) % len(b.data)
	b.count++
	b.storeDepthLocked()
	return true, ""
}

// Drain returns all staged commands in arrival order, clears the ring, and
// resets every screen's budget for the next window.
func (b *CommandBuffer) Drain() []Command {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.perScreen) > 0 {
		b.perScreen = make(map[string]int)
	}
	if b.count == 0 {
		return nil
	}
	commands := make([]Command, b.count)
	for i := 0; i < b.count; i++ {
		idx := (b.head + i) % len(b.data)
		commands[i] = b.data[idx]
	}
	b.head = 0
	b.tail = 0
	b.count = 0
	b.storeDepthLocked()
	return commands
}

// Len reports the number of staged commands.
func (b *CommandBuffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *CommandBuffer) storeDepthLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(commandQueueDepthMetricKey, uint64(b.count))
}
