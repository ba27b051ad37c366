package sim

import (
	"sync"
	"testing"
)

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]uint64
	values map[string]uint64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: map[string]uint64{}, values: map[string]uint64{}}
}

func (m *recordingMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] += delta
}

func (m *recordingMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

func (m *recordingMetrics) count(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func mustPush(t *testing.T, buffer *CommandBuffer, cmd Command) {
	t.Helper()
	if ok, reason := buffer.Push(cmd); !ok {
		t.Fatalf("push for screen %q rejected with %q", cmd.ScreenID, reason)
	}
}

func TestCommandBufferDrainsInFIFOOrder(t *testing.T) {
	buffer := NewCommandBuffer(4, 0, nil)

	screens := []string{"1", "2", "3"}
	for _, id := range screens {
		mustPush(t, buffer, Command{Type: CommandInput, ScreenID: id})
	}

	drained := buffer.Drain()
	if len(drained) != len(screens) {
		t.Fatalf("expected %d commands, got %d", len(screens), len(drained))
	}
	for i, id := range screens {
		if drained[i].ScreenID != id {
			t.Fatalf("command %d out of order: got %s want %s", i, drained[i].ScreenID, id)
		}
	}
	if buffer.Len() != 0 {
		t.Fatalf("drain must empty the buffer, %d left", buffer.Len())
	}
}

func TestCommandBufferWrapsAround(t *testing.T) {
	buffer := NewCommandBuffer(4, 0, nil)

	for i := 0; i < 3; i++ {
		mustPush(t, buffer, Command{ScreenID: "warmup"})
	}
	buffer.Drain()

	// Head and tail are now mid-ring; a full load must wrap cleanly.
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		mustPush(t, buffer, Command{ScreenID: id})
	}
	drained := buffer.Drain()
	for i, id := range ids {
		if drained[i].ScreenID != id {
			t.Fatalf("wrapped command %d out of order: got %s want %s", i, drained[i].ScreenID, id)
		}
	}
}

func TestCommandBufferOverflowCountsAndRejects(t *testing.T) {
	metrics := newRecordingMetrics()
	buffer := NewCommandBuffer(2, 0, metrics)

	mustPush(t, buffer, Command{ScreenID: "1"})
	mustPush(t, buffer, Command{ScreenID: "2"})
	if ok, reason := buffer.Push(Command{ScreenID: "3"}); ok || reason != CommandRejectQueueFull {
		t.Fatalf("push beyond capacity: got ok=%v reason=%q", ok, reason)
	}

	if got := metrics.count(commandQueueOverflowMetricKey); got != 1 {
		t.Fatalf("expected 1 overflow recorded, got %d", got)
	}
	if buffer.Len() != 2 || buffer.Capacity() != 2 {
		t.Fatalf("overflow must not disturb contents: len=%d cap=%d", buffer.Len(), buffer.Capacity())
	}
}

func TestCommandBufferThrottlesPerScreenPerWindow(t *testing.T) {
	metrics := newRecordingMetrics()
	buffer := NewCommandBuffer(8, 2, metrics)

	mustPush(t, buffer, Command{ScreenID: "1"})
	mustPush(t, buffer, Command{ScreenID: "1"})
	if ok, reason := buffer.Push(Command{ScreenID: "1"}); ok || reason != CommandRejectQueueLimit {
		t.Fatalf("push over the budget: got ok=%v reason=%q", ok, reason)
	}

	// Other screens keep their own budget.
	mustPush(t, buffer, Command{ScreenID: "2"})

	if got := metrics.count(commandQueueThrottleMetricKey); got != 1 {
		t.Fatalf("expected 1 throttle recorded, got %d", got)
	}

	// Draining opens a fresh window for every screen.
	buffer.Drain()
	mustPush(t, buffer, Command{ScreenID: "1"})
}

func TestCommandBufferFullRingDoesNotChargeTheBudget(t *testing.T) {
	buffer := NewCommandBuffer(2, 3, nil)

	mustPush(t, buffer, Command{ScreenID: "1"})
	mustPush(t, buffer, Command{ScreenID: "1"})

	// The ring is full but screen 1 still has a budget slot. Both of these
	// must report the ring, not the budget: a rejected command costs the
	// screen nothing.
	for i := 0; i < 2; i++ {
		if ok, reason := buffer.Push(Command{ScreenID: "1"}); ok || reason != CommandRejectQueueFull {
			t.Fatalf("attempt %d: got ok=%v reason=%q, want %q", i, ok, reason, CommandRejectQueueFull)
		}
	}
}
