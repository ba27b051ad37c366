package server

import (
	"encoding/json"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"

	"galaxy-snake/internal/net/proto"
	"galaxy-snake/internal/observability"
	"galaxy-snake/internal/sim"
	"galaxy-snake/internal/telemetry"
)

// Config carries everything the hub needs at construction time.
type Config struct {
	World     sim.WorldConfig
	Logger    telemetry.Logger
	Collector *observability.Collector
	Clock     sim.Clock
	RNG       *rand.Rand
}

// DefaultConfig matches the default three-screen wall.
func DefaultConfig() Config {
	return Config{World: sim.DefaultWorldConfig()}
}

// Hub owns the simulation loop and fans one identical snapshot out to every
// connected screen each tick. The engine is reachable only through the
// command queue; nothing outside the tick goroutine ever touches it.
type Hub struct {
	world     sim.WorldConfig
	logger    telemetry.Logger
	collector *observability.Collector
	clock     sim.Clock
	loop      *sim.Loop

	mu          sync.Mutex
	subscribers map[string]*subscriber

	tick   atomic.Uint64
	latest atomic.Value // []byte, marshaled proto.StateMessage
}

// NewHub constructs the hub, its engine, and its loop. The loop does not
// run until Run is called.
func NewHub(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	clock := cfg.Clock
	if clock == nil {
		clock = sim.SystemClock{}
	}
	world := cfg.World.Normalized()

	var metrics telemetry.Metrics = telemetry.NopMetrics{}
	if cfg.Collector != nil {
		metrics = cfg.Collector
	}

	h := &Hub{
		world:       world,
		logger:      logger,
		collector:   cfg.Collector,
		clock:       clock,
		subscribers: make(map[string]*subscriber),
	}

	engine := sim.NewEngine(world, sim.Deps{
		Logger:  logger,
		Metrics: metrics,
		Clock:   clock,
		RNG:     cfg.RNG,
	})

	h.loop = sim.NewLoop(engine, sim.LoopConfig{
		TickRate:        world.TickRate,
		CatchupMaxTicks: catchupMaxTicks,
		CommandCapacity: commandQueueCapacity,
		PerScreenLimit:  commandQueuePerScreenLimit,
		WarningStep:     commandQueueWarningStep,
	}, sim.LoopHooks{
		NextTick:  func() uint64 { return h.tick.Add(1) },
		AfterStep: h.afterStep,
		OnCommandDrop: func(reason string, cmd sim.Command) {
			h.collector.RecordCommandDrop(reason, string(cmd.Type))
		},
		OnQueueWarning: func(length int) {
			h.logger.Printf("[backpressure] command queue depth %d", length)
		},
	})

	// Seed the cached payload so the first subscriber has a snapshot to
	// render before the first tick lands.
	if payload, err := h.marshalState(engine.Snapshot()); err == nil {
		h.latest.Store(payload)
	} else {
		logger.Printf("failed to marshal initial state: %v", err)
	}

	return h
}

// World returns the immutable world configuration.
func (h *Hub) World() sim.WorldConfig { return h.world }

// Tick reports the most recently completed tick number.
func (h *Hub) Tick() uint64 { return h.tick.Load() }

// Run drives the simulation loop until the stop channel closes.
func (h *Hub) Run(stop <-chan struct{}) { h.loop.Run(stop) }

// EnqueueCommand stages a command for the next tick.
func (h *Hub) EnqueueCommand(cmd sim.Command) (bool, string) {
	ok, reason := h.loop.Enqueue(cmd)
	if ok {
		h.collector.RecordCommandStaged(string(cmd.Type))
	}
	return ok, reason
}

// Subscribe registers a screen connection. The latest full snapshot is
// queued as the subscriber's first frame before the subscriber becomes
// visible to the broadcast fan-out, so a tick landing mid-subscribe can
// never jump ahead of it. A reconnecting screen replaces its previous
// connection.
func (h *Hub) Subscribe(screenID string, conn subscriberConn) *subscriber {
	sub := newSubscriber(conn, h.queueTelemetry())
	sub.onError = func(err error) {
		h.logger.Printf("dropping screen %s after failed send: %v", screenID, err)
		h.dropSubscriber(screenID, sub)
	}

	h.mu.Lock()
	if existing, ok := h.subscribers[screenID]; ok {
		existing.Close()
	}
	if payload := h.latestPayload(); payload != nil {
		// Fresh queue, cannot be full.
		_ = sub.EnqueueBroadcast(h.clock.Now().Add(writeWait), payload)
	}
	h.subscribers[screenID] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	h.collector.SetConnectedScreens(count)
	h.logger.Printf("screen %s subscribed (%d connected)", screenID, count)
	return sub
}

// Disconnect removes a screen and closes its connection. Unknown ids are a
// no-op.
func (h *Hub) Disconnect(screenID string) {
	h.mu.Lock()
	sub, ok := h.subscribers[screenID]
	if ok {
		delete(h.subscribers, screenID)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	sub.Close()
	h.collector.SetConnectedScreens(count)
	h.logger.Printf("screen %s disconnected (%d connected)", screenID, count)
}

// ConnectedScreens lists the currently subscribed screen ids.
func (h *Hub) ConnectedScreens() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.subscribers))
	for id := range h.subscribers {
		ids = append(ids, id)
	}
	return ids
}

// PendingCommands reports the staged command count, for diagnostics.
func (h *Hub) PendingCommands() int { return h.loop.Pending() }

func (h *Hub) afterStep(result sim.LoopStepResult) {
	payload, err := h.marshalState(result.Snapshot)
	if err != nil {
		h.logger.Printf("failed to marshal state message: %v", err)
		return
	}
	h.latest.Store(payload)
	h.collector.ObserveTick(
		result.Duration.Seconds(),
		len(result.Snapshot.Snake.Segments),
		result.Snapshot.Score,
		len(result.Snapshot.Food),
	)
	h.broadcast(payload)
}

// broadcast hands the payload to every subscriber's send queue. The fan-out
// never blocks: a full queue drops this frame for that screen only.
func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	deadline := h.clock.Now().Add(writeWait)
	for id, sub := range subs {
		if err := sub.EnqueueBroadcast(deadline, payload); err != nil {
			h.logger.Printf("skipping snapshot for backed-up screen %s: %v", id, err)
		}
	}
	h.collector.ObserveBroadcast(len(payload))
}

func (h *Hub) marshalState(snapshot sim.Snapshot) ([]byte, error) {
	msg := proto.StateFromSnapshot(snapshot, h.clock.Now().UnixMilli())
	return json.Marshal(msg)
}

func (h *Hub) latestPayload() []byte {
	if payload, ok := h.latest.Load().([]byte); ok {
		return payload
	}
	return nil
}

func (h *Hub) dropSubscriber(screenID string, sub *subscriber) {
	h.mu.Lock()
	current, ok := h.subscribers[screenID]
	if ok && current == sub {
		delete(h.subscribers, screenID)
	} else {
		ok = false
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	sub.Close()
	if ok {
		h.collector.SetConnectedScreens(count)
	}
}

func (h *Hub) queueTelemetry() queueTelemetry {
	if h.collector == nil {
		return nil
	}
	return collectorQueueTelemetry{collector: h.collector}
}

type collectorQueueTelemetry struct {
	collector *observability.Collector
}

func (t collectorQueueTelemetry) RecordSubscriberQueueDepth(depth int) {
	t.collector.Store("subscriber_send_queue_depth", uint64(depth))
}

func (t collectorQueueTelemetry) RecordSubscriberQueueDrop(depth int) {
	t.collector.Add("subscriber_send_queue_drops_total", 1)
}
