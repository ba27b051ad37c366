package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles Prometheus metrics for the hub and tick loop and
// provides a ready-to-use /metrics handler.
type Collector struct {
	gatherer prometheus.Gatherer

	TickDuration   prometheus.Histogram
	Broadcasts     prometheus.Counter
	BroadcastBytes prometheus.Counter
	CommandsStaged *prometheus.CounterVec
	CommandDrops   *prometheus.CounterVec

	ConnectedScreens prometheus.Gauge
	SnakeLength      prometheus.Gauge
	Score            prometheus.Gauge
	FoodCount        prometheus.Gauge

	simCounters *prometheus.CounterVec
	simValues   *prometheus.GaugeVec
}

// NewCollector registers the simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickDuration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent applying commands, stepping the engine, and snapshotting, per tick.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.05},
	}), "sim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	broadcasts, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_snapshots_total",
		Help: "Total number of full-state snapshots fanned out to subscribers.",
	}), "broadcast_snapshots_total")
	if err != nil {
		return nil, err
	}

	broadcastBytes, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_bytes_total",
		Help: "Total marshaled snapshot bytes handed to subscriber send queues.",
	}), "broadcast_bytes_total")
	if err != nil {
		return nil, err
	}

	commandsStaged := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_staged_total",
		Help: "Commands accepted into the tick queue, labeled by command type.",
	}, []string{"type"})
	commandsStaged, err = registerCounterVec(reg, commandsStaged, "commands_staged_total")
	if err != nil {
		return nil, err
	}

	commandDrops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_dropped_total",
		Help: "Commands rejected at the boundary or the queue, labeled by reason and type.",
	}, []string{"reason", "type"})
	commandDrops, err = registerCounterVec(reg, commandDrops, "commands_dropped_total")
	if err != nil {
		return nil, err
	}

	connected, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "connected_screens",
		Help: "Current number of subscribed screen renderers.",
	}), "connected_screens")
	if err != nil {
		return nil, err
	}
	snakeLength, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_snake_length",
		Help: "Current snake segment count.",
	}), "sim_snake_length")
	if err != nil {
		return nil, err
	}
	score, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_score",
		Help: "Current score.",
	}), "sim_score")
	if err != nil {
		return nil, err
	}
	foodCount, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sim_food_count",
		Help: "Current number of outstanding food items.",
	}), "sim_food_count")
	if err != nil {
		return nil, err
	}

	simCounters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_events_total",
		Help: "Free-form simulation event counters, labeled by key.",
	}, []string{"key"})
	simCounters, err = registerCounterVec(reg, simCounters, "sim_events_total")
	if err != nil {
		return nil, err
	}

	simValues := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_values",
		Help: "Free-form simulation gauges, labeled by key.",
	}, []string{"key"})
	simValues, err = registerGaugeVec(reg, simValues, "sim_values")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		TickDuration:     tickDuration,
		Broadcasts:       broadcasts,
		BroadcastBytes:   broadcastBytes,
		CommandsStaged:   commandsStaged,
		CommandDrops:     commandDrops,
		ConnectedScreens: connected,
		SnakeLength:      snakeLength,
		Score:            score,
		FoodCount:        foodCount,
		simCounters:      simCounters,
		simValues:        simValues,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveTick records the cost of one cadence step and the world gauges
// derived from its snapshot.
func (c *Collector) ObserveTick(duration float64, snakeLength, score, foodCount int) {
	if c == nil {
		return
	}
	if c.TickDuration != nil {
		c.TickDuration.Observe(duration)
	}
	if c.SnakeLength != nil {
		c.SnakeLength.Set(float64(snakeLength))
	}
	if c.Score != nil {
		c.Score.Set(float64(score))
	}
	if c.FoodCount != nil {
		c.FoodCount.Set(float64(foodCount))
	}
}

// ObserveBroadcast records one snapshot fan-out.
func (c *Collector) ObserveBroadcast(bytes int) {
	if c == nil {
		return
	}
	if c.Broadcasts != nil {
		c.Broadcasts.Inc()
	}
	if c.BroadcastBytes != nil {
		c.BroadcastBytes.Add(float64(bytes))
	}
}

// SetConnectedScreens updates the subscriber gauge.
func (c *Collector) SetConnectedScreens(count int) {
	if c == nil || c.ConnectedScreens == nil {
		return
	}
	c.ConnectedScreens.Set(float64(count))
}

// RecordCommandStaged counts one accepted command by type.
func (c *Collector) RecordCommandStaged(commandType string) {
	if c == nil || c.CommandsStaged == nil {
		return
	}
	c.CommandsStaged.WithLabelValues(commandType).Inc()
}

// RecordCommandDrop counts one rejected command by reason and type.
func (c *Collector) RecordCommandDrop(reason, commandType string) {
	if c == nil || c.CommandDrops == nil {
		return
	}
	c.CommandDrops.WithLabelValues(reason, commandType).Inc()
}

// Add satisfies the telemetry.Metrics interface for free-form counters.
func (c *Collector) Add(key string, delta uint64) {
	if c == nil || c.simCounters == nil {
		return
	}
	c.simCounters.WithLabelValues(key).Add(float64(delta))
}

// Store satisfies the telemetry.Metrics interface for free-form gauges.
func (c *Collector) Store(key string, value uint64) {
	if c == nil || c.simValues == nil {
		return
	}
	c.simValues.WithLabelValues(key).Set(float64(value))
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, histogram prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return histogram, nil
}
