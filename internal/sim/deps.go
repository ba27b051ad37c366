package sim

import (
	"math/rand"
	"time"

	"galaxy-snake/internal/telemetry"
)

// Clock abstracts wall-clock reads so tests can drive the loop manually.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Deps carries shared infrastructure dependencies required by the engine.
// The RNG must be seeded so food placement reproduces run to run.
type Deps struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Clock   Clock
	RNG     *rand.Rand
}
