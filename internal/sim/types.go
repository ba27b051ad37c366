package sim

import "time"

// Vec is a grid direction. Valid movement vectors have exactly one axis
// set to -1 or 1.
type Vec struct {
	X int `json:"x"`
	Y int `json:"y"`
}

var (
	Up    = Vec{X: 0, Y: -1}
	Down  = Vec{X: 0, Y: 1}
	Left  = Vec{X: -1, Y: 0}
	Right = Vec{X: 1, Y: 0}
)

// IsUnit reports whether v is one of the four allowed movement vectors.
func (v Vec) IsUnit() bool {
	if v.X == 0 {
		return v.Y == -1 || v.Y == 1
	}
	return v.Y == 0 && (v.X == -1 || v.X == 1)
}

// Opposes reports whether v is the exact inverse of o.
func (v Vec) Opposes(o Vec) bool {
	return (v.X != 0 || v.Y != 0) && v.X == -o.X && v.Y == -o.Y
}

// Point is a world-space position in pixels. Every point the engine
// produces is a multiple of the configured cell size on both axes.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Phase enumerates the simulation lifecycle states.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseGameOver Phase = "gameOver"
)

// WorldConfig captures the startup parameters every process in the rig must
// agree on. It is immutable for the process lifetime; changing it requires
// a full restart of the server and every screen.
type WorldConfig struct {
	ScreenCount  int `json:"screenCount"`
	ScreenWidth  int `json:"screenWidth"`
	ScreenHeight int `json:"screenHeight"`
	CellSize     int `json:"cellSize"`

	TickRate           int     `json:"tickRate"`
	BaseMoveIntervalMS int     `json:"baseMoveIntervalMs"`
	MinMoveIntervalMS  int     `json:"minMoveIntervalMs"`
	MoveIntervalStepMS int     `json:"moveIntervalStepMs"`
	FoodCount          int     `json:"foodCount"`
	FoodCap            int     `json:"foodCap"`
	ExtraFoodChance    float64 `json:"extraFoodChance"`
	Seed               int64   `json:"seed"`
}

// WorldWidth is the full logical world width in pixels.
func (c WorldConfig) WorldWidth() int { return c.ScreenWidth }

// WorldHeight is the full logical world height in pixels: the screens stack
// vertically, each owning one horizontal band.
func (c WorldConfig) WorldHeight() int { return c.ScreenCount * c.ScreenHeight }

// BaseMoveInterval is the time between grid steps at score zero.
func (c WorldConfig) BaseMoveInterval() time.Duration {
	return time.Duration(c.BaseMoveIntervalMS) * time.Millisecond
}

// MinMoveInterval is the floor the move interval never shrinks below.
func (c WorldConfig) MinMoveInterval() time.Duration {
	return time.Duration(c.MinMoveIntervalMS) * time.Millisecond
}

// MoveIntervalStep is the shrink applied per food eaten.
func (c WorldConfig) MoveIntervalStep() time.Duration {
	return time.Duration(c.MoveIntervalStepMS) * time.Millisecond
}

// Normalized returns a config with defaults applied to unset fields.
func (c WorldConfig) Normalized() WorldConfig {
	normalized := c
	if normalized.ScreenCount <= 0 {
		normalized.ScreenCount = defaultScreenCount
	}
	if normalized.ScreenWidth <= 0 {
		normalized.ScreenWidth = defaultScreenWidth
	}
	if normalized.ScreenHeight <= 0 {
		normalized.ScreenHeight = defaultScreenHeight
	}
	if normalized.CellSize <= 0 {
		normalized.CellSize = defaultCellSize
	}
	if normalized.TickRate <= 0 {
		normalized.TickRate = defaultTickRate
	}
	if normalized.BaseMoveIntervalMS <= 0 {
		normalized.BaseMoveIntervalMS = defaultBaseMoveIntervalMS
	}
	if normalized.MinMoveIntervalMS <= 0 {
		normalized.MinMoveIntervalMS = defaultMinMoveIntervalMS
	}
	if normalized.MoveIntervalStepMS <= 0 {
		normalized.MoveIntervalStepMS = defaultMoveIntervalStepMS
	}
	if normalized.FoodCount <= 0 {
		normalized.FoodCount = defaultFoodCount
	}
	if normalized.FoodCap < normalized.FoodCount {
		normalized.FoodCap = normalized.FoodCount + defaultFoodHeadroom
	}
	if normalized.ExtraFoodChance <= 0 || normalized.ExtraFoodChance >= 1 {
		normalized.ExtraFoodChance = defaultExtraFoodChance
	}
	if normalized.Seed == 0 {
		normalized.Seed = defaultWorldSeed
	}
	return normalized
}

// DefaultWorldConfig matches a three-panel portrait video wall.
func DefaultWorldConfig() WorldConfig {
	return WorldConfig{}.Normalized()
}

const (
	defaultScreenCount  = 3
	defaultScreenWidth  = 1080
	defaultScreenHeight = 1920
	defaultCellSize     = 30

	defaultTickRate           = 60
	defaultBaseMoveIntervalMS = 200
	defaultMinMoveIntervalMS  = 60
	defaultMoveIntervalStepMS = 10
	defaultFoodCount          = 3
	defaultFoodHeadroom       = 3
	defaultExtraFoodChance    = 0.005
	defaultWorldSeed          = 1
)
