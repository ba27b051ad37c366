package sim

// SnakeState mirrors the snake exposed to non-simulation callers.
type SnakeState struct {
	Segments  []Point `json:"segments"`
	Direction Vec     `json:"direction"`
}

// Snapshot captures the full world state handed to every renderer once per
// tick. It is a deep copy and is never mutated after creation; a renderer
// can draw correctly from any single snapshot with zero prior history.
type Snapshot struct {
	Phase  Phase       `json:"state"`
	Score  int         `json:"score"`
	Tick   uint64      `json:"t"`
	Snake  SnakeState  `json:"snake"`
	Food   []Point     `json:"food"`
	Config WorldConfig `json:"config"`
}
