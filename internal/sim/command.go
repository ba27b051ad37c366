package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandInput  CommandType = "Input"
	CommandStart  CommandType = "Start"
	CommandPause  CommandType = "Pause"
	CommandResume CommandType = "Resume"
	CommandReset  CommandType = "Reset"
)

// InputCommand carries a buffered direction change for the snake.
type InputCommand struct {
	Direction Vec `json:"direction"`
}

// Command represents an intent captured at the network boundary for
// processing immediately before the next tick.
type Command struct {
	OriginTick uint64        `json:"originTick"`
	ScreenID   string        `json:"screenId"`
	Type       CommandType   `json:"type"`
	IssuedAt   time.Time     `json:"issuedAt"`
	Input      *InputCommand `json:"input,omitempty"`
}
