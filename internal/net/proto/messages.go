// Package proto defines the JSON wire contract between the authoritative
// server and the screen renderers. The outbound payload is identical for
// every recipient; each screen derives its own offset from its configured
// index.
package proto

import (
	"galaxy-snake/internal/sim"
)

// ProtocolVersion tags every outbound message.
const ProtocolVersion = 1

// Inbound message types.
const (
	TypeInput  = "input"
	TypeStart  = "start"
	TypePause  = "pause"
	TypeResume = "resume"
	TypeReset  = "reset"
)

// TypeState tags the snapshot broadcast.
const TypeState = "state"

// Direction is a movement vector captured on a screen. Exactly one axis
// must be non-zero, and both axes lie in {-1, 0, 1}.
type Direction struct {
	X int `json:"x" jsonschema:"minimum=-1,maximum=1"`
	Y int `json:"y" jsonschema:"minimum=-1,maximum=1"`
}

// ClientMessage is the envelope every screen sends to the server.
type ClientMessage struct {
	Ver       int        `json:"ver,omitempty"`
	Type      string     `json:"type" jsonschema:"enum=input,enum=start,enum=pause,enum=resume,enum=reset"`
	Direction *Direction `json:"direction,omitempty" jsonschema:"description=Required for input messages; ignored otherwise"`
	SentAt    int64      `json:"sentAt,omitempty"`
}

// StateMessage is the full snapshot broadcast to every screen once per
// tick. Coordinates are absolute world space.
type StateMessage struct {
	Ver         int            `json:"ver"`
	Type        string         `json:"type"`
	State       sim.Phase      `json:"state"`
	Score       int            `json:"score"`
	Tick        uint64         `json:"t"`
	Snake       sim.SnakeState `json:"snake"`
	Food        []sim.Point    `json:"food"`
	WorldWidth  int            `json:"worldWidth"`
	WorldHeight int            `json:"worldHeight"`
	CellSize    int            `json:"cellSize"`
	ServerTime  int64          `json:"serverTime"`
}

// WireCatalog groups every message that crosses the screen socket so the
// schema generator can emit a single document for the whole protocol.
type WireCatalog struct {
	Client ClientMessage `json:"client"`
	State  StateMessage  `json:"state"`
}

// StateFromSnapshot flattens an engine snapshot into the broadcast shape.
func StateFromSnapshot(s sim.Snapshot, serverTime int64) StateMessage {
	return StateMessage{
		Ver:         ProtocolVersion,
		Type:        TypeState,
		State:       s.Phase,
		Score:       s.Score,
		Tick:        s.Tick,
		Snake:       s.Snake,
		Food:        s.Food,
		WorldWidth:  s.Config.WorldWidth(),
		WorldHeight: s.Config.WorldHeight(),
		CellSize:    s.Config.CellSize,
		ServerTime:  serverTime,
	}
}

// ClientCommand maps a validated inbound message onto a simulation command.
// It returns false for unknown types and for input messages whose direction
// is missing or not one of the four unit vectors.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeInput:
		if msg.Direction == nil {
			return sim.Command{}, false
		}
		dir := sim.Vec{X: msg.Direction.X, Y: msg.Direction.Y}
		if !dir.IsUnit() {
			return sim.Command{}, false
		}
		return sim.Command{Type: sim.CommandInput, Input: &sim.InputCommand{Direction: dir}}, true
	case TypeStart:
		return sim.Command{Type: sim.CommandStart}, true
	case TypePause:
		return sim.Command{Type: sim.CommandPause}, true
	case TypeResume:
		return sim.Command{Type: sim.CommandResume}, true
	case TypeReset:
		return sim.Command{Type: sim.CommandReset}, true
	default:
		return sim.Command{}, false
	}
}
