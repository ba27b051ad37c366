// Package intake validates inbound screen messages once, at the boundary,
// before they become typed commands in the tick queue. Nothing past this
// point sees a malformed message.
package intake

import (
	"time"

	"galaxy-snake/internal/net/proto"
	"galaxy-snake/internal/server"
	"galaxy-snake/internal/sim"
)

// Engine is the command sink staged commands land in.
type Engine interface {
	EnqueueCommand(sim.Command) (bool, string)
}

// CommandContext carries the collaborators needed to stage one command.
type CommandContext struct {
	Engine Engine
	Tick   func() uint64
	Now    func() time.Time
}

// StageClientCommand validates msg and enqueues it for the next tick. The
// returned reason is one of the CommandReject* constants when ok is false.
func StageClientCommand(ctx CommandContext, screenID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	var zero sim.Command

	command, ok := proto.ClientCommand(msg)
	if !ok {
		return zero, false, server.CommandRejectInvalid
	}
	if screenID == "" {
		return zero, false, server.CommandRejectUnknownScreen
	}

	command.ScreenID = screenID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Engine == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Engine.EnqueueCommand(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}
