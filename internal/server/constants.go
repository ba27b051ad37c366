package server

import "time"

const (
	writeWait               = 10 * time.Second
	subscriberSendQueueSize = 8

	commandQueueCapacity       = 256
	commandQueuePerScreenLimit = 32
	commandQueueWarningStep    = 64
	catchupMaxTicks            = 4
)

// Reject reasons surfaced by the command intake boundary.
const (
	CommandRejectInvalid       = "invalid_command"
	CommandRejectUnknownScreen = "unknown_screen"
)
