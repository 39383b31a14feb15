// Package mineland wires the game engine to its connections: the hub, the
// per-connection subscribers, and the staged command queue that feeds the
// single-writer loop.
package mineland

import "time"

const (
	// DefaultTickRate is the loop frequency in Hz.
	DefaultTickRate = 60

	// commandQueueCapacity bounds the staged commands between two ticks.
	commandQueueCapacity = 1024
	// perConnCommandLimit bounds how many commands one connection may stage
	// per tick before drops begin.
	perConnCommandLimit = 32
	// queueWarningStep triggers an occupancy warning every time the queue
	// grows past another multiple of this size.
	queueWarningStep = 256

	// sendBufferFrames bounds the per-subscriber outbound queue; slow
	// clients lose frames, never the loop.
	sendBufferFrames = 256
	// writeWait is the per-frame write deadline.
	writeWait = 10 * time.Second
)
