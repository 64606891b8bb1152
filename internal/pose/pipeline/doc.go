// Package pipeline wires the landmark layers into a running session.
//
// A Session owns one calibrated skeleton, its smoother and retargeter. Live
// sources publish frames into a Mailbox; Session.Run drains it one frame at
// a time and fans each Snapshot out to the configured sinks and recorder.
// Replay bypasses the mailbox and calls ProcessFrame directly so that
// recorded input produces the same output every time. The pipeline does not
// own domain logic; it delegates to the layer packages.
package pipeline
