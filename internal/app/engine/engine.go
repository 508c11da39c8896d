// Package engine defines the streaming audio backend contract consumed by
// the player state machine.
package engine

import (
	"time"

	"github.com/cockroachdb/errors"
)

// ErrNotReady is returned for commands that require a loaded stream.
var ErrNotReady = errors.New("engine not ready")

// EventType identifies a backend event.
type EventType int

const (
	EventBuffering    EventType = iota // Buffering progress update
	EventReady                         // Loaded stream is ready to play
	EventPositionTick                  // Periodic playback position report
	EventEndOfStream                   // Current stream finished
	EventError                         // Decode or network failure
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventBuffering:
		return "buffering"
	case EventReady:
		return "ready"
	case EventPositionTick:
		return "position_tick"
	case EventEndOfStream:
		return "end_of_stream"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is an asynchronous backend report delivered on the event stream.
type Event struct {
	Type EventType
	Pct  int           // Buffering percentage (EventBuffering)
	Pos  time.Duration // Playback position (EventPositionTick)
	Err  error         // Failure cause (EventError)
}

// Engine wraps a streaming audio backend for a single stream URI at a time.
//
// Load is asynchronous: it returns immediately and readiness arrives on the
// event stream. Play/Pause issued before readiness are buffered — at most
// one pending toggle, last write wins. Seek before readiness fails with
// ErrNotReady. Errors are non-fatal: the instance stays usable for the next
// Load. None of the methods block the caller on network I/O.
type Engine interface {
	Load(uri string)
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Stop()
	SetVolume(v float64)
	Events() <-chan Event
	Close()
}
