// Package player provides the playback state machine coordinating the
// queue, the audio engine and external control surfaces.
package player

import (
	"time"

	"github.com/osa030/camper/internal/app/queue"
)

// Status represents the playback status.
type Status int

const (
	StatusIdle    Status = iota // Nothing loaded
	StatusLoading               // Resolving the stream and waiting for the engine
	StatusPlaying               // Track is playing
	StatusPaused                // Track is paused
	StatusError                 // Playback failed; queue cursor kept for retry
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the authoritative "now playing" snapshot. It is produced only
// by the machine's owner goroutine; subscribers observe immutable copies.
type State struct {
	Status   Status
	Entry    *queue.Entry  // Current entry (nil when idle)
	Position time.Duration // Last reported playback position
	Err      error         // Failure cause (StatusError only)

	// Capabilities derived from the queue cursor bounds.
	CanNext bool
	CanPrev bool
}
