package player

import (
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/camper/internal/app/queue"
)

type cmdType int

const (
	cmdPlayEntries cmdType = iota
	cmdPlayAt
	cmdAppend
	cmdInsertNext
	cmdRemoveAt
	cmdPlayPause
	cmdPause
	cmdResume
	cmdNext
	cmdPrevious
	cmdSeek
	cmdRetry
	cmdStop
)

// command is a typed message into the owner goroutine. UI, CLI and MPRIS
// all speak this vocabulary; nothing mutates the state directly.
type command struct {
	typ     cmdType
	entries []queue.Entry
	index   int
	pos     time.Duration
}

// PlayEntries replaces the queue with entries and starts playback at start.
func (m *Machine) PlayEntries(entries []queue.Entry, start int) {
	m.send(command{typ: cmdPlayEntries, entries: entries, index: start})
}

// PlayAt starts playback of the queue entry at index.
func (m *Machine) PlayAt(index int) {
	m.send(command{typ: cmdPlayAt, index: index})
}

// Append adds an entry to the end of the queue.
func (m *Machine) Append(e queue.Entry) {
	m.send(command{typ: cmdAppend, entries: []queue.Entry{e}})
}

// InsertNext queues an entry right after the current one.
func (m *Machine) InsertNext(e queue.Entry) {
	m.send(command{typ: cmdInsertNext, entries: []queue.Entry{e}})
}

// RemoveAt removes the queue entry at index. Removing the current entry
// moves playback to the next entry, or stops when none is left.
func (m *Machine) RemoveAt(index int) {
	m.send(command{typ: cmdRemoveAt, index: index})
}

// PlayPause toggles between playing and paused. From idle it starts the
// current queue entry; from error it retries.
func (m *Machine) PlayPause() {
	m.send(command{typ: cmdPlayPause})
}

// Pause pauses playback.
func (m *Machine) Pause() {
	m.send(command{typ: cmdPause})
}

// Resume resumes paused playback.
func (m *Machine) Resume() {
	m.send(command{typ: cmdResume})
}

// Next advances to the next queue entry.
func (m *Machine) Next() {
	m.send(command{typ: cmdNext})
}

// Previous retreats to the previous queue entry.
func (m *Machine) Previous() {
	m.send(command{typ: cmdPrevious})
}

// Seek jumps to an absolute position. Ignored unless playing or paused.
func (m *Machine) Seek(pos time.Duration) {
	m.send(command{typ: cmdSeek, pos: pos})
}

// Retry re-resolves and reloads the current entry after an error.
func (m *Machine) Retry() {
	m.send(command{typ: cmdRetry})
}

// Stop stops playback and returns to idle. The queue is kept.
func (m *Machine) Stop() {
	m.send(command{typ: cmdStop})
}

// send delivers a command without blocking the caller. The channel is
// large enough for any sane burst of user input; overflow is dropped.
func (m *Machine) send(cmd command) {
	select {
	case m.cmdCh <- cmd:
	default:
		zlog.Warn().Int("type", int(cmd.typ)).Msg("player: command channel full, dropping")
	}
}
