// Package queue provides the ordered play queue with a cursor.
package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/osa030/camper/internal/domain/catalog"
)

// Entry is a queued track plus the browsing context it came from. The
// origin is used only for display and "open in browser".
type Entry struct {
	ID      string // Unique within the session
	Track   catalog.Track
	Origin  catalog.Origin
	AddedAt time.Time
}

// NewEntry builds a queue entry for a track.
func NewEntry(track catalog.Track, origin catalog.Origin) Entry {
	return Entry{
		ID:      uuid.New().String(),
		Track:   track,
		Origin:  origin,
		AddedAt: time.Now(),
	}
}

// Queue is an ordered, mutable sequence of entries with a current-position
// cursor. Pure in-memory structure: no I/O, no locking — it is owned and
// mutated exclusively by the player's owner goroutine.
//
// The cursor is -1 when unset (empty or cleared queue) and len(entries)
// when playback ran past the last entry. The past-end sentinel is distinct
// from empty so the state machine stops instead of wrapping.
type Queue struct {
	entries []Entry
	cursor  int
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{cursor: -1}
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Cursor returns the raw cursor position in [-1, Len()].
func (q *Queue) Cursor() int {
	return q.cursor
}

// Entries returns a copy of the queued entries.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Append adds an entry at the end.
func (q *Queue) Append(e Entry) {
	q.entries = append(q.entries, e)
}

// InsertNext inserts an entry right after the cursor, so it plays next.
// With an unset or past-end cursor it appends.
func (q *Queue) InsertNext(e Entry) {
	if q.cursor < 0 || q.cursor >= len(q.entries) {
		q.Append(e)
		return
	}
	at := q.cursor + 1
	q.entries = append(q.entries, Entry{})
	copy(q.entries[at+1:], q.entries[at:])
	q.entries[at] = e
}

// RemoveAt removes the entry at index and reports whether it was the
// current one. Removing before the cursor shifts the cursor back so the
// current entry is preserved; removing the current entry leaves the cursor
// pointing at the next entry (or past-end).
func (q *Queue) RemoveAt(index int) (Entry, bool) {
	if index < 0 || index >= len(q.entries) {
		return Entry{}, false
	}
	removed := q.entries[index]
	wasCurrent := index == q.cursor

	q.entries = append(q.entries[:index], q.entries[index+1:]...)
	switch {
	case len(q.entries) == 0:
		q.cursor = -1
	case index < q.cursor:
		q.cursor--
	case q.cursor > len(q.entries):
		q.cursor = len(q.entries)
	}
	return removed, wasCurrent
}

// MoveCursorTo points the cursor at index. Reports false for out-of-range.
func (q *Queue) MoveCursorTo(index int) bool {
	if index < 0 || index >= len(q.entries) {
		return false
	}
	q.cursor = index
	return true
}

// Current returns the entry under the cursor, or false at a boundary
// sentinel (unset or past-end).
func (q *Queue) Current() (*Entry, bool) {
	if q.cursor < 0 || q.cursor >= len(q.entries) {
		return nil, false
	}
	e := q.entries[q.cursor]
	return &e, true
}

// Advance moves the cursor forward and returns the new current entry.
// Past the last entry it returns false and parks the cursor at the
// past-end sentinel.
func (q *Queue) Advance() (*Entry, bool) {
	if len(q.entries) == 0 {
		q.cursor = -1
		return nil, false
	}
	if q.cursor >= len(q.entries)-1 {
		q.cursor = len(q.entries)
		return nil, false
	}
	q.cursor++
	e := q.entries[q.cursor]
	return &e, true
}

// Previous moves the cursor back and returns the new current entry, or
// false when already at the first entry (the cursor does not move).
func (q *Queue) Previous() (*Entry, bool) {
	if len(q.entries) == 0 || q.cursor <= 0 {
		return nil, false
	}
	if q.cursor > len(q.entries) {
		q.cursor = len(q.entries)
	}
	q.cursor--
	e := q.entries[q.cursor]
	return &e, true
}

// CanAdvance reports whether a next entry exists.
func (q *Queue) CanAdvance() bool {
	return q.cursor < len(q.entries)-1
}

// CanRetreat reports whether a previous entry exists.
func (q *Queue) CanRetreat() bool {
	return len(q.entries) > 0 && q.cursor > 0
}

// Replace swaps the queue contents and points the cursor at start.
// An out-of-range start leaves the cursor unset.
func (q *Queue) Replace(entries []Entry, start int) {
	q.entries = make([]Entry, len(entries))
	copy(q.entries, entries)
	if start < 0 || start >= len(q.entries) {
		q.cursor = -1
		return
	}
	q.cursor = start
}

// Clear removes all entries and unsets the cursor.
func (q *Queue) Clear() {
	q.entries = nil
	q.cursor = -1
}
