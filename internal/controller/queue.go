package controller

import (
	"time"

	"github.com/google/uuid"

	"wavebridge/internal/core"
)

// entry is one track's slot in the active queue plus the feedback state
// already reported for it. The sent flags guard the at-most-once rule:
// once set, the matching event is never emitted again for this entry.
type entry struct {
	Track        core.Track
	PlayID       string
	StartedAt    time.Time
	StartedSent  bool
	FinishedSent bool
}

// trackQueue is the controller's cursor over the remote session's track
// sequence. Entries behind the cursor are kept so previous can step back
// through already-played tracks.
type trackQueue struct {
	entries []*entry
	cursor  int
}

func newQueue() *trackQueue {
	return &trackQueue{}
}

func (q *trackQueue) extend(tracks []core.Track) {
	for _, t := range tracks {
		q.entries = append(q.entries, &entry{Track: t, PlayID: uuid.NewString()})
	}
}

// reset replaces the whole queue, e.g. after reopening the session with
// new seeds.
func (q *trackQueue) reset(tracks []core.Track) {
	q.entries = q.entries[:0]
	q.cursor = 0
	q.extend(tracks)
}

func (q *trackQueue) current() *entry {
	if q.cursor < 0 || q.cursor >= len(q.entries) {
		return nil
	}
	return q.entries[q.cursor]
}

func (q *trackQueue) empty() bool {
	return len(q.entries) == 0
}

// advance moves the cursor to the next entry. It returns false when the
// cursor is already on the final entry.
func (q *trackQueue) advance() bool {
	if q.cursor+1 >= len(q.entries) {
		return false
	}
	q.cursor++
	return true
}

// peekNext returns the entry after the cursor without moving it, or nil
// when the cursor is on the final entry.
func (q *trackQueue) peekNext() *entry {
	if q.cursor+1 >= len(q.entries) {
		return nil
	}
	return q.entries[q.cursor+1]
}

// retreat moves the cursor to the previous entry, wrapping to the final
// entry when already at the front.
func (q *trackQueue) retreat() bool {
	if len(q.entries) == 0 {
		return false
	}
	if q.cursor == 0 {
		q.cursor = len(q.entries) - 1
	} else {
		q.cursor--
	}
	return true
}

// lowWater reports whether the queue should be refilled: the cursor sits
// on the final entry (or the queue is empty), so one more advance would
// run dry.
func (q *trackQueue) lowWater() bool {
	return len(q.entries) == 0 || q.cursor >= len(q.entries)-1
}
