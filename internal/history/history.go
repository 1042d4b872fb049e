// Package history provides the append-only bounded chat message log.
// The log retains only the most recent entries; once the cap is reached
// the oldest messages are silently discarded.
package history

import (
	"sync"

	"github.com/chatkit/chatroom/internal/event"
)

// Log is a bounded, append-only message history. It is safe for
// concurrent use.
type Log struct {
	mu      sync.RWMutex
	entries []event.Message
	limit   int
}

// NewLog creates a message log retaining at most limit entries.
// A non-positive limit falls back to a cap of 1.
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = 1
	}
	return &Log{
		entries: make([]event.Message, 0, limit),
		limit:   limit,
	}
}

// Append adds a message to the log, discarding the oldest entry if the
// log is at capacity.
func (l *Log) Append(msg event.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == l.limit {
		// Shift in place rather than re-slicing so the backing array
		// does not grow without bound.
		copy(l.entries, l.entries[1:])
		l.entries[len(l.entries)-1] = msg
		return
	}

	l.entries = append(l.entries, msg)
}

// Snapshot returns a copy of the retained messages in insertion order.
// The returned slice is owned by the caller.
func (l *Log) Snapshot() []event.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]event.Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Limit returns the retention cap.
func (l *Log) Limit() int {
	return l.limit
}
