// Package audit keeps a bounded, in-memory trail of recent security
// decisions for the operator surface.
package audit

import (
	"sync"

	"github.com/google/uuid"

	"github.com/inboxagents/mail-gateway/internal/core"
)

// Entry is one recorded decision with its assigned identifier.
type Entry struct {
	ID string `json:"id"`
	core.DecisionRecord
}

// Log is a fixed-capacity ring of decision entries. When full, the oldest
// entry is overwritten.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
}

// NewLog creates a log holding at most capacity entries.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Log{
		entries: make([]Entry, capacity),
	}
}

// Record appends a decision to the trail.
func (l *Log) Record(rec core.DecisionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries[l.next] = Entry{ID: uuid.NewString(), DecisionRecord: rec}
	l.next++
	if l.next == len(l.entries) {
		l.next = 0
		l.full = true
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything retained.
func (l *Log) Recent(limit int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = len(l.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := l.next - i
		if idx < 0 {
			idx += len(l.entries)
		}
		out = append(out, l.entries[idx])
	}
	return out
}

// Len reports how many entries are currently retained.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}
