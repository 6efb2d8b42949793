package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/inboxagents/mail-gateway/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(i int) core.DecisionRecord {
	return core.DecisionRecord{
		Timestamp: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
		AgentName: "task",
		Sender:    fmt.Sprintf("sender%d@customer.example.com", i),
		Allowed:   i%2 == 0,
	}
}

func TestLogRecordAndRecent(t *testing.T) {
	l := NewLog(10)
	assert.Equal(t, 0, l.Len())

	for i := 0; i < 3; i++ {
		l.Record(record(i))
	}
	assert.Equal(t, 3, l.Len())

	entries := l.Recent(0)
	require.Len(t, entries, 3)
	// Newest first.
	assert.Equal(t, "sender2@customer.example.com", entries[0].Sender)
	assert.Equal(t, "sender0@customer.example.com", entries[2].Sender)

	// Every entry carries an identifier.
	for _, e := range entries {
		assert.NotEmpty(t, e.ID)
	}
}

func TestLogRecentLimit(t *testing.T) {
	l := NewLog(10)
	for i := 0; i < 5; i++ {
		l.Record(record(i))
	}

	entries := l.Recent(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "sender4@customer.example.com", entries[0].Sender)
	assert.Equal(t, "sender3@customer.example.com", entries[1].Sender)

	// A limit beyond the retained size returns everything.
	assert.Len(t, l.Recent(100), 5)
}

func TestLogOverwritesOldestWhenFull(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.Record(record(i))
	}

	assert.Equal(t, 3, l.Len())

	entries := l.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "sender4@customer.example.com", entries[0].Sender)
	assert.Equal(t, "sender3@customer.example.com", entries[1].Sender)
	assert.Equal(t, "sender2@customer.example.com", entries[2].Sender)
}

func TestLogDefaultCapacity(t *testing.T) {
	l := NewLog(0)
	l.Record(record(1))
	assert.Equal(t, 1, l.Len())
}
