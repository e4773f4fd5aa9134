// Package infer is the cross-platform reasoning engine: it ingests
// events from the bus, correlates them by entity overlap, matches
// root-cause templates, detects frequency anomalies, predicts
// cascading failures, and composes a network-wide risk score.
package infer

import (
	"sync"

	"github.com/netopscore/netops-gateway/internal/model"
)

// DefaultBufferCapacity bounds the ingest ring when no capacity is
// configured. On overflow the most recent half is retained.
const DefaultBufferCapacity = 10000

// Buffer is the bounded, time-ordered ingest ring. Appends come from
// bus handlers; analytics take immutable snapshots.
type Buffer struct {
	mu       sync.RWMutex
	events   []model.Event
	capacity int
}

// NewBuffer creates a buffer with the given capacity
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		events:   make([]model.Event, 0, capacity/4),
		capacity: capacity,
	}
}

// Append adds an event, trimming to the most recent half on overflow
func (b *Buffer) Append(e model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, e)
	if len(b.events) > b.capacity {
		keep := b.capacity / 2
		trimmed := make([]model.Event, keep)
		copy(trimmed, b.events[len(b.events)-keep:])
		b.events = trimmed
	}
}

// Snapshot returns a copy of the current contents. Events appended
// after the snapshot is taken are not visible to the caller.
func (b *Buffer) Snapshot() []model.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]model.Event, len(b.events))
	copy(out, b.events)
	return out
}

// Len returns the current number of buffered events
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}
