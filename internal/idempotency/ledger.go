package idempotency

import (
	"errors"
	"strings"
	"sync"
)

const DefaultCapacity = 1000

// ErrDuplicate is returned when an event ID has already been recorded.
var ErrDuplicate = errors.New("duplicate event")

// Ledger is an in-memory set of processed event IDs with a soft size bound.
//
// When the bound is exceeded the oldest tenth of the entries is dropped, so a
// very old event could be accepted again after eviction. The ledger is not
// persisted; a restart forgets everything.
type Ledger struct {
	capacity int
	mu       sync.Mutex
	seen     map[string]struct{}
	order    []string
}

// NewLedger creates a ledger holding at most capacity IDs.
func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity+1),
		order:    make([]string, 0, capacity+1),
	}
}

// CheckAndRecord records eventID, or returns ErrDuplicate if it is already present.
func (l *Ledger) CheckAndRecord(eventID string) error {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return errors.New("event id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[id]; ok {
		return ErrDuplicate
	}
	l.seen[id] = struct{}{}
	l.order = append(l.order, id)

	if len(l.order) > l.capacity {
		l.evictLocked()
	}
	return nil
}

// Contains reports whether eventID is currently tracked.
func (l *Ledger) Contains(eventID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[strings.TrimSpace(eventID)]
	return ok
}

// Len returns the number of tracked IDs.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

func (l *Ledger) evictLocked() {
	batch := l.capacity / 10
	if batch < 1 {
		batch = 1
	}
	for _, id := range l.order[:batch] {
		delete(l.seen, id)
	}
	remaining := make([]string, len(l.order)-batch, l.capacity+1)
	copy(remaining, l.order[batch:])
	l.order = remaining
}
