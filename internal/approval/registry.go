package approval

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DefaultTimeout = 10 * time.Minute
	DefaultMaxAge  = 24 * time.Hour
)

type entry struct {
	record Record
	done   chan struct{}
}

// Registry holds approval records in memory. All access goes through one mutex,
// which is never held across I/O or sleeps.
type Registry struct {
	defaultTimeout time.Duration
	maxAge         time.Duration
	now            func() time.Time

	mu      sync.Mutex
	records map[string]*entry
}

// NewRegistry creates an empty registry. Non-positive values select the defaults.
func NewRegistry(defaultTimeout, maxAge time.Duration) *Registry {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Registry{
		defaultTimeout: defaultTimeout,
		maxAge:         maxAge,
		now:            time.Now,
		records:        make(map[string]*entry),
	}
}

// Create inserts a pending record. An existing record with the same run ID is replaced;
// run IDs must be unique per attempt. Records older than the max age are dropped first.
func (r *Registry) Create(runID string, summary map[string]string, timeout time.Duration) (Record, error) {
	id := strings.TrimSpace(runID)
	if id == "" {
		return Record{}, fmt.Errorf("run_id is required")
	}
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	r.Cleanup(r.maxAge)

	now := r.now().UTC()
	rec := Record{
		RunID:        id,
		Status:       StatusPending,
		OrderSummary: summary,
		CreatedAt:    now,
		ExpiresAt:    now.Add(timeout),
	}
	rec = rec.clone()
	if rec.OrderSummary == nil {
		rec.OrderSummary = map[string]string{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.records[id]; ok {
		closeDone(old)
	}
	r.records[id] = &entry{record: rec, done: make(chan struct{})}
	return rec.clone(), nil
}

// Get returns a copy of the record. A pending record past its expiry is marked expired first.
func (r *Registry) Get(runID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[strings.TrimSpace(runID)]
	if !ok {
		return Record{}, false
	}
	r.expireIfDueLocked(e)
	return e.record.clone(), true
}

// Approve records an approval. It returns false if the record is missing, expired or already decided.
func (r *Registry) Approve(runID string) bool {
	return r.decide(runID, StatusApproved, DecisionApproved)
}

// Reject records a rejection. It returns false if the record is missing, expired or already decided.
func (r *Registry) Reject(runID string) bool {
	return r.decide(runID, StatusRejected, DecisionRejected)
}

// Expire forces a pending record to expired. It returns false if the record is missing or decided.
func (r *Registry) Expire(runID string) bool {
	return r.decide(runID, StatusExpired, DecisionTimeout)
}

// Delete removes a record outright.
func (r *Registry) Delete(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := strings.TrimSpace(runID)
	e, ok := r.records[id]
	if !ok {
		return false
	}
	closeDone(e)
	delete(r.records, id)
	return true
}

// Cleanup removes records created before now-maxAge and returns how many were removed.
func (r *Registry) Cleanup(maxAge time.Duration) int {
	if maxAge <= 0 {
		maxAge = r.maxAge
	}
	cutoff := r.now().UTC().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.records {
		if e.record.CreatedAt.Before(cutoff) {
			closeDone(e)
			delete(r.records, id)
			removed++
		}
	}
	return removed
}

// PendingCount returns the number of records still awaiting a decision.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.records {
		r.expireIfDueLocked(e)
		if e.record.Status == StatusPending {
			count++
		}
	}
	return count
}

// Done returns a channel that is closed once the record is decided or removed.
// It returns nil for unknown run IDs.
func (r *Registry) Done(runID string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[strings.TrimSpace(runID)]
	if !ok {
		return nil
	}
	return e.done
}

func (r *Registry) decide(runID string, status Status, decision Decision) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.records[strings.TrimSpace(runID)]
	if !ok {
		return false
	}
	r.expireIfDueLocked(e)
	if e.record.Decided() {
		return false
	}

	now := r.now().UTC()
	e.record.Status = status
	e.record.Decision = decision
	e.record.DecidedAt = &now
	closeDone(e)
	return true
}

func (r *Registry) expireIfDueLocked(e *entry) {
	if e.record.Decided() {
		return
	}
	now := r.now().UTC()
	if now.Before(e.record.ExpiresAt) {
		return
	}
	e.record.Status = StatusExpired
	e.record.Decision = DecisionTimeout
	e.record.DecidedAt = &now
	closeDone(e)
}

func closeDone(e *entry) {
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}
