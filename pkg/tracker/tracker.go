package tracker

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Tracker tracks usage statistics per remote operation and job outcome.
type Tracker struct {
	mu   sync.RWMutex
	ops  map[string]*OperationStats
	jobs map[string]*int64
}

// OperationStats holds metrics for one remote operation (e.g. "runs.get").
// Fields are accessed atomically.
type OperationStats struct {
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_failures"`
	Retries     int64 `json:"retries"`
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Operations map[string]OperationStats `json:"operations"`
	Jobs       map[string]int64          `json:"jobs"`
}

// New creates a new Tracker.
func New() *Tracker {
	return &Tracker{
		ops:  make(map[string]*OperationStats),
		jobs: make(map[string]*int64),
	}
}

// getStats returns the stats object for an operation, creating it if needed.
func (t *Tracker) getStats(op string) *OperationStats {
	t.mu.RLock()
	s, ok := t.ops[op]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok = t.ops[op]; ok {
		return s
	}
	s = &OperationStats{}
	t.ops[op] = s
	return s
}

func (t *Tracker) TrackAPISuccess(op string) {
	atomic.AddInt64(&t.getStats(op).APISuccess, 1)
}

func (t *Tracker) TrackAPIFailure(op string) {
	atomic.AddInt64(&t.getStats(op).APIFailures, 1)
}

func (t *Tracker) TrackRetry(op string) {
	atomic.AddInt64(&t.getStats(op).Retries, 1)
}

// TrackJob counts a finished generation job by outcome ("completed" or an error kind).
func (t *Tracker) TrackJob(outcome string) {
	t.mu.RLock()
	c, ok := t.jobs[outcome]
	t.mu.RUnlock()
	if !ok {
		t.mu.Lock()
		if c, ok = t.jobs[outcome]; !ok {
			c = new(int64)
			t.jobs[outcome] = c
		}
		t.mu.Unlock()
	}
	atomic.AddInt64(c, 1)
}

// Snapshot returns a copy of the current stats.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := Snapshot{
		Operations: make(map[string]OperationStats, len(t.ops)),
		Jobs:       make(map[string]int64, len(t.jobs)),
	}
	for k, v := range t.ops {
		out.Operations[k] = OperationStats{
			APISuccess:  atomic.LoadInt64(&v.APISuccess),
			APIFailures: atomic.LoadInt64(&v.APIFailures),
			Retries:     atomic.LoadInt64(&v.Retries),
		}
	}
	for k, v := range t.jobs {
		out.Jobs[k] = atomic.LoadInt64(v)
	}
	return out
}

// OperationNames returns the tracked operation names in sorted order.
func (s Snapshot) OperationNames() []string {
	names := make([]string, 0, len(s.Operations))
	for k := range s.Operations {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
