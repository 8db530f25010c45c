// Package metrics keeps in-process counters and stage-duration percentiles.
package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// maxSamples bounds per-stage memory; oldest samples are overwritten.
const maxSamples = 1024

// Percentiles summarizes one stage's recorded durations.
type Percentiles struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

type stageWindow struct {
	samples []time.Duration
	next    int
	full    bool
}

// Registry tracks named counters and per-stage duration windows. Counter
// increments are atomic; percentile state is updated under a short-held lock.
type Registry struct {
	mu       sync.Mutex
	counters sync.Map // name → *int64
	stages   map[string]*stageWindow
}

func NewRegistry() *Registry {
	return &Registry{
		stages: make(map[string]*stageWindow),
	}
}

// Inc adds one to the named counter.
func (r *Registry) Inc(name string) {
	v, _ := r.counters.LoadOrStore(name, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

// Counter returns the current value of the named counter.
func (r *Registry) Counter(name string) int64 {
	v, ok := r.counters.Load(name)
	if !ok {
		return 0
	}
	return atomic.LoadInt64(v.(*int64))
}

// Observe records one duration for the named stage.
func (r *Registry) Observe(stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.stages[stage]
	if !ok {
		w = &stageWindow{samples: make([]time.Duration, maxSamples)}
		r.stages[stage] = w
	}
	w.samples[w.next] = d
	w.next++
	if w.next >= maxSamples {
		w.next = 0
		w.full = true
	}
}

// Snapshot computes percentiles for the named stage from the current window.
func (r *Registry) Snapshot(stage string) Percentiles {
	r.mu.Lock()
	w, ok := r.stages[stage]
	if !ok {
		r.mu.Unlock()
		return Percentiles{}
	}
	n := w.next
	if w.full {
		n = maxSamples
	}
	samples := make([]time.Duration, n)
	copy(samples, w.samples[:n])
	r.mu.Unlock()

	if n == 0 {
		return Percentiles{}
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return Percentiles{
		Count: int64(n),
		P50:   samples[percentileIndex(n, 0.50)],
		P95:   samples[percentileIndex(n, 0.95)],
		P99:   samples[percentileIndex(n, 0.99)],
		Max:   samples[n-1],
	}
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n)*p) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}
