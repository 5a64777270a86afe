package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the run-wide metrics aggregator. Every session of a batch writes
// into the same Stats, so counters are atomics and everything else sits
// behind mu. Derived figures are computed from a Snapshot, never here.
type Stats struct {
	Requests     uint64
	Success      uint64
	Fail         uint64
	Scenarios    uint64
	AuthFailures uint64

	mu            sync.Mutex
	totalResponse time.Duration
	minResponse   time.Duration
	maxResponse   time.Duration
	errors        map[string]int
	startedAt     time.Time
	endedAt       time.Time

	// Response times of successful calls.
	ResponseTime *LatencyHistogram
}

func NewStats() *Stats {
	return &Stats{
		errors:       make(map[string]int),
		ResponseTime: NewLatencyHistogram(),
	}
}

// Start stamps the run start time.
func (s *Stats) Start(t time.Time) {
	s.mu.Lock()
	s.startedAt = t
	s.mu.Unlock()
}

// Finish stamps the run end time.
func (s *Stats) Finish(t time.Time) {
	s.mu.Lock()
	s.endedAt = t
	s.mu.Unlock()
}

// AddSuccess records a call that returned a status below 400.
func (s *Stats) AddSuccess(elapsed time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	atomic.AddUint64(&s.Success, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ResponseTime.Record(elapsed)
	s.totalResponse += elapsed
	if s.minResponse == 0 || elapsed < s.minResponse {
		s.minResponse = elapsed
	}
	if elapsed > s.maxResponse {
		s.maxResponse = elapsed
	}
}

// AddFailure records a failed call under its error key.
func (s *Stats) AddFailure(key string) {
	atomic.AddUint64(&s.Requests, 1)
	atomic.AddUint64(&s.Fail, 1)

	s.mu.Lock()
	s.errors[key]++
	s.mu.Unlock()
}

// AddAuthFailure records an identity that could not authenticate. It counts
// as one failed request.
func (s *Stats) AddAuthFailure(key string) {
	atomic.AddUint64(&s.AuthFailures, 1)
	s.AddFailure(key)
}

// AddScenario counts one finished endpoint traversal and returns the new total.
func (s *Stats) AddScenario() uint64 {
	return atomic.AddUint64(&s.Scenarios, 1)
}

// CompletedScenarios is the current scenario count.
func (s *Stats) CompletedScenarios() int {
	return int(atomic.LoadUint64(&s.Scenarios))
}

// ErrorRate returns failures as a percentage of requests.
func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&s.Fail)) / float64(reqs) * 100
}

// ErrorCount is one entry of the error frequency table.
type ErrorCount struct {
	Key   string
	Count int
}

// Snapshot is a copy of the aggregator state. Timing figures and percentiles
// are read under one lock and agree with each other; the atomic counters may
// run slightly ahead of them while a run is in flight.
type Snapshot struct {
	Requests     uint64
	Success      uint64
	Fail         uint64
	Scenarios    uint64
	AuthFailures uint64

	TotalResponse time.Duration
	MinResponse   time.Duration
	MaxResponse   time.Duration
	P50           time.Duration
	P90           time.Duration
	P95           time.Duration
	P99           time.Duration
	// Samples is how many response times the percentiles cover.
	Samples int64

	Errors    map[string]int
	StartedAt time.Time
	EndedAt   time.Time
}

// Snapshot copies the current state. The run end defaults to now while a run
// is still in flight.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		Requests:      atomic.LoadUint64(&s.Requests),
		Success:       atomic.LoadUint64(&s.Success),
		Fail:          atomic.LoadUint64(&s.Fail),
		Scenarios:     atomic.LoadUint64(&s.Scenarios),
		AuthFailures:  atomic.LoadUint64(&s.AuthFailures),
		TotalResponse: s.totalResponse,
		MinResponse:   s.minResponse,
		MaxResponse:   s.maxResponse,
		Errors:        make(map[string]int, len(s.errors)),
		StartedAt:     s.startedAt,
		EndedAt:       s.endedAt,
	}
	for k, v := range s.errors {
		snap.Errors[k] = v
	}
	snap.P50 = s.ResponseTime.Quantile(50)
	snap.P90 = s.ResponseTime.Quantile(90)
	snap.P95 = s.ResponseTime.Quantile(95)
	snap.P99 = s.ResponseTime.Quantile(99)
	snap.Samples = s.ResponseTime.Count()
	s.mu.Unlock()

	if snap.EndedAt.IsZero() {
		snap.EndedAt = time.Now()
	}
	return snap
}

// Elapsed is the run wall clock.
func (s Snapshot) Elapsed() time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// AvgResponse is the mean response time of successful calls.
func (s Snapshot) AvgResponse() time.Duration {
	if s.Success == 0 {
		return 0
	}
	return s.TotalResponse / time.Duration(s.Success)
}

// SuccessRate is successful calls as a percentage of all calls.
func (s Snapshot) SuccessRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Success) * 100 / float64(s.Requests)
}

// RequestsPerSecond is throughput over the run wall clock.
func (s Snapshot) RequestsPerSecond() float64 {
	secs := s.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Requests) / secs
}

// TopErrors returns up to n error keys by descending count; ties are broken
// by key so the listing is stable.
func (s Snapshot) TopErrors(n int) []ErrorCount {
	out := make([]ErrorCount, 0, len(s.Errors))
	for k, v := range s.Errors {
		out = append(out, ErrorCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
