package pattern

import (
	"math/rand"
	"time"

	"lessonload/internal/identity"
)

// StandardStrategy walks the pool in fixed batches of Concurrency.
type StandardStrategy struct {
	Concurrency int
}

func (s *StandardStrategy) Name() Name { return Standard }

func (s *StandardStrategy) NextBatch(pool *identity.Pool, st State) []*identity.Identity {
	return pool.Slice(st.Dispatched, st.Dispatched+s.Concurrency)
}

func (s *StandardStrategy) Done(st State) bool { return exhausted(st) }

// RampUpStrategy grows the batch by Step each round, capped at Concurrency.
type RampUpStrategy struct {
	Concurrency int
	Step        int
}

// NewRampUp starts at a tenth of concurrency (at least one).
func NewRampUp(concurrency int) *RampUpStrategy {
	step := concurrency / 10
	if step < 1 {
		step = 1
	}
	return &RampUpStrategy{Concurrency: concurrency, Step: step}
}

func (s *RampUpStrategy) Name() Name { return RampUp }

// BatchSize is the size of the n-th batch (zero based).
func (s *RampUpStrategy) BatchSize(n int) int {
	size := s.Step * (n + 1)
	if size > s.Concurrency {
		size = s.Concurrency
	}
	return size
}

func (s *RampUpStrategy) NextBatch(pool *identity.Pool, st State) []*identity.Identity {
	return pool.Slice(st.Dispatched, st.Dispatched+s.BatchSize(st.Batches))
}

func (s *RampUpStrategy) Done(st State) bool { return exhausted(st) }

// SpikeStrategy splits the pool 20/60/20; the middle phase runs at double
// concurrency. Batches never straddle a phase boundary.
type SpikeStrategy struct {
	Concurrency int
}

func (s *SpikeStrategy) Name() Name { return Spike }

// Phases returns the exclusive end offsets of the three phases.
func (s *SpikeStrategy) Phases(poolSize int) [3]int {
	return [3]int{poolSize * 20 / 100, poolSize * 80 / 100, poolSize}
}

func (s *SpikeStrategy) NextBatch(pool *identity.Pool, st State) []*identity.Identity {
	phases := s.Phases(pool.Len())
	for i, end := range phases {
		if st.Dispatched >= end {
			continue
		}
		size := s.Concurrency
		if i == 1 {
			size *= 2
		}
		to := st.Dispatched + size
		if to > end {
			to = end
		}
		return pool.Slice(st.Dispatched, to)
	}
	return nil
}

func (s *SpikeStrategy) Done(st State) bool { return exhausted(st) }

// SoakStrategy keeps sampling the pool until the scenario target is met, the
// duration has elapsed or no identity is left that can authenticate.
// Identities are drawn with replacement across batches, never twice within
// one batch.
type SoakStrategy struct {
	Concurrency int
	Target      int
	Duration    time.Duration

	rng *rand.Rand
}

func (s *SoakStrategy) Name() Name { return Soak }

func (s *SoakStrategy) NextBatch(pool *identity.Pool, st State) []*identity.Identity {
	size := s.Target - st.Completed
	if size > s.Concurrency {
		size = s.Concurrency
	}
	return pool.Sample(s.rng, size)
}

func (s *SoakStrategy) Done(st State) bool {
	return st.PoolSize == 0 || st.Elapsed >= s.Duration || st.Completed >= s.Target
}
