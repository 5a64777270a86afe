package pattern

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"lessonload/internal/identity"
)

// Name identifies a load shape.
type Name string

const (
	Standard Name = "standard"
	RampUp   Name = "rampup"
	Spike    Name = "spike"
	Soak     Name = "soak"
)

// Names lists the recognised load shapes.
var Names = []Name{Standard, RampUp, Spike, Soak}

var ErrUnknownPattern = errors.New("unknown load pattern")

// ParseName accepts the canonical names plus "ramp-up"/"ramp_up".
func ParseName(s string) (Name, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "").Replace(norm)
	for _, n := range Names {
		if string(n) == norm {
			return n, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPattern, s)
}

// State is what a strategy sees between batches.
type State struct {
	PoolSize   int
	Batches    int
	Dispatched int
	Completed  int
	Elapsed    time.Duration
}

// Strategy decides batch membership. NextBatch is only called while Done
// returns false; an empty batch also ends the run.
type Strategy interface {
	Name() Name
	NextBatch(pool *identity.Pool, st State) []*identity.Identity
	Done(st State) bool
}

// Options carries the run settings strategies depend on.
type Options struct {
	Concurrency     int
	TargetScenarios int
	Duration        time.Duration
	// Seed drives soak sampling; zero picks a time based seed.
	Seed int64
}

// New builds the strategy for name.
func New(name Name, opts Options) (Strategy, error) {
	if opts.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be positive, got %d", opts.Concurrency)
	}
	switch name {
	case Standard:
		return &StandardStrategy{Concurrency: opts.Concurrency}, nil
	case RampUp:
		return NewRampUp(opts.Concurrency), nil
	case Spike:
		return &SpikeStrategy{Concurrency: opts.Concurrency}, nil
	case Soak:
		if opts.Duration <= 0 {
			return nil, errors.New("soak pattern requires a positive duration")
		}
		seed := opts.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return &SoakStrategy{
			Concurrency: opts.Concurrency,
			Target:      opts.TargetScenarios,
			Duration:    opts.Duration,
			rng:         rand.New(rand.NewSource(seed)),
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
}

// exhausted is the common end condition of the single pass patterns.
func exhausted(st State) bool {
	return st.Dispatched >= st.PoolSize
}
