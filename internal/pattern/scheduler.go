package pattern

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"lessonload/internal/identity"
)

// SessionFunc simulates one identity. It must absorb its own errors.
type SessionFunc func(ctx context.Context, id *identity.Identity)

// Summary describes what a scheduler run dispatched.
type Summary struct {
	Pattern    Name
	BatchSizes []int
	Dispatched int
}

// Scheduler drives a Strategy batch by batch. All sessions of a batch run
// concurrently and the next batch starts only after every one has returned.
type Scheduler struct {
	Strategy Strategy
	Pool     *identity.Pool
	// Completed reports the scenario count seen by the strategy.
	Completed func() int
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run dispatches batches until the strategy is done. Cancelling ctx stops
// dispatch at the next batch boundary; in-flight batches always finish.
func (s *Scheduler) Run(ctx context.Context, session SessionFunc) (Summary, error) {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	completed := s.Completed
	if completed == nil {
		completed = func() int { return 0 }
	}

	start := now()
	sum := Summary{Pattern: s.Strategy.Name()}
	st := State{PoolSize: s.Pool.Len()}

	for {
		st.Completed = completed()
		st.Elapsed = now().Sub(start)
		if s.Strategy.Done(st) {
			break
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		batch := s.Strategy.NextBatch(s.Pool, st)
		if len(batch) == 0 {
			break
		}

		logrus.WithFields(logrus.Fields{
			"pattern":    sum.Pattern,
			"batch":      st.Batches + 1,
			"size":       len(batch),
			"dispatched": st.Dispatched,
		}).Debug("Dispatching batch")

		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				session(ctx, id)
				return nil
			})
		}
		// Sessions never return errors; Wait is the batch barrier.
		_ = g.Wait()

		st.Batches++
		st.Dispatched += len(batch)
		sum.BatchSizes = append(sum.BatchSizes, len(batch))
		sum.Dispatched = st.Dispatched
	}
	return sum, nil
}
