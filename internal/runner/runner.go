package runner

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lessonload/internal/catalog"
	"lessonload/internal/identity"
	"lessonload/internal/pattern"
	"lessonload/internal/stats"
)

// StatsSnapshot is pushed to live views while a run is in flight.
type StatsSnapshot struct {
	Requests  uint64
	Success   uint64
	Fail      uint64
	Scenarios uint64
	Target    int
	Inflight  int64
	P90Ms     float64
	Elapsed   time.Duration
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

type Runner struct {
	Cfg     Config
	RunID   string
	Stats   *stats.Stats
	Client  *http.Client
	Catalog catalog.Catalog
	Pool    *identity.Pool

	strategy  pattern.Strategy
	pattern   pattern.Name
	selection map[catalog.Category][]catalog.Endpoint

	inflight int64

	// Updates may be nil when nobody watches the run.
	Updates StatsUpdateChan
}

// Result is what a finished run hands to reporting.
type Result struct {
	Summary  pattern.Summary
	Snapshot stats.Snapshot
	ByTier   map[catalog.Category]TierSummary
}

// TierSummary aggregates per-identity metrics of one category.
type TierSummary struct {
	Identities int
	Scenarios  int
	Requests   int
	Failed     int
	AuthFailed int
}

// NewRunner validates cfg, materialises the identity pool and computes the
// endpoint selection of every tier once.
func NewRunner(cfg Config, cat catalog.Catalog, updates StatsUpdateChan) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cat == nil {
		cat = catalog.Default()
	}
	name, _ := cfg.PatternName()

	strategy, err := pattern.New(name, pattern.Options{
		Concurrency:     cfg.Concurrency,
		TargetScenarios: cfg.TargetScenarios,
		Duration:        cfg.Duration,
		Seed:            cfg.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	runID := uuid.NewString()[:8]
	namer, err := NewNamer(cfg.UsernameTemplate, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	pool, err := identity.Initialize(cfg.IdentityCount(), namer.Name)
	if err != nil {
		return nil, fmt.Errorf("build identity pool: %w", err)
	}

	selection := make(map[catalog.Category][]catalog.Endpoint, len(catalog.Tiers))
	for _, tier := range catalog.Tiers {
		selection[tier] = catalog.Select(cat, tier, cfg.Coverage)
	}

	maxConns := cfg.Concurrency * 2
	if maxConns < 100 {
		maxConns = 100
	}

	return &Runner{
		Cfg:       cfg,
		RunID:     runID,
		Stats:     stats.NewStats(),
		Client:    NewHTTPClient(maxConns),
		Catalog:   cat,
		Pool:      pool,
		strategy:  strategy,
		pattern:   name,
		selection: selection,
		Updates:   updates,
	}, nil
}

// Selection returns the endpoints a session of tier c walks.
func (r *Runner) Selection(c catalog.Category) []catalog.Endpoint {
	return r.selection[c]
}

func (r *Runner) Pattern() pattern.Name { return r.pattern }

// Run executes the configured load pattern to completion. A cancelled ctx
// stops dispatch after the current batch; the partial result is still
// returned alongside the context error.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	logrus.WithFields(logrus.Fields{
		"run_id":      r.RunID,
		"pattern":     r.pattern,
		"identities":  r.Pool.Len(),
		"concurrency": r.Cfg.Concurrency,
		"target":      r.Cfg.TargetScenarios,
		"base_url":    r.Cfg.BaseURL,
	}).Info("Starting load test")

	tickCtx, stopTicks := context.WithCancel(ctx)
	defer stopTicks()
	if r.Updates != nil {
		r.StartTickLoop(tickCtx, 200*time.Millisecond)
	}

	r.Stats.Start(time.Now())
	sched := &pattern.Scheduler{
		Strategy:  r.strategy,
		Pool:      r.Pool,
		Completed: r.Stats.CompletedScenarios,
	}
	sum, err := sched.Run(ctx, r.Simulate)
	r.Stats.Finish(time.Now())
	stopTicks()
	r.sendUpdate()

	res := Result{
		Summary:  sum,
		Snapshot: r.Stats.Snapshot(),
		ByTier:   r.tierSummaries(),
	}

	logrus.WithFields(logrus.Fields{
		"batches":   len(sum.BatchSizes),
		"sessions":  sum.Dispatched,
		"scenarios": res.Snapshot.Scenarios,
		"requests":  res.Snapshot.Requests,
		"duration":  res.Snapshot.Elapsed().Round(time.Millisecond),
	}).Info("Load test finished")
	return res, err
}

func (r *Runner) tierSummaries() map[catalog.Category]TierSummary {
	out := make(map[catalog.Category]TierSummary, len(catalog.Tiers))
	for _, id := range r.Pool.Identities {
		t := out[id.Category]
		t.Identities++
		t.Scenarios += id.Metrics.ScenariosRun
		t.Requests += id.Metrics.Requests()
		t.Failed += id.Metrics.Failed
		if id.AuthFailed {
			t.AuthFailed++
		}
		out[id.Category] = t
	}
	return out
}

// StartTickLoop pushes a snapshot to Updates every interval until ctx ends.
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) sendUpdate() {
	if r.Updates == nil {
		return
	}
	snap := r.Stats.Snapshot()
	s := StatsSnapshot{
		Requests:  snap.Requests,
		Success:   snap.Success,
		Fail:      snap.Fail,
		Scenarios: snap.Scenarios,
		Target:    r.Cfg.TargetScenarios,
		Inflight:  atomic.LoadInt64(&r.inflight),
		P90Ms:     float64(snap.P90) / float64(time.Millisecond),
		Elapsed:   snap.Elapsed(),
	}

	// Non-blocking send
	select {
	case r.Updates <- s:
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}
