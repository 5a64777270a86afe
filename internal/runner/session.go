package runner

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"lessonload/internal/identity"
)

const (
	progressEvery = 100
	summaryEvery  = 500
)

// Simulate runs one scenario for id: authenticate unless a credential is
// cached, then call the selected endpoints one after another. Individual call
// failures are recorded and never stop the traversal.
func (r *Runner) Simulate(ctx context.Context, id *identity.Identity) {
	// A started batch always runs to completion, even if the run is cancelled.
	ctx = context.WithoutCancel(ctx)

	if id.AuthFailed {
		return
	}
	if !id.Authenticated() {
		if err := r.Authenticate(ctx, id); err != nil {
			r.failAuthentication(id, err)
			return
		}
	}

	for i, ep := range r.selection[id.Category] {
		if i > 0 && r.Cfg.Pacing > 0 {
			time.Sleep(r.Cfg.Pacing)
		}
		res := r.Execute(ctx, ep, id)
		if res.Failed() {
			key := ErrorKey(ep.Name, res)
			id.Metrics.RecordFailure(ep.Name, key)
			r.Stats.AddFailure(key)
			continue
		}
		id.Metrics.RecordSuccess(ep.Name, res.Elapsed)
		r.Stats.AddSuccess(res.Elapsed)
	}

	id.Metrics.ScenariosRun++
	r.scenarioDone(r.Stats.AddScenario())
}

func (r *Runner) failAuthentication(id *identity.Identity, err error) {
	key := authEndpoint + " (exception)"
	var ae *AuthError
	if errors.As(err, &ae) {
		key = ae.Key
	}
	id.AuthFailed = true
	id.Metrics.RecordFailure(authEndpoint, key)
	r.Stats.AddAuthFailure(key)

	logrus.WithFields(logrus.Fields{
		"user":     id.Username,
		"category": id.Category,
		"error":    err,
	}).Warn("Authentication failed, skipping session")
}

func (r *Runner) scenarioDone(n uint64) {
	if n%progressEvery != 0 {
		return
	}
	fields := logrus.Fields{
		"completed":  n,
		"target":     r.Cfg.TargetScenarios,
		"error_rate": r.Stats.ErrorRate(),
	}
	if n%summaryEvery == 0 {
		snap := r.Stats.Snapshot()
		fields["requests"] = snap.Requests
		fields["failures"] = snap.Fail
		fields["success_rate"] = snap.SuccessRate()
		fields["avg_response"] = snap.AvgResponse().Round(time.Millisecond)
		logrus.WithFields(fields).Info("Scenario milestone")
		return
	}
	logrus.WithFields(fields).Info("Scenarios completed")
}
