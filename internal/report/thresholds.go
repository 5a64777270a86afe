package report

import (
	"fmt"
	"time"

	"lessonload/internal/stats"
)

// Thresholds are the pass/fail bounds applied once a run has finished.
type Thresholds struct {
	MinSuccessRate   float64 // percent
	MaxAvgResponseMs float64
	TargetScenarios  int
}

// Assessment is one threshold evaluated against the run.
type Assessment struct {
	Name   string
	Actual string
	Limit  string
	Passed bool
}

// Verdict is the outcome of every assessment.
type Verdict struct {
	Assessments []Assessment
	Passed      bool
}

// Evaluate judges the final metrics. All assessments must hold for a pass.
func Evaluate(snap stats.Snapshot, th Thresholds) Verdict {
	rate := snap.SuccessRate()
	avgMs := float64(snap.AvgResponse()) / float64(time.Millisecond)

	v := Verdict{Assessments: []Assessment{
		{
			Name:   "Success rate",
			Actual: fmt.Sprintf("%.2f%%", rate),
			Limit:  fmt.Sprintf(">= %.2f%%", th.MinSuccessRate),
			Passed: rate >= th.MinSuccessRate,
		},
		{
			Name:   "Avg response time",
			Actual: fmt.Sprintf("%.2f ms", avgMs),
			Limit:  fmt.Sprintf("<= %.2f ms", th.MaxAvgResponseMs),
			Passed: avgMs <= th.MaxAvgResponseMs,
		},
		{
			Name:   "Completed scenarios",
			Actual: fmt.Sprintf("%d", snap.Scenarios),
			Limit:  fmt.Sprintf(">= %d", th.TargetScenarios),
			Passed: snap.Scenarios >= uint64(th.TargetScenarios),
		},
	}}

	v.Passed = true
	for _, a := range v.Assessments {
		v.Passed = v.Passed && a.Passed
	}
	return v
}

// ExitCode is the process status for v: 0 on pass, 1 otherwise.
func (v Verdict) ExitCode() int {
	if v.Passed {
		return 0
	}
	return 1
}
