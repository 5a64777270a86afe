package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"lessonload/internal/catalog"
	"lessonload/internal/runner"
	"lessonload/internal/tui/styles"
)

const (
	topErrors = 10
	rule      = "======================================================================"
)

// Report is everything the console report shows.
type Report struct {
	Pattern  string
	BaseURL  string
	Identity int
	Result   runner.Result
	Verdict  Verdict
}

// ThresholdsFor reads the pass/fail bounds out of a run configuration.
func ThresholdsFor(cfg runner.Config) Thresholds {
	return Thresholds{
		MinSuccessRate:   cfg.MinSuccessRate,
		MaxAvgResponseMs: cfg.MaxAvgResponseMs,
		TargetScenarios:  cfg.TargetScenarios,
	}
}

// New evaluates th against res.
func New(cfg runner.Config, identities int, res runner.Result, th Thresholds) Report {
	return Report{
		Pattern:  cfg.Pattern,
		BaseURL:  cfg.BaseURL,
		Identity: identities,
		Result:   res,
		Verdict:  Evaluate(res.Snapshot, th),
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Render writes the report to w.
func (r Report) Render(w io.Writer) error {
	var b strings.Builder
	snap := r.Result.Snapshot

	fmt.Fprintf(&b, "\n\n📊 LOAD TEST RESULTS\n")
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Pattern        : %s\n", r.Pattern)
	fmt.Fprintf(&b, "Target         : %s\n", r.BaseURL)
	fmt.Fprintf(&b, "Total Duration : %s\n", snap.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(&b, "Identities     : %d (auth failures: %d)\n", r.Identity, snap.AuthFailures)
	fmt.Fprintf(&b, "Batches        : %d\n", len(r.Result.Summary.BatchSizes))
	fmt.Fprintf(&b, "Scenarios      : %d\n", snap.Scenarios)
	fmt.Fprintf(&b, "Requests Sent  : %d\n", snap.Requests)
	fmt.Fprintf(&b, "Success        : %d\n", snap.Success)
	fmt.Fprintf(&b, "Failures       : %d\n", snap.Fail)
	fmt.Fprintf(&b, "Success Rate   : %.2f%%\n", snap.SuccessRate())
	fmt.Fprintf(&b, "Actual RPS     : %.2f\n", snap.RequestsPerSecond())

	fmt.Fprintf(&b, "\n⏱️  RESPONSE TIMES (ms) [Success Only]\n")
	fmt.Fprintf(&b, "   Min : %.2f\n", ms(snap.MinResponse))
	fmt.Fprintf(&b, "   Avg : %.2f\n", ms(snap.AvgResponse()))
	fmt.Fprintf(&b, "   P50 : %.2f\n", ms(snap.P50))
	fmt.Fprintf(&b, "   P90 : %.2f\n", ms(snap.P90))
	fmt.Fprintf(&b, "   P95 : %.2f\n", ms(snap.P95))
	fmt.Fprintf(&b, "   P99 : %.2f\n", ms(snap.P99))
	fmt.Fprintf(&b, "   Max : %.2f\n", ms(snap.MaxResponse))

	if len(r.Result.ByTier) > 0 {
		fmt.Fprintf(&b, "\n👥 CATEGORIES\n")
		for _, tier := range catalog.Tiers {
			t := r.Result.ByTier[tier]
			fmt.Fprintf(&b, "   %-13s users %-5d scenarios %-5d requests %-6d failed %-5d auth failed %d\n",
				tier, t.Identities, t.Scenarios, t.Requests, t.Failed, t.AuthFailed)
		}
	}

	if top := snap.TopErrors(topErrors); len(top) > 0 {
		fmt.Fprintf(&b, "\n❌ TOP ERRORS\n")
		for i, e := range top {
			fmt.Fprintf(&b, "   %2d. %5d x %s\n", i+1, e.Count, e.Key)
		}
	}

	fmt.Fprintf(&b, "\n🎯 THRESHOLDS\n")
	for _, a := range r.Verdict.Assessments {
		fmt.Fprintf(&b, "   %s %-20s %-12s (%s)\n", badge(a.Passed), a.Name, a.Actual, a.Limit)
	}
	fmt.Fprintf(&b, "%s\n", rule)
	b.WriteString(banner(r.Verdict.Passed))
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func badge(passed bool) string {
	if passed {
		return styles.Success.Render("[PASS]")
	}
	return styles.Error.Render("[FAIL]")
}

func banner(passed bool) string {
	if passed {
		return styles.Verdict.BorderForeground(styles.ColorSecondary).Render(
			styles.Success.Render("✅ OVERALL RESULT: PASS"))
	}
	return styles.Verdict.BorderForeground(styles.ColorError).Render(
		styles.Error.Bold(true).Render("❌ OVERALL RESULT: FAIL"))
}
