package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"lessonload/internal/pattern"
	"lessonload/internal/report"
	"lessonload/internal/runner"
	"lessonload/internal/tui/live"
)

// Start runs one load test against cfg and returns the process exit status.
// SIGINT/SIGTERM stop dispatch after the current batch.
func Start(cfg runner.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := Run(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	}
	return code
}

// Run executes the test and writes header, progress and report to w.
func Run(ctx context.Context, cfg runner.Config, w io.Writer) (int, error) {
	updates := make(runner.StatsUpdateChan, 100)
	r, err := runner.NewRunner(cfg, nil, updates)
	if err != nil {
		return 1, err
	}
	printHeader(w, r)

	var res runner.Result
	if cfg.Live {
		res, err = runLive(ctx, r, updates)
	} else {
		res, err = runHeadless(ctx, w, r, updates)
	}
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(w, "\n⚠️  Run interrupted, reporting partial results\n")
	case err != nil:
		return 1, err
	}

	rep := report.New(cfg, r.Pool.Len(), res, report.ThresholdsFor(cfg))
	if err := rep.Render(w); err != nil {
		return 1, fmt.Errorf("render report: %w", err)
	}
	return rep.Verdict.ExitCode(), nil
}

type outcome struct {
	res runner.Result
	err error
}

func runHeadless(ctx context.Context, w io.Writer, r *runner.Runner, updates runner.StatsUpdateChan) (runner.Result, error) {
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(ctx)
		done <- outcome{res, err}
	}()

	for {
		select {
		case snap := <-updates:
			printProgress(w, snap)
		case out := <-done:
			drain(w, updates)
			return out.res, out.err
		}
	}
}

// drain prints what is still buffered so the line ends at the final totals.
func drain(w io.Writer, updates runner.StatsUpdateChan) {
	for {
		select {
		case snap := <-updates:
			printProgress(w, snap)
		default:
			fmt.Fprintln(w)
			return
		}
	}
}

func runLive(ctx context.Context, r *runner.Runner, updates runner.StatsUpdateChan) (runner.Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(live.NewModel(string(r.Pattern()), updates, cancel))
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(runCtx)
		done <- outcome{res, err}
		p.Send(live.DoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		logrus.WithError(err).Warn("Live view unavailable, waiting for the run to finish")
	}
	out := <-done
	return out.res, out.err
}

func printHeader(w io.Writer, r *runner.Runner) {
	cfg := r.Cfg
	fmt.Fprintf(w, "\n🚀 STARTING LESSON PLATFORM LOAD TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target URL  : %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Run ID      : %s\n", r.RunID)
	fmt.Fprintf(w, "Pattern     : %s\n", r.Pattern())
	fmt.Fprintf(w, "Identities  : %d\n", r.Pool.Len())
	fmt.Fprintf(w, "Concurrency : %d\n", cfg.Concurrency)
	fmt.Fprintf(w, "Target      : %d scenarios\n", cfg.TargetScenarios)
	fmt.Fprintf(w, "Coverage    : %.0f%%\n", cfg.Coverage)
	fmt.Fprintf(w, "Timeout     : %s\n", cfg.Timeout)
	if r.Pattern() == pattern.Soak {
		fmt.Fprintf(w, "Duration    : %s\n", cfg.Duration)
	}
	fmt.Fprintf(w, "======================================================================\n\n")
}

func printProgress(w io.Writer, s runner.StatsSnapshot) {
	pct := live.Completion(s)
	fmt.Fprintf(w, "\r%s %3.0f%% | %s | Scn: %d/%d | Inf: %3d | OK: %d | Err: %d",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second),
		s.Scenarios, s.Target,
		s.Inflight,
		s.Success,
		s.Fail,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
