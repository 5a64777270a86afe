package live

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lessonload/internal/runner"
	"lessonload/internal/tui/components"
	"lessonload/internal/tui/styles"
)

// DoneMsg tells the view the run has finished.
type DoneMsg struct{}

// Model renders runner snapshots while a run is in flight.
type Model struct {
	Stats    runner.StatsSnapshot
	Progress progress.Model

	RpsLine     components.Sparkline
	LatencyLine components.Sparkline

	Pattern       string
	LastUpdate    time.Time
	LastReqs      uint64
	StopRequested bool
	Finished      bool

	Width int

	updates runner.StatsUpdateChan
	stop    func()
}

// NewModel watches updates. stop is called once when the user asks to end
// the run early.
func NewModel(pattern string, updates runner.StatsUpdateChan, stop func()) Model {
	return Model{
		Progress:    progress.New(progress.WithDefaultGradient()),
		RpsLine:     components.NewSparkline(40, "RPS", styles.Active),
		LatencyLine: components.NewSparkline(40, "Latency P90 (ms)", styles.Warn),
		Pattern:     pattern,
		LastUpdate:  time.Now(),
		updates:     updates,
		stop:        stop,
	}
}

func (m Model) waitForUpdate() tea.Msg {
	snap, ok := <-m.updates
	if !ok {
		return DoneMsg{}
	}
	return snap
}

func (m Model) Init() tea.Cmd {
	return m.waitForUpdate
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case runner.StatsSnapshot:
		now := time.Now()
		dt := max(now.Sub(m.LastUpdate).Seconds(), 0.01)

		m.RpsLine.Add(float64(msg.Requests-m.LastReqs) / dt)
		m.LatencyLine.Add(msg.P90Ms)

		m.Stats = msg
		m.LastReqs = msg.Requests
		m.LastUpdate = now

		return m, tea.Batch(m.Progress.SetPercent(Completion(msg)), m.waitForUpdate)

	case DoneMsg:
		m.Finished = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !m.StopRequested && m.stop != nil {
				m.stop()
			}
			m.StopRequested = true
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Progress.Width = max(msg.Width-4, 10)
		half := max(msg.Width/2-4, 10)
		m.RpsLine.Width = half
		m.LatencyLine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

// Completion is the share of target scenarios done, capped at 1.
func Completion(s runner.StatsSnapshot) float64 {
	if s.Target <= 0 {
		return 0
	}
	return min(float64(s.Scenarios)/float64(s.Target), 1)
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render(fmt.Sprintf("Pattern: %s", m.Pattern)))
	s.WriteString("\n\n")

	errRate := 0.0
	if m.Stats.Requests > 0 {
		errRate = float64(m.Stats.Fail) / float64(m.Stats.Requests) * 100
	}

	col1 := fmt.Sprintf("REQ: %d\nINF: %d", m.Stats.Requests, m.Stats.Inflight)
	col2 := fmt.Sprintf("ERR: %.2f%%\nFAIL: %d", errRate, m.Stats.Fail)
	col3 := fmt.Sprintf("SCN: %d/%d\nTIME: %s", m.Stats.Scenarios, m.Stats.Target, m.Stats.Elapsed.Round(time.Second))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(styles.ErrorRate(errRate).Render(col2)),
		styles.Box.Render(col3),
	))
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RpsLine.View()),
		styles.Box.Render(m.LatencyLine.View()),
	))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")

	switch {
	case m.StopRequested:
		s.WriteString(styles.Warn.Render("Stopping after the current batch..."))
	case m.Finished:
		s.WriteString(styles.Success.Render("Run finished"))
	default:
		s.WriteString(styles.Subtle.Render("q: stop after current batch"))
	}
	s.WriteString("\n")

	return s.String()
}
