package live

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lessonload/internal/runner"
)

func TestCompletion(t *testing.T) {
	assert.Zero(t, Completion(runner.StatsSnapshot{Scenarios: 5}))
	assert.InDelta(t, 0.5, Completion(runner.StatsSnapshot{Scenarios: 5, Target: 10}), 1e-9)
	assert.Equal(t, 1.0, Completion(runner.StatsSnapshot{Scenarios: 15, Target: 10}))
}

func TestUpdateTracksSnapshots(t *testing.T) {
	updates := make(runner.StatsUpdateChan, 1)
	m := NewModel("standard", updates, nil)

	next, cmd := m.Update(runner.StatsSnapshot{Requests: 40, Fail: 2, Scenarios: 3, Target: 6, Elapsed: time.Second})
	require.NotNil(t, cmd)
	lm := next.(Model)
	assert.Equal(t, uint64(40), lm.LastReqs)
	assert.Len(t, lm.RpsLine.Data, 1)
	assert.Contains(t, lm.View(), "SCN: 3/6")
	assert.Contains(t, lm.View(), "ERR: 5.00%")
}

func TestWaitForUpdateReadsChannel(t *testing.T) {
	updates := make(runner.StatsUpdateChan, 1)
	m := NewModel("soak", updates, nil)

	updates <- runner.StatsSnapshot{Scenarios: 7}
	msg := m.Init()()
	assert.Equal(t, runner.StatsSnapshot{Scenarios: 7}, msg)

	close(updates)
	assert.Equal(t, DoneMsg{}, m.Init()())
}

func TestDoneQuits(t *testing.T) {
	m := NewModel("spike", make(runner.StatsUpdateChan), nil)
	next, cmd := m.Update(DoneMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
	assert.True(t, next.(Model).Finished)
}

func TestStopKeyCancelsOnce(t *testing.T) {
	calls := 0
	m := NewModel("rampup", make(runner.StatsUpdateChan), func() { calls++ })

	key := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}
	next, _ := m.Update(key)
	next, _ = next.(Model).Update(key)

	assert.Equal(t, 1, calls)
	assert.True(t, next.(Model).StopRequested)
	assert.Contains(t, next.(Model).View(), "Stopping after the current batch")
}
