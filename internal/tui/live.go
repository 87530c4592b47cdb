package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"streambench/internal/bench"
	"streambench/internal/tui/components"
	"streambench/internal/tui/styles"
)

// doneMsg signals that the sweep closed its update channel.
type doneMsg struct{}

// Model is the live sweep view: current trial, run counters, rate
// percentiles, aggregate/CPU sparklines, and overall progress.
type Model struct {
	updates bench.UpdateChan

	Progress progress.Model
	RateLine components.Sparkline
	CPULine  components.Sparkline

	Last    bench.Update
	Planned int
	Done    bool

	Width  int
	Height int
}

func NewModel(updates bench.UpdateChan, trialsPlanned int) Model {
	return Model{
		updates:  updates,
		Progress: progress.New(progress.WithDefaultGradient()),
		RateLine: components.NewSparkline(40, "Aggregate rate (units/s)", styles.Active),
		CPULine:  components.NewSparkline(40, "CPU %", styles.Warn),
		Planned:  trialsPlanned,
	}
}

func (m Model) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		u, ok := <-m.updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case bench.Update:
		m.RateLine.Add(uint64(msg.LastAggregate))
		m.CPULine.Add(uint64(msg.LastCPUPct))
		m.Last = msg

		pct := 0.0
		if m.Planned > 0 {
			pct = float64(msg.TrialsDone) / float64(m.Planned)
		}
		if pct > 1.0 {
			pct = 1.0
		}
		cmd := m.Progress.SetPercent(pct)
		return m, tea.Batch(cmd, m.waitForUpdate())

	case doneMsg:
		m.Done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Progress.Width = msg.Width - 4

		half := (msg.Width / 2) - 4
		if half < 10 {
			half = 10
		}
		m.RateLine.Width = half
		m.CPULine.Width = half
		return m, nil

	case progress.FrameMsg:
		prog, cmd := m.Progress.Update(msg)
		m.Progress = prog.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	s := strings.Builder{}

	s.WriteString(styles.Title.Render("streambench"))
	s.WriteString("\n\n")

	failStyle := styles.Active
	if m.Last.Fail > 0 {
		failStyle = styles.Error
	}

	col1 := fmt.Sprintf("MODE: %s\nRATE: %.1f", m.Last.Mode, m.Last.TargetRate)
	col2 := fmt.Sprintf("STREAMS: %d\nTRIAL: %d/%d", m.Last.Concurrency, m.Last.TrialsDone, m.Planned)
	col3 := fmt.Sprintf("OK: %d\nFAIL: %s", m.Last.Success, failStyle.Render(fmt.Sprintf("%d", m.Last.Fail)))

	grid := lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(col1),
		styles.Box.Render(col2),
		styles.Box.Render(col3),
	)
	s.WriteString(grid)
	s.WriteString("\n\n")

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		styles.Box.Render(m.RateLine.View()),
		styles.Box.Render(m.CPULine.View()),
	))
	s.WriteString("\n\n")

	rates := fmt.Sprintf(
		"Stream rate  P50: %.2f  |  P90: %.2f  |  P99: %.2f units/s",
		m.Last.RateP50, m.Last.RateP90, m.Last.RateP99,
	)
	s.WriteString(styles.Box.Render(rates))
	s.WriteString("\n\n")

	s.WriteString(m.Progress.View())
	s.WriteString("\n")
	s.WriteString(styles.Subtle.Render("q: quit"))

	return s.String()
}
