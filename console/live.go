package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const refreshRate = time.Second / 10

var (
	liveTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	rankStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(4)
	scoreStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(10).Align(lipgloss.Right)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type tickMsg time.Time

// FinishedMsg tells the live view that the run is over.
type FinishedMsg struct{}

// LiveModel is a bubbletea model showing the standings and score plot while a run trains.
type LiveModel struct {
	board    *Leaderboard
	started  time.Time
	elapsed  time.Duration
	finished bool
	quit     bool
	maxRows  int
}

// NewLiveModel returns a live view over the leaderboard showing at most maxRows cars.
func NewLiveModel(board *Leaderboard, maxRows int) LiveModel {
	if maxRows <= 0 {
		maxRows = 10
	}
	return LiveModel{
		board:   board,
		started: time.Now(),
		maxRows: maxRows,
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m LiveModel) Init() tea.Cmd {
	return tick()
}

// Update refreshes on every tick and quits on q, ctrl+c or when the run finishes.
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit
		}
	case FinishedMsg:
		m.finished = true
		m.elapsed = time.Since(m.started)
		return m, tea.Quit
	case tickMsg:
		m.elapsed = time.Since(m.started)
		return m, tick()
	}
	return m, nil
}

// Quit reports whether the user asked to stop.
func (m LiveModel) Quit() bool {
	return m.quit
}

func (m LiveModel) View() string {
	var b strings.Builder

	status := "training"
	if m.finished {
		status = "finished"
	}
	b.WriteString(liveTitleStyle.Render(fmt.Sprintf("racer  %s  %s", status, m.elapsed.Round(time.Second))))
	b.WriteString("\n\n")

	for i, st := range m.board.Standings() {
		if i == m.maxRows {
			break
		}
		b.WriteString(rankStyle.Render(fmt.Sprintf("%d.", i+1)))
		b.WriteString(colorStyle(st.Color).Width(14).Render(fmt.Sprintf("car %d", st.ID)))
		b.WriteString(scoreStyle.Render(fmt.Sprintf("%d", st.Score)))
		b.WriteString(fmt.Sprintf("  %5.1f\n", st.Speed))
	}

	if plot := m.board.Plot(defaultTopN, 60, 8); plot != "" {
		b.WriteString(plot)
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("q: stop training"))
	return b.String()
}

// RunLive shows the live view until the run finishes or the user quits.
// Returns true if the user quit before the run finished.
func RunLive(board *Leaderboard, finished <-chan struct{}) (bool, error) {
	p := tea.NewProgram(NewLiveModel(board, 0))
	go func() {
		<-finished
		p.Send(FinishedMsg{})
	}()

	final, err := p.Run()
	if err != nil {
		return false, err
	}
	return final.(LiveModel).Quit(), nil
}
