// console renders run progress and results in the terminal.
package console

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"racer/models"
	"racer/reinforcement"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
)

const (
	// historyCapacity bounds each vehicle's score series; full series are halved.
	historyCapacity = 600
	defaultTopN     = 3
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
)

// paletteHex maps vehicle colors to terminal colors.
var paletteHex = map[string]string{
	"red": "#ff0000", "blue": "#3f6fff", "green": "#00c000", "yellow": "#ffff00",
	"orange": "#ffa500", "purple": "#a040ff", "cyan": "#00ffff", "magenta": "#ff00ff",
	"pink": "#ffc0cb", "brown": "#a0522d", "teal": "#008080", "lime": "#00ff00",
	"maroon": "#b03060", "navy": "#4060c0", "olive": "#808000", "indigo": "#6a5acd",
	"salmon": "#fa8072", "tan": "#d2b48c", "violet": "#ee82ee", "turquoise": "#40e0d0",
}

func colorStyle(name string) lipgloss.Style {
	if hex, ok := paletteHex[name]; ok {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
	}
	return lipgloss.NewStyle()
}

// Standing is one vehicle's latest score.
type Standing struct {
	ID    int
	Color string
	Score int
	Speed float64
}

// series is one vehicle's sampled score history.
type series struct {
	points []float64
	every  int // record one point per this many score changes
	seen   int
}

func (s *series) add(score int) {
	s.seen++
	if s.seen%s.every != 0 {
		return
	}
	s.points = append(s.points, float64(score))
	if len(s.points) >= historyCapacity {
		halved := s.points[:0]
		for i := 1; i < len(s.points); i += 2 {
			halved = append(halved, s.points[i])
		}
		s.points = halved
		s.every *= 2
	}
}

// Leaderboard is a training sink keeping every vehicle's latest standing and a sampled
// score history for plots. It is safe for concurrent use.
type Leaderboard struct {
	mu        sync.Mutex
	standings map[int]*Standing
	history   map[int]*series
}

func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		standings: map[int]*Standing{},
		history:   map[int]*series{},
	}
}

// Reset forgets every vehicle, e.g. before a new run.
func (lb *Leaderboard) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.standings = map[int]*Standing{}
	lb.history = map[int]*series{}
}

func (lb *Leaderboard) standing(id int) *Standing {
	st, ok := lb.standings[id]
	if !ok {
		st = &Standing{ID: id}
		lb.standings[id] = st
	}
	return st
}

// OnTick refreshes color and speed. Scores belong to OnScoreChange once a vehicle has
// reported one, since a frame may be delivered after a newer score change.
func (lb *Leaderboard) OnTick(snapshots []models.Snapshot) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	for _, snap := range snapshots {
		st := lb.standing(snap.ID)
		st.Color = snap.Color
		st.Speed = snap.Speed
		if _, reported := lb.history[snap.ID]; !reported {
			st.Score = snap.Score
		}
	}
}

func (lb *Leaderboard) OnScoreChange(id, score int) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.standing(id).Score = score
	s, ok := lb.history[id]
	if !ok {
		s = &series{every: 1}
		lb.history[id] = s
	}
	s.add(score)
}

// Standings returns every vehicle ordered by score, best first; ties by id.
func (lb *Leaderboard) Standings() []Standing {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	standings := make([]Standing, 0, len(lb.standings))
	for _, st := range lb.standings {
		standings = append(standings, *st)
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Score != standings[j].Score {
			return standings[i].Score > standings[j].Score
		}
		return standings[i].ID < standings[j].ID
	})
	return standings
}

// History returns a copy of the vehicle's sampled score series.
func (lb *Leaderboard) History(id int) []float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if s, ok := lb.history[id]; ok {
		return append([]float64(nil), s.points...)
	}
	return nil
}

// Plot charts the score history of the top n vehicles; empty when there is nothing to plot.
func (lb *Leaderboard) Plot(n, width, height int) string {
	if n <= 0 {
		n = defaultTopN
	}
	var (
		data []float64
		ids  []string
		many [][]float64
	)
	for _, st := range lb.Standings() {
		if len(many) == n {
			break
		}
		if data = lb.History(st.ID); len(data) > 1 {
			many = append(many, data)
			ids = append(ids, fmt.Sprintf("%d", st.ID))
		}
	}
	if len(many) == 0 {
		return ""
	}
	graph := asciigraph.PlotMany(many,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("score of cars "+strings.Join(ids, ", ")),
	)
	return graphStyle.Render(graph)
}

// RenderResult renders the final standings of a run as a table, best first.
func RenderResult(result reinforcement.RunResult) string {
	vehicles := append([]reinforcement.VehicleResult(nil), result.Vehicles...)
	sort.SliceStable(vehicles, func(i, j int) bool {
		return vehicles[i].Score > vehicles[j].Score
	})

	rows := make([][]string, len(vehicles))
	for i, vr := range vehicles {
		stopped := ""
		if vr.Stopped {
			stopped = "stopped"
		}
		rows[i] = []string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", vr.ID),
			vr.Color,
			fmt.Sprintf("%d", vr.Score),
			fmt.Sprintf("%d", vr.Steps),
			fmt.Sprintf("%d", vr.Collisions),
			fmt.Sprintf("%d", vr.PolicySize),
			stopped,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "car", "color", "score", "steps", "collisions", "policy", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 && row >= 0 && row < len(vehicles) {
				return colorStyle(vehicles[row].Color).Padding(0, 1)
			}
			return cellStyle
		})

	title := titleStyle.Render(fmt.Sprintf(
		"seed %d  steps %d  reward %.0f  policy writes %d  elapsed %s",
		result.Seed, result.Steps, result.TotalReward, result.PolicyWrites, result.Elapsed.Round(time.Millisecond)))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}
