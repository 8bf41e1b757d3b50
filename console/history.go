package console

import (
	"fmt"
	"time"

	"racer/history"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderHistory renders saved runs as a table, one row per run with its leader.
func RenderHistory(runs []history.Run) string {
	rows := make([][]string, len(runs))
	leaders := make([]string, len(runs))
	for i := range runs {
		run := &runs[i]
		leader := "-"
		if vr, ok := run.Leader(); ok {
			leader = fmt.Sprintf("car %d (%d)", vr.VehicleID, vr.Score)
			leaders[i] = vr.Color
		}
		rows[i] = []string{
			fmt.Sprintf("%d", run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			fmt.Sprintf("%d", run.Seed),
			fmt.Sprintf("%d", run.Vehicles),
			fmt.Sprintf("%d", run.Steps),
			fmt.Sprintf("%.0f", run.TotalReward),
			fmt.Sprintf("%d", run.PolicyWrites),
			(time.Duration(run.ElapsedMillis) * time.Millisecond).String(),
			leader,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("run", "started", "seed", "cars", "steps", "reward", "writes", "elapsed", "leader").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 8 && row >= 0 && row < len(leaders) {
				return colorStyle(leaders[row]).Padding(0, 1)
			}
			return cellStyle
		})
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(fmt.Sprintf("%d runs", len(runs))),
		t.Render())
}
