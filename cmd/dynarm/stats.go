package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tau-robotics/dynarm/pkg/dataset"
	"github.com/tau-robotics/dynarm/pkg/robot"
)

type StatsCommand struct {
	DataDir string `long:"data-dir" default:"data" description:"Dataset directory"`
}

func (c *StatsCommand) Execute(args []string) error {
	store, err := dataset.Open(c.DataDir)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer store.Close()

	episodes, err := store.Episodes()
	if err != nil {
		return fmt.Errorf("list episodes: %w", err)
	}
	if len(episodes) == 0 {
		fmt.Println("Dataset is empty. Record episodes with 'dynarm record'.")
		return nil
	}

	fmt.Println(headerStyle.Render("Episodes"))
	epRows := make([][]string, 0, len(episodes))
	for _, ep := range episodes {
		epRows = append(epRows, []string{
			fmt.Sprintf("%d", ep.Index),
			fmt.Sprintf("%d", ep.NumFrames),
			fmt.Sprintf("%d", ep.FPS),
			ep.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	fmt.Println(statsTable([]string{"Index", "Frames", "FPS", "Recorded"}, epRows))
	fmt.Println()

	state, action, err := dataset.ComputeStats(store)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	fmt.Println(headerStyle.Render("State (follower positions)"))
	fmt.Println(statsTable([]string{"Joint", "Mean", "Std", "Min", "Max"}, statsRows(state)))
	fmt.Println()
	fmt.Println(headerStyle.Render("Action (goal positions)"))
	fmt.Println(statsTable([]string{"Joint", "Mean", "Std", "Min", "Max"}, statsRows(action)))

	return nil
}

func statsRows(s *dataset.Stats) [][]string {
	motors := robot.AllMotors()
	rows := make([][]string, 0, len(s.Mean))
	for i := range s.Mean {
		// Joint names line up with the vector layout for a single
		// follower; extra dimensions are numbered.
		name := fmt.Sprintf("dim_%d", i)
		if i < len(motors) {
			name = string(motors[i])
		}
		rows = append(rows, []string{
			name,
			fmt.Sprintf("%.1f", s.Mean[i]),
			fmt.Sprintf("%.1f", s.Std[i]),
			fmt.Sprintf("%.1f", s.Min[i]),
			fmt.Sprintf("%.1f", s.Max[i]),
		})
	}
	return rows
}

func statsTable(headers []string, rows [][]string) string {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	boldStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return boldStyle
			}
			return cellStyle
		}).
		Render()
}
