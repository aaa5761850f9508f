package main

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tau-robotics/dynarm/pkg/bus"
)

type InfoCommand struct {
	Port string `long:"port" required:"true" description:"Serial port to inspect"`
}

// Registers shown per motor, in display order.
var infoRegisters = []bus.Register{
	bus.RegFirmwareVersion,
	bus.RegOperatingMode,
	bus.RegTorqueEnable,
	bus.RegHomingOffset,
	bus.RegPresentPosition,
	bus.RegPresentInputVoltage,
	bus.RegPresentTemperature,
	bus.RegHardwareErrorStatus,
}

func (c *InfoCommand) Execute(args []string) error {
	probe, err := bus.New(bus.Config{Port: c.Port})
	if err != nil {
		return err
	}
	if err := probe.Connect(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	found, err := probe.Scan(ctx, 1, 6)
	probe.Close()
	if err != nil {
		return fmt.Errorf("scan %s: %w", c.Port, err)
	}
	if len(found) == 0 {
		fmt.Printf("No motors found on %s\n", c.Port)
		return nil
	}

	// Rebuild the bus with one named motor per found ID so registers can
	// be read through the control table.
	motors := make([]bus.Motor, 0, len(found))
	for _, m := range found {
		motors = append(motors, bus.Motor{
			Name:  fmt.Sprintf("id_%d", m.ID),
			ID:    m.ID,
			Model: "x_series",
		})
	}
	b, err := bus.New(bus.Config{Port: c.Port, Motors: motors})
	if err != nil {
		return err
	}
	if err := b.Connect(); err != nil {
		return err
	}
	defer b.Close()

	fmt.Println(headerStyle.Render(fmt.Sprintf("Motors on %s", c.Port)))
	fmt.Println()

	headers := []string{"ID", "Model"}
	for _, reg := range infoRegisters {
		headers = append(headers, string(reg))
	}

	rows := make([][]string, 0, len(found))
	for i, m := range found {
		row := []string{fmt.Sprintf("%d", m.ID), fmt.Sprintf("%d", m.Model)}
		for _, reg := range infoRegisters {
			v, err := b.ReadOne(ctx, reg, motors[i].Name)
			if err != nil {
				row = append(row, "err")
				continue
			}
			row = append(row, fmt.Sprintf("%d", v))
		}
		rows = append(rows, row)
	}

	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	boldStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return boldStyle
			}
			return cellStyle
		})

	fmt.Println(t.Render())
	return nil
}
