package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/nocturnelabs/statecraft/clients/tui"
	"github.com/nocturnelabs/statecraft/interpreter"
)

// NewTUICommand returns the tui subcommand.
func NewTUICommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Watch a chart interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chart",
				Usage: "Path to a YAML chart file (empty = built-in demo)",
			},
		},
		Action: runTUI,
	}
}

func runTUI(_ context.Context, cmd *cli.Command) error {
	chart, err := loadChart(cmd.String("chart"))
	if err != nil {
		return err
	}

	itp := interpreter.Interpret(chart, interpreter.Options{Logger: slogLogger{}})
	model := tui.NewApp(itp)

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		itp.Stop()
		return fmt.Errorf("tui: %w", err)
	}
	itp.Stop()
	return nil
}
