package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/nocturnelabs/statecraft/interpreter"
	"github.com/nocturnelabs/statecraft/machine"
	"github.com/nocturnelabs/statecraft/tracing"
)

// NewRunCommand returns the run subcommand: interpret a chart and feed
// it events from stdin, one per line, until the chart finishes or input
// ends.
func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Interpret a chart, reading events from stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chart",
				Usage: "Path to a YAML chart file (empty = built-in demo)",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Emit one OTLP span per interpreter, with an event per microstep",
			},
		},
		Action: runChart,
	}
}

func runChart(ctx context.Context, cmd *cli.Command) error {
	chart, err := loadChart(cmd.String("chart"))
	if err != nil {
		return err
	}

	cfg := loadConfig(cmd)

	pluginOpts, rt, err := loadPlugins(ctx, cfg.Plugins.Dir)
	if err != nil {
		return err
	}
	if rt != nil {
		defer rt.Close(context.Background())
	}
	chart.Bind(pluginOpts)

	opts := interpreter.Options{Logger: slogLogger{}}
	if !cfg.Interpreter.IsExecuteEnabled() {
		f := false
		opts.Execute = &f
	}
	if cmd.Bool("trace") || cfg.Tracing.IsEnabled() {
		opts.DevTools = tracing.New()
		defer tracing.Shutdown(context.Background())
	}

	itp := interpreter.Interpret(chart, opts)

	done := make(chan struct{})
	itp.OnTransition(func(s machine.State) {
		fmt.Printf("state: %v  (event %s)\n", s.Value(), s.Event().Name)
	})
	itp.OnDone(func(ev machine.Event) {
		fmt.Printf("done: %v\n", ev.Data)
		close(done)
	})

	itp.Start()
	defer itp.Stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if err := itp.TrySend(machine.NewEvent(line)); err != nil {
				slog.Error("send failed", "event", line, "error", err)
			}
		}
	}
}

// slogLogger adapts the process-wide slog to interpreter.Logger.
type slogLogger struct{}

func (slogLogger) Log(label string, value any) {
	if label == "warn" {
		slog.Warn(fmt.Sprint(value))
		return
	}
	slog.Info(fmt.Sprint(value), "label", label)
}
