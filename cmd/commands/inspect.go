package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/nocturnelabs/statecraft/config"
	"github.com/nocturnelabs/statecraft/inspector"
	"github.com/nocturnelabs/statecraft/interpreter"
)

// NewInspectCommand returns the inspect subcommand: serve the devtools
// WS bridge with a chart running behind it, so a client can watch
// microsteps and push events in.
func NewInspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Serve the inspector with a chart running behind it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chart",
				Usage: "Path to a YAML chart file (empty = built-in demo)",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (empty = config value)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (0 = config value)",
			},
		},
		Action: inspectChart,
	}
}

func inspectChart(ctx context.Context, cmd *cli.Command) error {
	chart, err := loadChart(cmd.String("chart"))
	if err != nil {
		return err
	}

	cfg := loadConfig(cmd)
	host := cmd.String("host")
	if host == "" {
		host = cfg.Inspector.Host
	}
	port := cmd.Int("port")
	if port == 0 {
		port = cfg.Inspector.Port
	}

	srv := inspector.NewServer(host, port)

	itp := interpreter.Interpret(chart, interpreter.Options{
		Logger:   slogLogger{},
		DevTools: srv.Hub(),
	})
	itp.Start()
	defer itp.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// SIGHUP re-reads config + .env without restarting the server.
	reloader := config.NewReloader(cmd.String("config"), config.DotenvPath(), cfg)
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := reloader.Reload(); err != nil {
				slog.Warn("config reload failed", "error", err)
			}
		}
	}()

	fmt.Printf("inspecting %s on ws://%s:%d/ws\n", chart.ID(), host, port)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("inspector shutdown", "error", err)
		}
		return nil
	case err := <-errCh:
		return err
	}
}
