package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/nocturnelabs/statecraft/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand(version, commit string) *cli.Command {
	return &cli.Command{
		Name:    "statecraft",
		Usage:   "Run, inspect, and describe statechart interpreters",
		Version: version + " (" + commit + ")",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewRunCommand(),
			NewDescribeCommand(),
			NewInspectCommand(),
			NewTUICommand(),
		},
	}
}

// loadConfig reads the config file named by the root --config flag,
// falling back to defaults when the file does not exist.
func loadConfig(cmd *cli.Command) *config.Config {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		cfg = &config.Config{}
		cfg.Inspector.Host = "127.0.0.1"
		cfg.Inspector.Port = 18530
		cfg.Logging.Level = "info"
	}
	return cfg
}
