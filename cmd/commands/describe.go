package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"

	"github.com/nocturnelabs/statecraft/chartfile"
)

// NewDescribeCommand returns the describe subcommand: render a chart's
// states and transitions as Markdown in the terminal.
func NewDescribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "describe",
		Usage: "Render a chart's states and transitions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "chart",
				Usage: "Path to a YAML chart file (empty = built-in demo)",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print raw Markdown without terminal styling",
			},
		},
		Action: describeChart,
	}
}

func describeChart(_ context.Context, cmd *cli.Command) error {
	chart, err := loadChart(cmd.String("chart"))
	if err != nil {
		return err
	}

	md := chartMarkdown(chart)
	if cmd.Bool("plain") {
		fmt.Print(md)
		return nil
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func chartMarkdown(chart *chartfile.Chart) string {
	f := chart.File()

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\nInitial state: `%s`\n\n", f.ID, f.Initial)

	names := make([]string, 0, len(f.States))
	for name := range f.States {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := f.States[name]
		if st.Final {
			fmt.Fprintf(&b, "## %s (final)\n\n", name)
		} else {
			fmt.Fprintf(&b, "## %s\n\n", name)
		}

		for _, a := range st.Entry {
			fmt.Fprintf(&b, "- on entry: %s\n", actionLabel(a))
		}

		events := make([]string, 0, len(st.On))
		for ev := range st.On {
			events = append(events, ev)
		}
		sort.Strings(events)
		for _, ev := range events {
			tr := st.On[ev]
			fmt.Fprintf(&b, "- `%s` → **%s**", ev, tr.Target)
			if len(tr.Actions) > 0 {
				labels := make([]string, 0, len(tr.Actions))
				for _, a := range tr.Actions {
					labels = append(labels, actionLabel(a))
				}
				fmt.Fprintf(&b, " (%s)", strings.Join(labels, ", "))
			}
			b.WriteString("\n")
		}
		if len(st.On) == 0 && len(st.Entry) == 0 {
			b.WriteString("_no transitions_\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func actionLabel(a chartfile.ActionDef) string {
	switch {
	case a.Send != nil:
		if a.Send.Delay != "" {
			return fmt.Sprintf("send %s after %s", a.Send.Event, a.Send.Delay)
		}
		return "send " + a.Send.Event
	case a.Cancel != "":
		return "cancel " + a.Cancel
	case a.Log != "":
		return fmt.Sprintf("log %q", a.Log)
	default:
		return "?"
	}
}
