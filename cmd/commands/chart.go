package commands

import (
	_ "embed"

	"github.com/nocturnelabs/statecraft/chartfile"
)

//go:embed demo.yaml
var demoChart []byte

// loadChart resolves the --chart flag: a path when given, the embedded
// demo chart otherwise.
func loadChart(path string) (*chartfile.Chart, error) {
	if path == "" {
		return chartfile.Parse(demoChart)
	}
	return chartfile.Load(path)
}
