package config

import "time"

// Config is the root configuration for a statecraft host process.
type Config struct {
	Interpreter InterpreterConfig `json:"interpreter"`
	Inspector   InspectorConfig   `json:"inspector"`
	Tracing     TracingConfig     `json:"tracing"`
	Plugins     PluginsConfig     `json:"plugins"`
	Logging     LoggingConfig     `json:"logging"`
}

// InterpreterConfig holds the default interpreter options the host
// applies when constructing interpreters that don't override them.
type InterpreterConfig struct {
	Execute     *bool    `json:"execute"`      // default: true
	DeferEvents *bool    `json:"defer_events"` // default: true
	TickBudget  Duration `json:"tick_budget,omitempty"`
}

// IsExecuteEnabled returns true if action execution is enabled (default: true).
func (c InterpreterConfig) IsExecuteEnabled() bool {
	if c.Execute == nil {
		return true
	}
	return *c.Execute
}

// IsDeferEventsEnabled returns true if pre-start sends are queued (default: true).
func (c InterpreterConfig) IsDeferEventsEnabled() bool {
	if c.DeferEvents == nil {
		return true
	}
	return *c.DeferEvents
}

// InspectorConfig holds the devtools WS bridge settings.
type InspectorConfig struct {
	Enabled *bool  `json:"enabled"` // default: false (opt-in)
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

// IsEnabled returns true if the inspector is enabled (default: false).
func (c InspectorConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// TracingConfig configures the OTLP microstep tracer.
type TracingConfig struct {
	Enabled     *bool  `json:"enabled"`            // default: false (opt-in)
	Endpoint    string `json:"endpoint,omitempty"` // OTLP HTTP endpoint
	ServiceName string `json:"service_name,omitempty"`
}

// IsEnabled returns true if tracing is enabled (default: false).
func (c TracingConfig) IsEnabled() bool {
	return c.Enabled != nil && *c.Enabled
}

// PluginsConfig configures the WASM action-plugin system.
type PluginsConfig struct {
	Dir     string   `json:"dir"`     // plugin directory (default: $STATECRAFT_PATH/plugins)
	Enabled []string `json:"enabled"` // plugin names; not read by the CLI loader, which loads every manifest in Dir
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `json:"level"` // "debug" | "info" | "warn" | "error" (default: "info")
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
