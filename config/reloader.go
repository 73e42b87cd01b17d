package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Section names a top-level config section, as reported to reload
// listeners.
type Section string

const (
	SectionInterpreter Section = "interpreter"
	SectionInspector   Section = "inspector"
	SectionTracing     Section = "tracing"
	SectionPlugins     Section = "plugins"
	SectionLogging     Section = "logging"
)

// reloadCoalesce is the window within which repeated Reload calls
// collapse into one: a burst of SIGHUPs, or an editor that writes the
// file several times per save, applies a single reload.
const reloadCoalesce = 250 * time.Millisecond

// Reloader applies config edits to a running host. Reload re-reads the
// .env/config pair, diffs the result against the live config section by
// section, and only swaps and notifies when something actually changed —
// listeners are told which sections moved so they can re-derive just the
// interpreter defaults, or just the inspector target, without tearing
// anything else down.
type Reloader struct {
	configPath string
	dotenvPath string

	mu         sync.Mutex
	current    *Config
	listeners  []func(next *Config, changed []Section)
	lastReload time.Time
}

// NewReloader creates a Reloader with the given initial config.
func NewReloader(configPath, dotenvPath string, initial *Config) *Reloader {
	return &Reloader{
		configPath: configPath,
		dotenvPath: dotenvPath,
		current:    initial,
	}
}

// Current returns the live config.
func (r *Reloader) Current() *Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// OnReload registers a callback invoked after a reload that changed at
// least one section.
func (r *Reloader) OnReload(fn func(next *Config, changed []Section)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Reload re-reads the .env file and the config, swaps the config in if
// any section differs from the live one, and notifies listeners with the
// changed sections. A call landing inside the coalescing window of the
// previous one is a no-op.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.lastReload) < reloadCoalesce {
		slog.Debug("config reload coalesced")
		return nil
	}
	r.lastReload = time.Now()

	if err := ReloadDotenv(r.dotenvPath); err != nil {
		return fmt.Errorf("reload dotenv: %w", err)
	}

	next, err := Load(r.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	changed := diffSections(r.current, next)
	if len(changed) == 0 {
		slog.Debug("config reloaded, nothing changed")
		return nil
	}

	r.current = next
	slog.Info("config reloaded", "changed", changed)

	for _, fn := range r.listeners {
		fn(next, changed)
	}
	return nil
}

// diffSections compares configs by their runtime meaning, not their
// spelling: the tri-state pointers are normalized through the Is*
// helpers first, so rewriting an absent `execute` as an explicit `true`
// (or back) does not count as a change.
func diffSections(prev, next *Config) []Section {
	if prev == nil {
		return []Section{SectionInterpreter, SectionInspector, SectionTracing, SectionPlugins, SectionLogging}
	}

	var changed []Section
	if !interpreterEqual(prev.Interpreter, next.Interpreter) {
		changed = append(changed, SectionInterpreter)
	}
	if !inspectorEqual(prev.Inspector, next.Inspector) {
		changed = append(changed, SectionInspector)
	}
	if !tracingEqual(prev.Tracing, next.Tracing) {
		changed = append(changed, SectionTracing)
	}
	if !pluginsEqual(prev.Plugins, next.Plugins) {
		changed = append(changed, SectionPlugins)
	}
	if prev.Logging.Level != next.Logging.Level {
		changed = append(changed, SectionLogging)
	}
	return changed
}

func interpreterEqual(a, b InterpreterConfig) bool {
	return a.IsExecuteEnabled() == b.IsExecuteEnabled() &&
		a.IsDeferEventsEnabled() == b.IsDeferEventsEnabled() &&
		a.TickBudget == b.TickBudget
}

func inspectorEqual(a, b InspectorConfig) bool {
	return a.IsEnabled() == b.IsEnabled() && a.Host == b.Host && a.Port == b.Port
}

func tracingEqual(a, b TracingConfig) bool {
	return a.IsEnabled() == b.IsEnabled() && a.Endpoint == b.Endpoint && a.ServiceName == b.ServiceName
}

func pluginsEqual(a, b PluginsConfig) bool {
	return a.Dir == b.Dir && slices.Equal(a.Enabled, b.Enabled)
}
