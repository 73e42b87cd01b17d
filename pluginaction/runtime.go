package pluginaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	extism "github.com/extism/go-sdk"

	"github.com/nocturnelabs/statecraft/actor"
	"github.com/nocturnelabs/statecraft/machine"
)

// Runtime loads and owns every WASM plugin backing a chart's action and
// service implementations.
type Runtime struct {
	mu      sync.Mutex
	plugins map[string]*Plugin
}

// NewRuntime creates an empty Runtime.
func NewRuntime() *Runtime {
	return &Runtime{plugins: make(map[string]*Plugin)}
}

// Plugin is one loaded WASM module along with the action and service
// names it backs.
type Plugin struct {
	name     string
	manifest *Manifest
	plugin   *extism.Plugin
}

// Load loads a WASM plugin from its manifest.
func (r *Runtime) Load(ctx context.Context, manifest *Manifest) (*Plugin, error) {
	if manifest.Provider != "extism" {
		return nil, fmt.Errorf("pluginaction: unsupported provider %q", manifest.Provider)
	}
	if manifest.WasmPath == "" {
		return nil, fmt.Errorf("pluginaction: wasm_path is required for plugin %q", manifest.Name)
	}

	em := buildExtismManifest(manifest)
	kv := NewKVStore()
	hostFns := newHostFunctions(kv, manifest.Config)

	config := extism.PluginConfig{EnableWasi: true}
	p, err := extism.NewPlugin(ctx, em, config, hostFns)
	if err != nil {
		return nil, fmt.Errorf("pluginaction: load plugin %q: %w", manifest.Name, err)
	}

	for action, export := range manifest.Actions {
		if !p.FunctionExists(export) {
			p.Close(ctx)
			return nil, fmt.Errorf("pluginaction: plugin %q missing export %q for action %q", manifest.Name, export, action)
		}
	}
	for svc, export := range manifest.Services {
		if !p.FunctionExists(export) {
			p.Close(ctx)
			return nil, fmt.Errorf("pluginaction: plugin %q missing export %q for service %q", manifest.Name, export, svc)
		}
	}

	plugin := &Plugin{name: manifest.Name, manifest: manifest, plugin: p}

	r.mu.Lock()
	r.plugins[manifest.Name] = plugin
	r.mu.Unlock()

	slog.Info("plugin loaded", "name", manifest.Name, "wasm", manifest.WasmPath,
		"actions", len(manifest.Actions), "services", len(manifest.Services))
	return plugin, nil
}

// Close releases every loaded plugin.
func (r *Runtime) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, p := range r.plugins {
		if err := p.plugin.Close(ctx); err != nil {
			slog.Warn("pluginaction: close plugin", "name", name, "error", err)
		}
	}
	r.plugins = nil
}

// actionInput is the JSON payload passed to an action export.
type actionInput struct {
	Context any          `json:"context"`
	Event   machine.Event `json:"event"`
}

// ActionFn builds a machine.ActionFn that calls the plugin export named
// by manifest.Actions[name]. The export's only contract is "run and
// maybe fail" — it communicates with the outside world through the
// statecraft host functions, not through a return value.
func (p *Plugin) ActionFn(name string) (machine.ActionFn, error) {
	export, ok := p.manifest.Actions[name]
	if !ok {
		return nil, fmt.Errorf("pluginaction: plugin %q has no action named %q", p.name, name)
	}
	return func(actx machine.ActionContext) error {
		input, err := json.Marshal(actionInput{Context: actx.Context, Event: actx.Event})
		if err != nil {
			return fmt.Errorf("pluginaction: marshal action input: %w", err)
		}
		_, _, err = p.plugin.Call(export, input)
		if err != nil {
			return fmt.Errorf("pluginaction: plugin %q action %q: %w", p.name, name, err)
		}
		return nil
	}, nil
}

// ServiceFactory builds a machine.ServiceFactory that calls the plugin
// export named by manifest.Services[name] once and resolves with its
// JSON-decoded output, the same one-shot promise semantics as any other
// actor.Future-backed invoke.
func (p *Plugin) ServiceFactory(name string) (machine.ServiceFactory, error) {
	export, ok := p.manifest.Services[name]
	if !ok {
		return nil, fmt.Errorf("pluginaction: plugin %q has no service named %q", p.name, name)
	}
	return func(ictx machine.InvokeContext) (machine.Actor, error) {
		input, err := json.Marshal(actionInput{Context: ictx.Data, Event: ictx.Event})
		if err != nil {
			return nil, fmt.Errorf("pluginaction: marshal service input: %w", err)
		}
		fut := actor.FuncFuture(func() (any, error) {
			_, output, err := p.plugin.Call(export, input)
			if err != nil {
				return nil, fmt.Errorf("pluginaction: plugin %q service %q: %w", p.name, name, err)
			}
			var result any
			if len(output) > 0 {
				if err := json.Unmarshal(output, &result); err != nil {
					return nil, fmt.Errorf("pluginaction: unmarshal service output: %w", err)
				}
			}
			return result, nil
		})
		return actor.NewFuture(ictx.ID, ictx.Parent, fut), nil
	}, nil
}
