package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nocturnelabs/statecraft/machine"
	"github.com/nocturnelabs/statecraft/pluginaction"
)

// loadPlugins scans dir for plugin manifests (*.json), loads each WASM
// module, and collects the action and service implementations they
// export into a machine.Options ready to Bind to a chart. A missing or
// empty dir yields empty options and no Runtime.
func loadPlugins(ctx context.Context, dir string) (machine.Options, *pluginaction.Runtime, error) {
	opts := machine.Options{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return opts, nil, nil
		}
		return opts, nil, err
	}

	rt := pluginaction.NewRuntime()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skipping plugin manifest", "path", path, "error", err)
			continue
		}
		var manifest pluginaction.Manifest
		if err := json.Unmarshal(data, &manifest); err != nil {
			slog.Warn("skipping plugin manifest", "path", path, "error", err)
			continue
		}
		if manifest.WasmPath != "" && !filepath.IsAbs(manifest.WasmPath) {
			manifest.WasmPath = filepath.Join(dir, manifest.WasmPath)
		}

		p, err := rt.Load(ctx, &manifest)
		if err != nil {
			slog.Warn("skipping plugin", "path", path, "error", err)
			continue
		}

		for name := range manifest.Actions {
			fn, err := p.ActionFn(name)
			if err != nil {
				slog.Warn("skipping plugin action", "plugin", manifest.Name, "action", name, "error", err)
				continue
			}
			if opts.Actions == nil {
				opts.Actions = make(map[string]machine.ActionFn)
			}
			opts.Actions[name] = fn
		}
		for name := range manifest.Services {
			factory, err := p.ServiceFactory(name)
			if err != nil {
				slog.Warn("skipping plugin service", "plugin", manifest.Name, "service", name, "error", err)
				continue
			}
			if opts.Services == nil {
				opts.Services = make(map[string]machine.ServiceFactory)
			}
			opts.Services[name] = factory
		}
	}

	return opts, rt, nil
}
