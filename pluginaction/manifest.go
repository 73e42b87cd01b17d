// Package pluginaction resolves action implementations and service
// factories from WASM plugins instead of in-process Go functions, so a
// chart's actions map and services map can name exports of a .wasm
// module loaded at runtime rather than code compiled into the binary.
package pluginaction

// Manifest describes one WASM plugin: where to load it from, what
// it's allowed to do, and which of its exports back which action or
// service name.
type Manifest struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"` // only "extism" is supported
	WasmPath string            `json:"wasm_path"`
	Config   map[string]string `json:"config,omitempty"`

	Capabilities CapabilitySet `json:"capabilities"`

	// Actions maps an action-implementation name (the key in
	// machine.Options.Actions) to the plugin export that implements it.
	Actions map[string]string `json:"actions,omitempty"`

	// Services maps a service-factory name (the key in
	// machine.Options.Services) to the plugin export that implements it.
	Services map[string]string `json:"services,omitempty"`
}
