package pluginaction

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	extism "github.com/extism/go-sdk"
)

// KVStore is a per-plugin in-memory key-value store, the one side
// channel a plugin action has for carrying state between invocations
// beyond the chart's own context.
type KVStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewKVStore creates a new empty KV store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string][]byte)}
}

// Get returns the value for a key, or nil if not found.
func (s *KVStore) Get(key string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

// Set stores a value for a key.
func (s *KVStore) Set(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

type hostLogMessage struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

type hostKVRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// newHostFunctions creates the standard statecraft host functions for a
// plugin. All functions live in the "statecraft" namespace.
func newHostFunctions(kv *KVStore, pluginConfig map[string]string) []extism.HostFunction {
	var fns []extism.HostFunction

	logFn := extism.NewHostFunctionWithStack(
		"log",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("pluginaction: read log input", "error", err)
				return
			}
			var msg hostLogMessage
			if err := json.Unmarshal(input, &msg); err != nil {
				slog.Warn("pluginaction: invalid log message", "raw", string(input))
				return
			}
			switch msg.Level {
			case "debug":
				slog.Debug("plugin", "msg", msg.Message)
			case "warn":
				slog.Warn("plugin", "msg", msg.Message)
			case "error":
				slog.Error("plugin", "msg", msg.Message)
			default:
				slog.Info("plugin", "msg", msg.Message)
			}
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	logFn.SetNamespace("statecraft")
	fns = append(fns, logFn)

	kvGetFn := extism.NewHostFunctionWithStack(
		"kv_get",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			key, err := p.ReadString(stack[0])
			if err != nil {
				slog.Error("pluginaction: kv_get read key", "error", err)
				stack[0] = 0
				return
			}
			value := kv.Get(key)
			if value == nil {
				value = []byte("{}")
			}
			offset, err := p.WriteBytes(value)
			if err != nil {
				slog.Error("pluginaction: kv_get write result", "error", err)
				stack[0] = 0
				return
			}
			stack[0] = offset
		},
		[]extism.ValueType{extism.ValueTypePTR},
		[]extism.ValueType{extism.ValueTypePTR},
	)
	kvGetFn.SetNamespace("statecraft")
	fns = append(fns, kvGetFn)

	kvSetFn := extism.NewHostFunctionWithStack(
		"kv_set",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			input, err := p.ReadBytes(stack[0])
			if err != nil {
				slog.Error("pluginaction: kv_set read input", "error", err)
				return
			}
			var req hostKVRequest
			if err := json.Unmarshal(input, &req); err != nil {
				slog.Error("pluginaction: kv_set parse", "error", err)
				return
			}
			kv.Set(req.Key, []byte(req.Value))
		},
		[]extism.ValueType{extism.ValueTypePTR},
		nil,
	)
	kvSetFn.SetNamespace("statecraft")
	fns = append(fns, kvSetFn)

	getConfigFn := extism.NewHostFunctionWithStack(
		"get_config",
		func(_ context.Context, p *extism.CurrentPlugin, stack []uint64) {
			key, err := p.ReadString(stack[0])
			if err != nil {
				slog.Error("pluginaction: get_config read key", "error", err)
				stack[0] = 0
				return
			}
			value := pluginConfig[key]
			offset, err := p.WriteString(value)
			if err != nil {
				slog.Error("pluginaction: get_config write result", "error", err)
				stack[0] = 0
				return
			}
			stack[0] = offset
		},
		[]extism.ValueType{extism.ValueTypePTR},
		[]extism.ValueType{extism.ValueTypePTR},
	)
	getConfigFn.SetNamespace("statecraft")
	fns = append(fns, getConfigFn)

	return fns
}
