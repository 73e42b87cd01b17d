// Package tracing is an interpreter.DevTools implementation that emits
// one OpenTelemetry span per interpreter, with each microstep recorded as
// an event on it, instead of broadcasting frames over a socket. Real tracing requires OTEL_EXPORTER_OTLP_ENDPOINT to be
// set; without it a no-op tracer is used (zero overhead).
package tracing

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nocturnelabs/statecraft/interpreter"
	"github.com/nocturnelabs/statecraft/machine"
)

const serviceName = "statecraft-interpreter"

var (
	initOnce       sync.Once
	tracerProvider trace.TracerProvider = noop.NewTracerProvider()
	sdkProvider    *sdktrace.TracerProvider
)

func initTracing() {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return
	}

	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpointHost(endpoint)),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return
	}

	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		res = resource.Default()
	}

	sdkProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	tracerProvider = sdkProvider
	otel.SetTracerProvider(tracerProvider)
}

func endpointHost(endpoint string) string {
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(endpoint, prefix) {
			return endpoint[len(prefix):]
		}
	}
	return endpoint
}

func tracer() trace.Tracer {
	initOnce.Do(initTracing)
	return tracerProvider.Tracer("github.com/nocturnelabs/statecraft/tracing")
}

// Shutdown flushes pending spans and shuts down the provider.
func Shutdown(ctx context.Context) error {
	if sdkProvider != nil {
		return sdkProvider.Shutdown(ctx)
	}
	return nil
}

// DevTools records one span per interpreter, each microstep added as an
// event on that span rather than its own span — a running interpreter's
// lifetime can span minutes and a span-per-microstep tree would dwarf
// any real trace.
type DevTools struct {
	mu    sync.Mutex
	spans map[string]spanEntry
}

type spanEntry struct {
	ctx  context.Context
	span trace.Span
}

// New creates a DevTools bridge.
func New() *DevTools {
	return &DevTools{spans: make(map[string]spanEntry)}
}

var _ interpreter.DevTools = (*DevTools)(nil)

// Attach starts a root span for i, tagged with its id.
func (d *DevTools) Attach(i *interpreter.Interpreter) {
	ctx, span := tracer().Start(context.Background(), "interpreter",
		trace.WithAttributes(attribute.String("interpreter.id", i.ID())))

	d.mu.Lock()
	d.spans[i.ID()] = spanEntry{ctx: ctx, span: span}
	d.mu.Unlock()
}

// OnMicrostep records state as an event on i's root span.
func (d *DevTools) OnMicrostep(i *interpreter.Interpreter, state machine.State) {
	d.mu.Lock()
	entry, ok := d.spans[i.ID()]
	d.mu.Unlock()
	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("event", state.Event().Name),
		attribute.Bool("changed", state.Changed()),
	}
	if s, ok := state.Value().(string); ok {
		attrs = append(attrs, attribute.String("value", s))
	}
	entry.span.AddEvent("microstep", trace.WithAttributes(attrs...))

	if isInFinalState(state.Configuration()) {
		entry.span.End()
		d.mu.Lock()
		delete(d.spans, i.ID())
		d.mu.Unlock()
	}
}

func isInFinalState(nodes []machine.StateNode) bool {
	var sawTopLevel bool
	for _, n := range nodes {
		if n.Parent != "" {
			continue
		}
		sawTopLevel = true
		if n.Type != machine.NodeFinal {
			return false
		}
	}
	return sawTopLevel
}
