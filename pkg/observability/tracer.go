// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer owns a tracer provider exporting over OTLP/gRPC, plus the
// span-shaping helpers the runtime records through. It also installs
// itself as the global otel provider so instrumented libraries join the
// same traces.
type Tracer struct {
	provider        *sdktrace.TracerProvider
	tracer          trace.Tracer
	debugExporter   *DebugExporter
	capturePayloads bool
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithDebugExporter additionally feeds spans into an in-memory exporter
// for the diagnostics UI.
func WithDebugExporter(exporter *DebugExporter) TracerOption {
	return func(t *Tracer) {
		t.debugExporter = exporter
	}
}

// WithCapturePayloads enables AddPayload/AddToolPayload recording full
// request and response bodies on spans.
func WithCapturePayloads(capture bool) TracerOption {
	return func(t *Tracer) {
		t.capturePayloads = capture
	}
}

// NewTracer builds the provider for the given tracing configuration and
// installs it globally.
func NewTracer(ctx context.Context, cfg *TracingConfig, opts ...TracerOption) (*Tracer, error) {
	t := &Tracer{}
	for _, opt := range opts {
		opt(t)
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithTimeout(cfg.Timeout),
	}
	if cfg.IsInsecure() {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	if len(cfg.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	}
	// The debug exporter feeds the diagnostics UI; export synchronously
	// so spans are visible there the moment they end.
	if t.debugExporter != nil {
		providerOpts = append(providerOpts, sdktrace.WithSyncer(t.debugExporter))
	}

	t.provider = sdktrace.NewTracerProvider(providerOpts...)
	t.tracer = t.provider.Tracer(DefaultServiceName)

	otel.SetTracerProvider(t.provider)
	return t, nil
}

// Start opens a span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, noopSpan()
	}
	return t.tracer.Start(ctx, name, opts...)
}

// StartAgentRun opens the span covering one agent invocation.
func (t *Tracer) StartAgentRun(ctx context.Context, agentName, agentType, llm, sessionID, invocationID string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanAgentCall, trace.WithAttributes(
		attribute.String(AttrAgentName, agentName),
		attribute.String("agent.type", agentType),
		attribute.String(AttrAgentLLM, llm),
		attribute.String("session.id", sessionID),
		attribute.String("invocation.id", invocationID),
	))
}

// StartLLMCall opens the span covering one model request.
func (t *Tracer) StartLLMCall(ctx context.Context, model string, maxTokens int, temperature, topP float64) (context.Context, trace.Span) {
	return t.Start(ctx, SpanLLMRequest, trace.WithAttributes(
		attribute.String(AttrLLMModel, model),
		attribute.Int("llm.max_tokens", maxTokens),
		attribute.Float64("llm.temperature", temperature),
		attribute.Float64("llm.top_p", topP),
	))
}

// StartToolExecution opens the span covering one tool call.
func (t *Tracer) StartToolExecution(ctx context.Context, toolName, toolCallID, agentName string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanToolExecution, trace.WithAttributes(
		attribute.String(AttrToolName, toolName),
		attribute.String("tool.call_id", toolCallID),
		attribute.String(AttrAgentName, agentName),
	))
}

// StartMemorySearch opens the span covering one memory lookup.
func (t *Tracer) StartMemorySearch(ctx context.Context, indexType string, topK int) (context.Context, trace.Span) {
	return t.Start(ctx, SpanMemoryLookup, trace.WithAttributes(
		attribute.String("memory.index_type", indexType),
		attribute.Int("memory.top_k", topK),
	))
}

// AddLLMUsage records token counts on a model span.
func (t *Tracer) AddLLMUsage(span trace.Span, inputTokens, outputTokens int) {
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int(AttrLLMTokensInput, inputTokens),
		attribute.Int(AttrLLMTokensOutput, outputTokens),
	)
}

// AddLLMFinishReason records why generation stopped.
func (t *Tracer) AddLLMFinishReason(span trace.Span, reason string) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.String("llm.finish_reason", reason))
}

// AddPayload records a request or response body on a span, only when
// payload capture is on.
func (t *Tracer) AddPayload(span trace.Span, key, payload string) {
	if span == nil || t == nil || !t.capturePayloads {
		return
	}
	span.SetAttributes(attribute.String(key, payload))
}

// AddToolPayload records tool arguments or results on a span, only when
// payload capture is on.
func (t *Tracer) AddToolPayload(span trace.Span, key, payload string) {
	t.AddPayload(span, key, payload)
}

// RecordError marks a span failed and records the error.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(attribute.String(AttrErrorType, fmt.Sprintf("%T", err)))
}

// DebugExporter returns the in-memory exporter, or nil when disabled.
func (t *Tracer) DebugExporter() *DebugExporter {
	if t == nil {
		return nil
	}
	return t.debugExporter
}

// Shutdown flushes and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// GetTracer returns a named tracer from the globally installed
// provider, for instrumentation outside this package.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// noopSpan is what disabled tracing hands out.
func noopSpan() trace.Span {
	_, span := noop.NewTracerProvider().Tracer("").Start(context.Background(), "")
	return span
}
