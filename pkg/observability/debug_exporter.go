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
	"sync"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// AttrLoomEventID links a span to the session event it produced, so the
// diagnostics UI can jump from an event to its trace.
const AttrLoomEventID = "loom.event_id"

// defaultDebugSpanLimit bounds the exporter's memory.
const defaultDebugSpanLimit = 1000

// capturedSpanNames are the span kinds worth holding for inspection;
// everything else (HTTP plumbing and the like) passes through.
var capturedSpanNames = map[string]bool{
	SpanAgentCall:     true,
	SpanLLMRequest:    true,
	SpanToolExecution: true,
	SpanMemoryLookup:  true,
}

// DebugExporter keeps recent agent/model/tool spans in memory, indexed
// by span ID and by the event ID attribute, for the diagnostics UI.
// Safe for concurrent use.
type DebugExporter struct {
	mu      sync.RWMutex
	spans   map[string]*DebugSpan // keyed by span ID
	byEvent map[string]*DebugSpan // keyed by AttrLoomEventID
	maxSize int
}

// DebugSpan is one captured span, flattened for JSON delivery to the UI.
type DebugSpan struct {
	TraceID      string            `json:"trace_id"`
	SpanID       string            `json:"span_id"`
	ParentSpanID string            `json:"parent_span_id,omitempty"`
	Name         string            `json:"name"`
	StartTime    int64             `json:"start_time_unix_nano"`
	EndTime      int64             `json:"end_time_unix_nano"`
	DurationMs   float64           `json:"duration_ms"`
	Attributes   map[string]string `json:"attributes"`
	Events       []SpanEvent       `json:"events,omitempty"`
	Status       string            `json:"status"`
	StatusMsg    string            `json:"status_message,omitempty"`
}

// SpanEvent is one event recorded on a span.
type SpanEvent struct {
	Name       string            `json:"name"`
	TimeUnix   int64             `json:"time_unix_nano"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewDebugExporter creates an exporter retaining the default number of
// spans.
func NewDebugExporter() *DebugExporter {
	return &DebugExporter{
		spans:   make(map[string]*DebugSpan),
		byEvent: make(map[string]*DebugSpan),
		maxSize: defaultDebugSpanLimit,
	}
}

// WithMaxSize changes how many spans are retained.
func (e *DebugExporter) WithMaxSize(size int) *DebugExporter {
	e.maxSize = size
	return e
}

// ExportSpans implements sdktrace.SpanExporter, capturing the span
// kinds the UI shows and dropping the rest.
func (e *DebugExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		if !capturedSpanNames[span.Name()] {
			continue
		}

		debugSpan := convertSpan(span)
		e.spans[debugSpan.SpanID] = debugSpan

		if eventID := debugSpan.Attributes[AttrLoomEventID]; eventID != "" {
			e.byEvent[eventID] = debugSpan
		}

		e.evictExcess()
	}

	return nil
}

// convertSpan flattens an sdk span into the UI shape.
func convertSpan(span sdktrace.ReadOnlySpan) *DebugSpan {
	startTime := span.StartTime().UnixNano()
	endTime := span.EndTime().UnixNano()

	ds := &DebugSpan{
		TraceID:    span.SpanContext().TraceID().String(),
		SpanID:     span.SpanContext().SpanID().String(),
		Name:       span.Name(),
		StartTime:  startTime,
		EndTime:    endTime,
		DurationMs: float64(endTime-startTime) / 1e6,
		Attributes: make(map[string]string, len(span.Attributes())),
		Status:     span.Status().Code.String(),
		StatusMsg:  span.Status().Description,
	}

	if span.Parent().HasSpanID() {
		ds.ParentSpanID = span.Parent().SpanID().String()
	}

	for _, attr := range span.Attributes() {
		ds.Attributes[string(attr.Key)] = attr.Value.AsString()
	}

	for _, event := range span.Events() {
		se := SpanEvent{
			Name:       event.Name,
			TimeUnix:   event.Time.UnixNano(),
			Attributes: make(map[string]string, len(event.Attributes)),
		}
		for _, attr := range event.Attributes {
			se.Attributes[string(attr.Key)] = attr.Value.AsString()
		}
		ds.Events = append(ds.Events, se)
	}

	return ds
}

// evictExcess drops spans over the limit. Map iteration order makes the
// victims arbitrary rather than strictly oldest; for a debugging buffer
// that trade is fine and keeps eviction O(excess). Caller holds the
// write lock.
func (e *DebugExporter) evictExcess() {
	excess := len(e.spans) - e.maxSize
	for id := range e.spans {
		if excess <= 0 {
			return
		}
		span := e.spans[id]
		delete(e.spans, id)
		if eventID := span.Attributes[AttrLoomEventID]; eventID != "" && e.byEvent[eventID] == span {
			delete(e.byEvent, eventID)
		}
		excess--
	}
}

// Shutdown implements sdktrace.SpanExporter.
func (e *DebugExporter) Shutdown(ctx context.Context) error {
	e.Clear()
	return nil
}

// GetSpan returns a span by span ID.
func (e *DebugExporter) GetSpan(spanID string) *DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.spans[spanID]
}

// GetByEventID returns the span linked to a session event.
func (e *DebugExporter) GetByEventID(eventID string) *DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.byEvent[eventID]
}

// GetAllSpans returns every captured span.
func (e *DebugExporter) GetAllSpans() []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]*DebugSpan, 0, len(e.spans))
	for _, span := range e.spans {
		result = append(result, span)
	}
	return result
}

// GetSpansByName returns every captured span with the given name.
func (e *DebugExporter) GetSpansByName(name string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []*DebugSpan
	for _, span := range e.spans {
		if span.Name == name {
			result = append(result, span)
		}
	}
	return result
}

// GetSpansByTrace returns every captured span of one trace.
func (e *DebugExporter) GetSpansByTrace(traceID string) []*DebugSpan {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var result []*DebugSpan
	for _, span := range e.spans {
		if span.TraceID == traceID {
			result = append(result, span)
		}
	}
	return result
}

// Clear drops every captured span.
func (e *DebugExporter) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spans = make(map[string]*DebugSpan)
	e.byEvent = make(map[string]*DebugSpan)
}

// Count returns the number of captured spans.
func (e *DebugExporter) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.spans)
}

var _ sdktrace.SpanExporter = (*DebugExporter)(nil)
