package observability

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGlobalCallRecorderDefaultsToNoop(t *testing.T) {
	SetGlobalMetrics(nil)

	rec := GetGlobalMetrics()
	if rec == nil {
		t.Fatal("expected a non-nil default recorder")
	}

	ctx := context.Background()
	rec.RecordAgentCall(ctx, 100*time.Millisecond, 150, nil)
	rec.RecordToolExecution(ctx, "search", 50*time.Millisecond, nil)
	rec.RecordLLMCall(ctx, "test-model", 300*time.Millisecond, 10, 5, errors.New("boom"))
}

type countingRecorder struct {
	agentCalls int
	toolCalls  int
	llmCalls   int
}

func (c *countingRecorder) RecordAgentCall(context.Context, time.Duration, int, error) {
	c.agentCalls++
}

func (c *countingRecorder) RecordToolExecution(context.Context, string, time.Duration, error) {
	c.toolCalls++
}

func (c *countingRecorder) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
	c.llmCalls++
}

func TestSetGlobalMetricsInstallsRecorder(t *testing.T) {
	counting := &countingRecorder{}
	SetGlobalMetrics(counting)
	defer SetGlobalMetrics(nil)

	ctx := context.Background()
	GetGlobalMetrics().RecordAgentCall(ctx, time.Millisecond, 1, nil)
	GetGlobalMetrics().RecordLLMCall(ctx, "m", time.Millisecond, 1, 2, nil)
	GetGlobalMetrics().RecordLLMCall(ctx, "m", time.Millisecond, 3, 4, nil)

	if counting.agentCalls != 1 || counting.llmCalls != 2 {
		t.Errorf("recorder saw agent=%d llm=%d, want 1 and 2", counting.agentCalls, counting.llmCalls)
	}
}

func TestBridgeRecorderNilIsNoop(t *testing.T) {
	rec := BridgeRecorder(nil)
	rec.RecordAgentCall(context.Background(), time.Millisecond, 0, nil)
}

func TestNoopMetricsSatisfiesRecorder(t *testing.T) {
	var rec Recorder = NoopMetrics{}
	rec.RecordAgentCall("a", "custom", time.Millisecond)
	rec.RecordLLMCall("m", "openai", time.Millisecond)
	rec.RecordToolCall("t", time.Millisecond)
	rec.RecordHTTPRequest("GET", "/x", 200, time.Millisecond, 0, 0)
}
