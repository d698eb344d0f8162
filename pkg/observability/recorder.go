package observability

import (
	"context"
	"sync"
	"time"
)

// CallRecorder is the process-global hook provider clients and agent
// instrumentation record through. It is deliberately narrower than
// Recorder: callers at this level know the call's outcome and token
// counts, not the label taxonomy the metrics registry uses.
type CallRecorder interface {
	RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
}

var (
	globalRecorder   CallRecorder = noopCallRecorder{}
	globalRecorderMu sync.RWMutex
)

// SetGlobalMetrics installs the process-global call recorder.
func SetGlobalMetrics(m CallRecorder) {
	globalRecorderMu.Lock()
	defer globalRecorderMu.Unlock()
	if m == nil {
		globalRecorder = noopCallRecorder{}
		return
	}
	globalRecorder = m
}

// GetGlobalMetrics returns the installed call recorder, never nil.
func GetGlobalMetrics() CallRecorder {
	globalRecorderMu.RLock()
	defer globalRecorderMu.RUnlock()
	return globalRecorder
}

// noopCallRecorder discards everything; it is the default until a real
// recorder is installed.
type noopCallRecorder struct{}

func (noopCallRecorder) RecordAgentCall(context.Context, time.Duration, int, error) {}
func (noopCallRecorder) RecordToolExecution(context.Context, string, time.Duration, error) {
}
func (noopCallRecorder) RecordLLMCall(context.Context, string, time.Duration, int, int, error) {
}

// BridgeRecorder adapts a Recorder (the label-oriented metrics registry)
// into a CallRecorder so the global hook can feed the real registry.
func BridgeRecorder(r Recorder) CallRecorder {
	if r == nil {
		return noopCallRecorder{}
	}
	return &recorderBridge{r: r}
}

type recorderBridge struct {
	r Recorder
}

func (b *recorderBridge) RecordAgentCall(ctx context.Context, duration time.Duration, tokens int, err error) {
	b.r.RecordAgentCall("", "", duration)
	if err != nil {
		b.r.RecordAgentError("", "", "call")
	}
}

func (b *recorderBridge) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	b.r.RecordToolCall(tool, duration)
	if err != nil {
		b.r.RecordToolError(tool, "call")
	}
}

func (b *recorderBridge) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	b.r.RecordLLMCall(model, "", duration)
	b.r.RecordLLMTokens(model, "", inputTokens, outputTokens)
	if err != nil {
		b.r.RecordLLMError(model, "", "call")
	}
}
