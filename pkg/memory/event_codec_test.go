package memory

import (
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
)

// The durable event encoding must round-trip every field the runtime
// relies on for history reconstruction and call correlation.
func TestEventCodecRoundTrip(t *testing.T) {
	event := agent.NewEvent("inv-42")
	event.Timestamp = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event.Author = "research_agent"
	event.Branch = "seq/child1"
	event.Partial = false
	event.TurnComplete = true
	event.Interrupted = true
	event.ErrorCode = "model_error"
	event.ErrorMessage = "backend unavailable"
	event.LongRunningToolIDs = []string{"call_3"}
	event.Actions = agent.EventActions{
		StateDelta:        map[string]any{"k": "v", "app:k": float64(1), "user:k": float64(2)},
		ArtifactDelta:     map[string]int64{"file.txt": 3},
		TransferToAgent:   "other_agent",
		Escalate:          true,
		SkipSummarization: true,
	}
	event.ToolCalls = []agent.ToolCallState{{
		ID: "call_1", Name: "add", Args: map[string]any{"a": float64(2)}, Status: "working",
	}}
	event.ToolResults = []agent.ToolResultState{{
		ToolCallID: "call_1", Content: "5", Status: "success",
	}}
	event.CustomMetadata = map[string]any{"trace": "abc"}
	event.Message = a2a.NewMessage(a2a.MessageRoleAgent,
		a2a.TextPart{Text: "calling add"},
		a2a.DataPart{Data: map[string]any{"type": "tool_use", "id": "call_1"}},
	)

	encoded, err := marshalEvent(event)
	require.NoError(t, err)

	decoded, err := unmarshalEvent(encoded)
	require.NoError(t, err)

	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, event.InvocationID, decoded.InvocationID)
	assert.True(t, event.Timestamp.Equal(decoded.Timestamp))
	assert.Equal(t, event.Author, decoded.Author)
	assert.Equal(t, event.Branch, decoded.Branch)
	assert.Equal(t, event.Partial, decoded.Partial)
	assert.Equal(t, event.TurnComplete, decoded.TurnComplete)
	assert.Equal(t, event.Interrupted, decoded.Interrupted)
	assert.Equal(t, event.ErrorCode, decoded.ErrorCode)
	assert.Equal(t, event.ErrorMessage, decoded.ErrorMessage)
	assert.Equal(t, event.LongRunningToolIDs, decoded.LongRunningToolIDs)
	assert.Equal(t, event.Actions, decoded.Actions)
	assert.Equal(t, event.ToolCalls, decoded.ToolCalls)
	assert.Equal(t, event.ToolResults, decoded.ToolResults)
	assert.Equal(t, event.CustomMetadata, decoded.CustomMetadata)

	require.NotNil(t, decoded.Message)
	require.Len(t, decoded.Message.Parts, 2)
	text, ok := decoded.Message.Parts[0].(a2a.TextPart)
	require.True(t, ok)
	assert.Equal(t, "calling add", text.Text)
	data, ok := decoded.Message.Parts[1].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "tool_use", data.Data["type"])
}

func TestEventCodecEmptyEvent(t *testing.T) {
	event := agent.NewEvent("inv-1")
	event.Author = "a"

	encoded, err := marshalEvent(event)
	require.NoError(t, err)

	decoded, err := unmarshalEvent(encoded)
	require.NoError(t, err)
	assert.Equal(t, event.ID, decoded.ID)
	assert.Nil(t, decoded.Message)
}
