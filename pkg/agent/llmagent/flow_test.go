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

package llmagent

import (
	"context"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"
	"github.com/loomkit/loom/pkg/testutils"
	"github.com/loomkit/loom/pkg/tool"
	"github.com/loomkit/loom/pkg/tool/functiontool"
)

type addArgs struct {
	A float64 `json:"a" jsonschema:"required,description=First addend"`
	B float64 `json:"b" jsonschema:"required,description=Second addend"`
}

func newAddTool(t *testing.T) tool.Tool {
	t.Helper()
	addTool, err := functiontool.New(
		functiontool.Config{Name: "add", Description: "Adds two numbers."},
		func(ctx tool.Context, args addArgs) (map[string]any, error) {
			return map[string]any{"result": args.A + args.B}, nil
		},
	)
	require.NoError(t, err)
	return addTool
}

func newFlowTestContext(t *testing.T, ag agent.Agent, userText string) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)

	return agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Agent:       ag,
		Session:     resp.Session,
		UserContent: agent.NewTextContent(userText, a2a.MessageRoleUser),
		RunConfig:   &agent.RunConfig{},
	})
}

// A full tool round-trip: the model requests add(2, 3), the dispatcher
// answers with 5, the next model turn produces the final text.
func TestToolCallRoundTrip(t *testing.T) {
	llm := testutils.NewScriptedLLM("calc-model",
		testutils.ToolCallTurn("c1", "add", map[string]any{"a": 2, "b": 3}),
		testutils.TextTurn("5"),
	)

	ag, err := New(Config{
		Name:  "calc",
		Model: llm,
		Tools: []tool.Tool{newAddTool(t)},
	})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "what is 2+3?")

	var events []*agent.Event
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err)
		events = append(events, event)
	}

	require.Len(t, events, 3)

	// Turn 1: the model's tool call.
	require.Len(t, events[0].ToolCalls, 1)
	assert.Equal(t, "c1", events[0].ToolCalls[0].ID)
	assert.Equal(t, "add", events[0].ToolCalls[0].Name)

	// The dispatcher's response, correlated by call ID.
	require.Len(t, events[1].ToolResults, 1)
	assert.Equal(t, "c1", events[1].ToolResults[0].ToolCallID)
	assert.Contains(t, events[1].ToolResults[0].Content, "5")
	assert.Equal(t, "success", events[1].ToolResults[0].Status)

	// Turn 2: the final natural response.
	assert.Equal(t, "5", events[2].TextContent())
	assert.Equal(t, 2, llm.Calls())
}

func TestUnknownToolProducesErrorResponseNotFailure(t *testing.T) {
	llm := testutils.NewScriptedLLM("m",
		testutils.ToolCallTurn("c1", "does_not_exist", map[string]any{}),
		testutils.TextTurn("recovered"),
	)

	ag, err := New(Config{Name: "a", Model: llm})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "go")

	var events []*agent.Event
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err, "an unknown tool must not fail the turn")
		events = append(events, event)
	}

	require.NotEmpty(t, events)
	var sawError bool
	for _, event := range events {
		for _, tr := range event.ToolResults {
			if tr.IsError {
				sawError = true
			}
		}
	}
	assert.True(t, sawError, "expected an error tool result for the unknown tool")
	assert.Equal(t, "recovered", events[len(events)-1].TextContent())
}

// Concatenating the text of all partial events of a streamed turn must
// equal the text of the merged final event.
func TestPartialAccumulation(t *testing.T) {
	llm := testutils.NewScriptedLLM("m", testutils.StreamedTextTurn("Hel", "lo ", "world"))

	ag, err := New(Config{
		Name:            "streamer",
		Model:           llm,
		EnableStreaming: true,
	})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "say hello")

	var partialText, finalText string
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err)
		if event.Partial {
			partialText += event.TextContent()
			assert.False(t, event.TurnComplete, "a partial event cannot complete the turn")
		} else if event.TextContent() != "" {
			finalText = event.TextContent()
		}
	}

	assert.Equal(t, "Hello world", finalText)
	assert.Equal(t, finalText, partialText)
}

func TestIterationLimitExceeded(t *testing.T) {
	// The scripted model never stops asking for the tool.
	llm := testutils.NewScriptedLLM("m",
		testutils.ToolCallTurn("c1", "add", map[string]any{"a": 1, "b": 1}),
	)

	ag, err := New(Config{
		Name:      "spinner",
		Model:     llm,
		Tools:     []tool.Tool{newAddTool(t)},
		Reasoning: &ReasoningConfig{MaxIterations: 2},
	})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "loop forever")

	var runErr error
	for _, err := range ag.Run(ctx) {
		if err != nil {
			runErr = err
		}
	}

	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "safety limit")
}

func TestEndedInvocationStopsBeforeModelCall(t *testing.T) {
	llm := testutils.NewScriptedLLM("m", testutils.TextTurn("should not run"))

	ag, err := New(Config{Name: "a", Model: llm})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "go")
	ctx.EndInvocation()

	var events []*agent.Event
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err)
		if event != nil {
			events = append(events, event)
		}
	}

	assert.Empty(t, events)
	assert.Zero(t, llm.Calls())
}

func TestOutputKeySavesFinalText(t *testing.T) {
	llm := testutils.NewScriptedLLM("m", testutils.TextTurn("saved value"))

	ag, err := New(Config{
		Name:      "writer",
		Model:     llm,
		OutputKey: "last_answer",
	})
	require.NoError(t, err)

	ctx := newFlowTestContext(t, ag, "go")

	var final *agent.Event
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err)
		if event != nil && !event.Partial {
			final = event
		}
	}

	require.NotNil(t, final)
	assert.Equal(t, "saved value", final.Actions.StateDelta["last_answer"])
}
