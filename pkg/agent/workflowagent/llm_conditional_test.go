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

package workflowagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/testutils"
)

func TestLLMConditionalRoutesByLabel(t *testing.T) {
	tech := echoAgent(t, "tech")
	billing := echoAgent(t, "billing")

	router, err := NewLLMConditional(LLMConditionalConfig{
		Name:        "router",
		Model:       testutils.NewScriptedLLM("router-model", testutils.TextTurn("technical")),
		Instruction: "Respond with exactly one of: technical, billing.",
		Routes: map[string]agent.Agent{
			"technical": tech,
			"billing":   billing,
		},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, router)
	events := collect(t, ctx, router)

	// The routing decision is surfaced to the caller before the chosen
	// child's events.
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, "router_router", events[0].Author)
	assert.Equal(t, "technical", events[0].TextContent())

	last := events[len(events)-1]
	assert.Equal(t, "tech", last.Author)
	assert.Equal(t, "tech", last.TextContent())
}

func TestLLMConditionalUnknownLabelEndsWithErrorMarker(t *testing.T) {
	router, err := NewLLMConditional(LLMConditionalConfig{
		Name:  "router",
		Model: testutils.NewScriptedLLM("router-model", testutils.TextTurn("shipping")),
		Routes: map[string]agent.Agent{
			"technical": echoAgent(t, "tech"),
		},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, router)
	events := collect(t, ctx, router)

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.TurnComplete)
	assert.Equal(t, string(agent.KindAgent), last.ErrorCode)
	assert.Contains(t, last.ErrorMessage, "shipping")
	assert.Equal(t, "router", last.Author)
}

func TestLLMConditionalRequiresModelAndRoutes(t *testing.T) {
	_, err := NewLLMConditional(LLMConditionalConfig{
		Name:   "router",
		Routes: map[string]agent.Agent{"a": echoAgent(t, "a")},
	})
	assert.Error(t, err)

	_, err = NewLLMConditional(LLMConditionalConfig{
		Name:  "router",
		Model: testutils.NewScriptedLLM("m", testutils.TextTurn("a")),
	})
	assert.Error(t, err)
}
