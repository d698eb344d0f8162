// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llmagent

import (
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/model"
)

// ContentProcessor turns the raw session event history into the message
// list a specific model provider expects, handling the three mechanical
// problems history reconstruction runs into: out-of-order long-running
// tool responses, cross-agent messages appearing in a sub-agent's
// history, and provider-specific framing quirks.
type ContentProcessor struct {
	agentName string
	provider  model.Provider
}

// NewContentProcessor builds a ContentProcessor for the given agent name
// and model provider.
func NewContentProcessor(agentName string, provider model.Provider) *ContentProcessor {
	return &ContentProcessor{agentName: agentName, provider: provider}
}

// RearrangeEventsForLatestFunctionResponse relocates the FunctionCall
// event matching the most recent event's tool results so it sits
// immediately before that response, handling a long-running tool's
// response arriving (via send_tool_response) well after the call was
// originally made and other events interleaved in between.
func (c *ContentProcessor) RearrangeEventsForLatestFunctionResponse(events []*agent.Event) ([]*agent.Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	if len(events[len(events)-1].ToolResults) == 0 {
		return events, nil
	}
	return pairCallsWithResponses(events), nil
}

// RearrangeEventsForFunctionResponsesInHistory applies the same
// relocation across the entire history, not just the latest event, so
// every FunctionCall/FunctionResponse pair in the reconstructed
// conversation is adjacent regardless of append order.
func (c *ContentProcessor) RearrangeEventsForFunctionResponsesInHistory(events []*agent.Event) ([]*agent.Event, error) {
	return pairCallsWithResponses(events), nil
}

// pairCallsWithResponses moves each FunctionCall event to sit
// immediately before the FunctionResponse event that references it,
// when the two are not already adjacent. Events that aren't part of a
// relocated pair keep their original relative order.
func pairCallsWithResponses(events []*agent.Event) []*agent.Event {
	if len(events) < 2 {
		return events
	}

	callPos := make(map[string]int, len(events))
	for i, e := range events {
		for _, tc := range e.ToolCalls {
			callPos[tc.ID] = i
		}
	}

	relocateBefore := make(map[int][]int)
	skip := make(map[int]bool)
	for i, e := range events {
		for _, tr := range e.ToolResults {
			callIdx, ok := callPos[tr.ToolCallID]
			if !ok || callIdx >= i || callIdx == i-1 || skip[callIdx] {
				continue
			}
			relocateBefore[i] = append(relocateBefore[i], callIdx)
			skip[callIdx] = true
		}
	}

	if len(relocateBefore) == 0 {
		return events
	}

	out := make([]*agent.Event, 0, len(events))
	for i, e := range events {
		if skip[i] {
			continue
		}
		for _, callIdx := range relocateBefore[i] {
			out = append(out, events[callIdx])
		}
		out = append(out, e)
	}
	return out
}

// ConvertForeignAgentMessage rewrites a message authored by a different
// agent (a sibling or parent in a multi-agent tree) into user-role
// context, tagged with its originating agent's name, so the consuming
// agent sees it as informational input rather than its own prior turn.
func (c *ContentProcessor) ConvertForeignAgentMessage(msg *a2a.Message, author string) *a2a.Message {
	if msg == nil || author == "" || author == c.agentName || msg.Role != a2a.MessageRoleAgent {
		return msg
	}

	parts := make([]a2a.Part, 0, len(msg.Parts))
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			parts = append(parts, a2a.TextPart{Text: fmt.Sprintf("[%s]: %s", author, tp.Text)})
			continue
		}
		parts = append(parts, part)
	}
	return a2a.NewMessage(a2a.MessageRoleUser, parts...)
}

// Process applies provider-specific framing. Every provider this codebase
// supports already receives correctly separated tool_use/tool_result
// messages from Flow's event construction (assistant message carrying
// tool_use parts, followed by a user message carrying tool_result parts),
// so the one cross-provider normalization needed here is collapsing
// consecutive same-role messages, which several backends require to
// avoid rejecting back-to-back turns from the same role.
func (c *ContentProcessor) Process(messages []*a2a.Message) []*a2a.Message {
	if len(messages) < 2 {
		return messages
	}

	out := make([]*a2a.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == msg.Role {
			out[n-1] = a2a.NewMessage(msg.Role, append(append([]a2a.Part{}, out[n-1].Parts...), msg.Parts...)...)
			continue
		}
		out = append(out, msg)
	}
	return out
}

// FilterAuthEvents strips auth-flow bookkeeping parts (OAuth
// request/response markers some tools emit) from the reconstructed
// history before it is sent to the model; these are UI/control signals,
// not conversation content. Messages left with no parts are dropped.
func (c *ContentProcessor) FilterAuthEvents(messages []*a2a.Message) []*a2a.Message {
	out := make([]*a2a.Message, 0, len(messages))
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		parts := make([]a2a.Part, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			if dp, ok := part.(a2a.DataPart); ok {
				if t, _ := dp.Data["type"].(string); t == "auth_request" || t == "auth_response" {
					continue
				}
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, a2a.NewMessage(msg.Role, parts...))
	}
	return out
}
