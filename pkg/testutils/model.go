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

package testutils

import (
	"context"
	"iter"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/loomkit/loom/pkg/model"
	"github.com/loomkit/loom/pkg/tool"
)

// ScriptedLLM is a deterministic model.LLM for tests. Each call to
// GenerateContent plays back the next scripted turn; the last turn
// repeats once the script is exhausted. It records every request it
// received so tests can assert on what the agent actually sent.
type ScriptedLLM struct {
	name  string
	turns [][]*model.Response

	mu       sync.Mutex
	calls    int
	Requests []*model.Request
}

// NewScriptedLLM builds a scripted model. Each turn is the full response
// sequence of one GenerateContent call, in yield order.
func NewScriptedLLM(name string, turns ...[]*model.Response) *ScriptedLLM {
	return &ScriptedLLM{name: name, turns: turns}
}

// TextTurn scripts one non-streaming turn with a final text response.
func TextTurn(text string) []*model.Response {
	return []*model.Response{{
		Content: &model.Content{
			Role:  a2a.MessageRoleAgent,
			Parts: []a2a.Part{a2a.TextPart{Text: text}},
		},
		TurnComplete: true,
		FinishReason: model.FinishReasonStop,
	}}
}

// StreamedTextTurn scripts one streaming turn: one partial response per
// chunk followed by the aggregated final response.
func StreamedTextTurn(chunks ...string) []*model.Response {
	var turn []*model.Response
	var full string
	for _, chunk := range chunks {
		full += chunk
		turn = append(turn, &model.Response{
			Content: &model.Content{
				Role:  a2a.MessageRoleAgent,
				Parts: []a2a.Part{a2a.TextPart{Text: chunk}},
			},
			Partial: true,
		})
	}
	turn = append(turn, TextTurn(full)...)
	return turn
}

// ToolCallTurn scripts one turn where the model requests a single tool
// call instead of answering.
func ToolCallTurn(id, name string, args map[string]any) []*model.Response {
	return []*model.Response{{
		ToolCalls:    []tool.ToolCall{{ID: id, Name: name, Args: args}},
		TurnComplete: true,
		FinishReason: model.FinishReasonToolCalls,
	}}
}

func (m *ScriptedLLM) Name() string             { return m.name }
func (m *ScriptedLLM) Provider() model.Provider { return model.ProviderUnknown }
func (m *ScriptedLLM) Close() error             { return nil }

// Calls returns how many GenerateContent calls were made.
func (m *ScriptedLLM) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *ScriptedLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	m.mu.Lock()
	turn := m.turns[len(m.turns)-1]
	if m.calls < len(m.turns) {
		turn = m.turns[m.calls]
	}
	m.calls++
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	return func(yield func(*model.Response, error) bool) {
		for _, resp := range turn {
			if !stream && resp.Partial {
				continue
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

var _ model.LLM = (*ScriptedLLM)(nil)
