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
	"encoding/json"
	"fmt"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/instruction"
	"github.com/loomkit/loom/pkg/model"
)

// instructionRequestProcessor resolves the agent's instruction and
// global instruction templates against session/app/user/temp state and
// artifacts (instruction.InjectState), appends any ContextProvider result
// for the user's text, then sets LlmRequest.SystemInstruction.
type instructionRequestProcessor struct{}

func (p *instructionRequestProcessor) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	a := ctx.llmAgent

	global, err := resolveInstructionText(ctx, a.globalInstruction, a.globalInstructionProvider)
	if err != nil {
		return fmt.Errorf("resolving global instruction: %w", err)
	}

	local, err := resolveInstructionText(ctx, a.instruction, a.instructionProvider)
	if err != nil {
		return fmt.Errorf("resolving instruction: %w", err)
	}

	parts := make([]string, 0, 3)
	if global != "" {
		parts = append(parts, global)
	}
	if local != "" {
		parts = append(parts, local)
	}
	if a.contextProvider != nil && ctx.UserContent() != nil {
		var query string
		for _, part := range ctx.UserContent().Parts {
			if tp, ok := part.(a2a.TextPart); ok {
				query += tp.Text
			}
		}
		if query != "" {
			extra, err := a.contextProvider(ctx, query)
			if err != nil {
				return fmt.Errorf("retrieving context: %w", err)
			}
			if extra != "" {
				parts = append(parts, extra)
			}
		}
	}
	if completion := a.buildCompletionInstruction(); completion != "" {
		parts = append(parts, completion)
	}

	req.SystemInstruction = joinInstructions(parts)
	return nil
}

// resolveInstructionText prefers a provider over the static template when
// both are set, matching Config's documented precedence.
func resolveInstructionText(ctx *ProcessorContext, template string, provider InstructionProvider) (string, error) {
	if provider != nil {
		return provider(ctx)
	}
	if template == "" {
		return "", nil
	}
	return instruction.InjectState(ctx, template)
}

// contentsRequestProcessor reconstructs conversation history from the
// session event log into the messages the model will see.
type contentsRequestProcessor struct{}

func (p *contentsRequestProcessor) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	req.Messages = ctx.llmAgent.buildMessages(ctx)
	return nil
}

// toolsRequestProcessor exports the agent's current tool declarations.
type toolsRequestProcessor struct{}

func (p *toolsRequestProcessor) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	req.Tools = ctx.llmAgent.collectToolDefinitions(ctx)
	return nil
}

// generateConfigRequestProcessor carries the agent's configured
// generation settings onto the request, cloning so per-request mutation
// (e.g. tool preprocessing adjusting config) never leaks back into the
// agent's shared configuration.
type generateConfigRequestProcessor struct{}

func (p *generateConfigRequestProcessor) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	if ctx.llmAgent.generateConfig != nil {
		req.Config = ctx.llmAgent.generateConfig.Clone()
	} else if req.Config == nil {
		req.Config = &model.GenerateConfig{}
	}
	return nil
}

// structuredOutputResponseProcessor enforces OutputSchema when
// configured: once the terminal chunk has been merged, the response's
// text is parsed as JSON and checked against the schema's declared
// required fields and primitive types. A violation surfaces as a
// SchemaViolationError; the Flow's runOneStep retries the call
// (Config.Reasoning.SchemaRetries, default 1) with a schema reminder
// injected into the conversation before giving up.
type structuredOutputResponseProcessor struct{}

func (p *structuredOutputResponseProcessor) ProcessResponse(ctx *ProcessorContext, req *model.Request, resp *model.Response) error {
	schema := ctx.llmAgent.outputSchema
	if schema == nil || resp == nil || resp.Partial || resp.Content == nil {
		return nil
	}

	text := resp.TextContent()
	if text == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return agentSchemaViolation(ctx, fmt.Sprintf("response is not valid JSON: %v", err))
	}

	if err := validateAgainstSchema(parsed, schema); err != nil {
		return agentSchemaViolation(ctx, err.Error())
	}

	return nil
}

// schemaReminderText builds the reminder message injected into the
// conversation before a structured-output retry, restating the schema
// violation so the model can self-correct.
func schemaReminderText(violation string) string {
	return fmt.Sprintf(
		"Your previous response did not satisfy the required output schema: %s. "+
			"Reply again with a single JSON value that satisfies the schema exactly, and nothing else.",
		violation,
	)
}

// validateAgainstSchema performs a minimal structural check: declared
// "required" keys are present, and declared "properties" types (object,
// array, string, number, integer, boolean) match. It intentionally does
// not implement the full JSON Schema spec (no $ref, no combinators) —
// the retrieval pack carried no dedicated JSON-schema validation
// dependency to ground a fuller implementation on (see DESIGN.md).
func validateAgainstSchema(value any, schema map[string]any) error {
	obj, ok := value.(map[string]any)
	if required, hasRequired := schema["required"].([]any); hasRequired {
		if !ok {
			return fmt.Errorf("expected a JSON object to satisfy required fields")
		}
		for _, r := range required {
			key, _ := r.(string)
			if key == "" {
				continue
			}
			if _, present := obj[key]; !present {
				return fmt.Errorf("missing required field %q", key)
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	if properties == nil || !ok {
		return nil
	}

	for key, propSchema := range properties {
		propVal, present := obj[key]
		if !present {
			continue
		}
		propMap, _ := propSchema.(map[string]any)
		wantType, _ := propMap["type"].(string)
		if wantType == "" {
			continue
		}
		if !matchesJSONType(propVal, wantType) {
			return fmt.Errorf("field %q: expected type %q", key, wantType)
		}
	}

	return nil
}

func matchesJSONType(value any, jsonType string) bool {
	switch jsonType {
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "null":
		return value == nil
	default:
		return true
	}
}

func agentModelError(ctx *ProcessorContext, message string) error {
	return agent.NewModelError(fmt.Sprintf("agent %q: %s", ctx.llmAgent.Name(), message), nil)
}

func agentSchemaViolation(ctx *ProcessorContext, violation string) error {
	return agent.NewSchemaViolationError(fmt.Sprintf("agent %q: schema violation: %s", ctx.llmAgent.Name(), violation))
}
