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
	"fmt"
	"iter"
	"strings"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/agent/llmagent"
	"github.com/loomkit/loom/pkg/model"
	"github.com/loomkit/loom/pkg/skill"
)

// LLMConditionalConfig defines the configuration for an LLMConditionalAgent
// (a router agent).
type LLMConditionalConfig struct {
	// Name is the agent name. The internal router sub-agent is named
	// Name + "_router".
	Name string

	// Description describes what the agent does.
	Description string

	// Model is the LLM used to pick a route label. It is run as a
	// single-turn, tool-less LLM agent with no schema or tool access.
	Model model.LLM

	// Instruction tells the router model how to choose among the labels
	// in Routes; it should direct the model to respond with exactly one
	// of those labels and nothing else.
	Instruction string

	// Routes maps a label the router model may emit to the agent that
	// should run when that label is chosen.
	Routes map[string]agent.Agent

	// Skills, when set, are matched against the user content and
	// injected as markers before the router and selected route run.
	Skills *skill.Set
}

// NewLLMConditional creates an LLMConditionalAgent.
//
// LLMConditionalAgent first runs a small routing LLM agent that is
// expected to emit exactly one label drawn from the keys of Routes, then
// delegates the remainder of the invocation to the matching child agent.
// The routing agent's own event is surfaced to the caller before the
// child's events, so a caller watching the stream sees the routing
// decision itself as the first event.
//
// If the router's response does not match any configured label, the
// agent yields a single terminal marker event carrying an AgentError and
// ends the invocation — it does not guess or fall back to a default
// route.
func NewLLMConditional(cfg LLMConditionalConfig) (agent.Agent, error) {
	if cfg.Model == nil {
		return nil, fmt.Errorf("llm-conditional agent %q: model is required", cfg.Name)
	}
	if len(cfg.Routes) == 0 {
		return nil, fmt.Errorf("llm-conditional agent %q: at least one route is required", cfg.Name)
	}

	router, err := llmagent.New(llmagent.Config{
		Name:        cfg.Name + "_router",
		Description: "Routes to the appropriate sub-agent based on user intent.",
		Model:       cfg.Model,
		Instruction: cfg.Instruction,
	})
	if err != nil {
		return nil, fmt.Errorf("llm-conditional agent %q: building router: %w", cfg.Name, err)
	}

	subAgents := []agent.Agent{router}
	for _, target := range cfg.Routes {
		subAgents = append(subAgents, target)
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   subAgents,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return runLLMConditional(cfg.Skills.Apply(ctx), cfg, router)
		},
	})
}

func runLLMConditional(ctx agent.InvocationContext, cfg LLMConditionalConfig, router agent.Agent) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		routerCtx := agent.NewSubContext(ctx, agent.SubContextParams{
			Agent:  router,
			Branch: ctx.Branch() + "/" + router.Name(),
		})

		var label string
		for event, err := range router.Run(routerCtx) {
			if err != nil {
				yield(nil, err)
				return
			}
			if event != nil && !event.Partial {
				if text := strings.TrimSpace(event.TextContent()); text != "" {
					label = text
				}
			}
			if !yield(event, nil) {
				return
			}
		}

		target, ok := cfg.Routes[label]
		if !ok {
			marker := agent.NewEvent(ctx.InvocationID())
			marker.Author = cfg.Name
			marker.Branch = ctx.Branch()
			marker.TurnComplete = true
			marker.ErrorCode = string(agent.KindAgent)
			marker.ErrorMessage = agent.NewAgentError(fmt.Sprintf("llm-conditional agent %q: router emitted unrecognized label %q", cfg.Name, label), nil).Error()
			yield(marker, nil)
			return
		}

		subCtx := agent.NewSubContext(ctx, agent.SubContextParams{
			Agent:  target,
			Branch: ctx.Branch() + "/" + target.Name(),
		})

		for event, err := range target.Run(subCtx) {
			if !yield(event, err) {
				return
			}
		}
	}
}
