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

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/skill"
)

// Predicate decides which branch a ConditionalAgent takes. It is a pure
// function of the readonly invocation context: no state is mutated and no
// events are produced while evaluating it.
type Predicate func(agent.ReadonlyContext) bool

// ConditionalConfig defines the configuration for a ConditionalAgent.
type ConditionalConfig struct {
	// Name is the agent name.
	Name string

	// Description describes what the agent does.
	Description string

	// Predicate selects IfAgent when true, ElseAgent (if any) otherwise.
	Predicate Predicate

	// IfAgent runs when Predicate returns true.
	IfAgent agent.Agent

	// ElseAgent runs when Predicate returns false. Optional: if nil and
	// the predicate is false, the agent yields no events.
	ElseAgent agent.Agent

	// Skills, when set, are matched against the user content and
	// injected as markers before the selected branch runs.
	Skills *skill.Set
}

// NewConditional creates a ConditionalAgent.
//
// ConditionalAgent evaluates Predicate once per invocation and delegates
// the entire run to exactly one of its two branches. Unlike LoopAgent or
// ParallelAgent, only the selected branch's sub-agent tree is ever run;
// the other branch's events never appear in the stream.
//
// Example:
//
//	hasAttachment := func(ctx agent.ReadonlyContext) bool {
//	    _, err := ctx.ReadonlyState().Get("attachment_uri")
//	    return err == nil
//	}
//
//	router, _ := workflowagent.NewConditional(workflowagent.ConditionalConfig{
//	    Name:      "intake",
//	    Predicate: hasAttachment,
//	    IfAgent:   visionAgent,
//	    ElseAgent: textAgent,
//	})
func NewConditional(cfg ConditionalConfig) (agent.Agent, error) {
	if cfg.Predicate == nil {
		return nil, fmt.Errorf("conditional agent %q: predicate is required", cfg.Name)
	}
	if cfg.IfAgent == nil {
		return nil, fmt.Errorf("conditional agent %q: if-agent is required", cfg.Name)
	}

	subAgents := []agent.Agent{cfg.IfAgent}
	if cfg.ElseAgent != nil {
		subAgents = append(subAgents, cfg.ElseAgent)
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		SubAgents:   subAgents,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return runConditional(cfg.Skills.Apply(ctx), cfg)
		},
	})
}

func runConditional(ctx agent.InvocationContext, cfg ConditionalConfig) iter.Seq2[*agent.Event, error] {
	return func(yield func(*agent.Event, error) bool) {
		target := cfg.ElseAgent
		if cfg.Predicate(ctx) {
			target = cfg.IfAgent
		}
		if target == nil {
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
