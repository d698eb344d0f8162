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

package agent

import (
	"fmt"
	"iter"

	"github.com/a2aproject/a2a-go/a2a"
)

// Agent is the contract every agent in a tree satisfies: given an
// invocation context, produce a lazy stream of events.
//
// Agents are built through constructors, never by hand:
//   - agent.New for custom agents
//   - llmagent.New for model-backed agents
//   - workflowagent.New* for sequential/parallel/loop/conditional composition
//   - remoteagent.NewA2A for remote delegation
type Agent interface {
	// Name identifies the agent uniquely within its tree. The name
	// "user" is reserved for end-user input events.
	Name() string

	// Description tells delegating models what the agent is for.
	Description() string

	// Run executes the agent. Events are produced lazily; the caller
	// drives the stream and the agent suspends between yields.
	Run(InvocationContext) iter.Seq2[*Event, error]

	// SubAgents returns the child agents this agent can delegate to.
	// The returned slice is owned by the agent; callers must not mutate it.
	SubAgents() []Agent

	// internal anchors the interface to this package so every Agent
	// flows through a constructor here.
	internal() *baseAgent
}

// Checkpointable is an optional capability for agents whose execution
// state cannot be rebuilt from session events alone.
//
// A checkpoint captures only the currently executing agent; the
// multi-agent history stays in the session event log, which remains the
// source of truth. On recovery, the checkpoint names the active agent,
// the session supplies the conversation, and the runner routes back to
// that agent.
type Checkpointable interface {
	Agent

	// CaptureCheckpointState returns the agent's current execution state.
	CaptureCheckpointState() (map[string]any, error)

	// RestoreCheckpointState reinstates state captured earlier.
	RestoreCheckpointState(state map[string]any) error
}

// Config describes a custom agent for New.
type Config struct {
	// Name must be non-empty and unique within the agent tree.
	Name string

	// Description of the agent's capability, used for delegation decisions.
	Description string

	// SubAgents are the children this agent can delegate to.
	SubAgents []Agent

	// BeforeAgentCallbacks run before the agent's Run function. A
	// callback returning a non-nil message short-circuits the run.
	BeforeAgentCallbacks []BeforeAgentCallback

	// Run is the agent's behavior. Required.
	Run func(InvocationContext) iter.Seq2[*Event, error]

	// AfterAgentCallbacks run after the agent's Run function completes.
	// A callback returning a non-nil message appends one more event.
	AfterAgentCallbacks []AfterAgentCallback
}

// BeforeAgentCallback may short-circuit an agent run by returning a
// replacement message.
type BeforeAgentCallback func(CallbackContext) (*a2a.Message, error)

// AfterAgentCallback may append a final message after an agent run.
type AfterAgentCallback func(CallbackContext) (*a2a.Message, error)

// AgentType identifies the kind of agent for introspection.
type AgentType string

const (
	TypeCustomAgent     AgentType = "custom"
	TypeLLMAgent        AgentType = "llm"
	TypeSequentialAgent AgentType = "sequential"
	TypeParallelAgent   AgentType = "parallel"
	TypeLoopAgent       AgentType = "loop"
	TypeRemoteAgent     AgentType = "remote"
)

// baseAgent is the single concrete implementation behind every Agent.
type baseAgent struct {
	name        string
	description string
	subAgents   []Agent
	agentType   AgentType

	beforeAgentCallbacks []BeforeAgentCallback
	run                  func(InvocationContext) iter.Seq2[*Event, error]
	afterAgentCallbacks  []AfterAgentCallback
}

// New creates an Agent with custom behavior. Construction problems are
// KindConfig errors: they indicate a bad tree, not a runtime condition.
func New(cfg Config) (Agent, error) {
	if cfg.Name == "" {
		return nil, NewConfigError("agent name is required", nil)
	}
	if cfg.Name == AuthorUser {
		return nil, NewConfigError(fmt.Sprintf("agent name %q is reserved for end-user input", AuthorUser), nil)
	}
	if cfg.Run == nil {
		return nil, NewConfigError(fmt.Sprintf("agent %q: Run function is required", cfg.Name), nil)
	}

	seen := make(map[string]bool, len(cfg.SubAgents))
	for _, sub := range cfg.SubAgents {
		if seen[sub.Name()] {
			return nil, NewConfigError(fmt.Sprintf("agent %q: duplicate sub-agent %q", cfg.Name, sub.Name()), nil)
		}
		seen[sub.Name()] = true
	}

	return &baseAgent{
		name:                 cfg.Name,
		description:          cfg.Description,
		subAgents:            cfg.SubAgents,
		agentType:            TypeCustomAgent,
		beforeAgentCallbacks: cfg.BeforeAgentCallbacks,
		run:                  cfg.Run,
		afterAgentCallbacks:  cfg.AfterAgentCallbacks,
	}, nil
}

func (a *baseAgent) Name() string         { return a.name }
func (a *baseAgent) Description() string  { return a.description }
func (a *baseAgent) SubAgents() []Agent   { return a.subAgents }
func (a *baseAgent) internal() *baseAgent { return a }

// Type returns the agent type for introspection.
func (a *baseAgent) Type() AgentType { return a.agentType }

// Run wraps the agent's behavior with its callback hooks. Events with no
// author are stamped with the agent's name on the way out, and the
// invocation's cooperative end flag is honored between phases.
func (a *baseAgent) Run(ctx InvocationContext) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		event, err := runCallbackPhase(a, ctx, a.beforeAgentCallbacks, true, "before")
		if event != nil || err != nil {
			yield(event, err)
			return
		}

		if ctx.Ended() {
			return
		}

		for event, err := range a.run(ctx) {
			if event != nil && event.Author == "" {
				event.Author = a.name
			}
			if !yield(event, err) {
				return
			}
		}

		if ctx.Ended() {
			return
		}

		event, err = runCallbackPhase(a, ctx, a.afterAgentCallbacks, false, "after")
		if event != nil || err != nil {
			yield(event, err)
		}
	}
}

// runCallbackPhase executes one callback phase. A callback returning a
// message produces an event carrying it; in the before phase that also
// ends the invocation, since the callback replaced the run. With no
// message but accumulated state mutations, a bare state-delta event
// records them.
func runCallbackPhase[T ~func(CallbackContext) (*a2a.Message, error)](
	a *baseAgent, ctx InvocationContext, callbacks []T, endOnMessage bool, phase string,
) (*Event, error) {
	cbCtx := newCallbackContext(ctx)

	for _, cb := range callbacks {
		msg, err := cb(cbCtx)
		if err != nil {
			return nil, NewAgentError(fmt.Sprintf("agent %q: %s-agent callback failed", a.name, phase), err)
		}
		if msg != nil {
			event := a.callbackEvent(ctx, cbCtx)
			event.Message = msg
			if endOnMessage {
				ctx.EndInvocation()
			}
			return event, nil
		}
	}

	if len(cbCtx.actions.StateDelta) > 0 {
		return a.callbackEvent(ctx, cbCtx), nil
	}
	return nil, nil
}

func (a *baseAgent) callbackEvent(ctx InvocationContext, cbCtx *callbackContext) *Event {
	event := NewEvent(ctx.InvocationID())
	event.Author = a.name
	event.Branch = ctx.Branch()
	event.Actions = *cbCtx.actions
	return event
}

// FindAgent returns the named agent in the tree rooted at root,
// searching depth-first, or nil when absent.
func FindAgent(root Agent, name string) Agent {
	if root == nil {
		return nil
	}
	if root.Name() == name {
		return root
	}
	for _, sub := range root.SubAgents() {
		if found := FindAgent(sub, name); found != nil {
			return found
		}
	}
	return nil
}

// FindAgentPath returns the chain of agent names from root (exclusive)
// down to the named agent, or nil when absent. A hit at the root itself
// returns an empty, non-nil path.
func FindAgentPath(root Agent, name string) []string {
	if root == nil {
		return nil
	}
	if root.Name() == name {
		return []string{}
	}
	for _, sub := range root.SubAgents() {
		if path := FindAgentPath(sub, name); path != nil {
			return append([]string{sub.Name()}, path...)
		}
	}
	return nil
}

// WalkAgents visits every agent in the tree depth-first with its depth.
// Returning false from the visitor stops the walk.
func WalkAgents(root Agent, visitor func(Agent, int) bool) {
	walkAgents(root, 0, visitor)
}

func walkAgents(ag Agent, depth int, visitor func(Agent, int) bool) bool {
	if ag == nil {
		return true
	}
	if !visitor(ag, depth) {
		return false
	}
	for _, sub := range ag.SubAgents() {
		if !walkAgents(sub, depth+1, visitor) {
			return false
		}
	}
	return true
}

// ListAgents flattens the tree depth-first, root first.
func ListAgents(root Agent) []Agent {
	var agents []Agent
	WalkAgents(root, func(ag Agent, _ int) bool {
		agents = append(agents, ag)
		return true
	})
	return agents
}
