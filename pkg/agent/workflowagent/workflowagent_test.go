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
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"
)

// echoAgent emits a single terminal event whose text is the agent name.
func echoAgent(t *testing.T, name string) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name: name,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				event := agent.NewEvent(ctx.InvocationID())
				event.Branch = ctx.Branch()
				event.Message = agent.NewTextContent(name, a2a.MessageRoleAgent).ToMessage()
				event.TurnComplete = true
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)
	return ag
}

// countingAgent bumps temp:n on each run and escalates when it hits the
// given threshold.
func countingAgent(t *testing.T, name string, escalateAt int) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name: name,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				n := 0
				if v, err := ctx.Session().State().Get("temp:n"); err == nil {
					n = v.(int)
				}
				n++

				event := agent.NewEvent(ctx.InvocationID())
				event.Branch = ctx.Branch()
				event.Actions.StateDelta = map[string]any{"temp:n": n}
				if n >= escalateAt {
					event.Actions.Escalate = true
				}

				// Composites run outside the runner here, so the state
				// write is applied directly alongside the delta record.
				_ = ctx.Session().State().Set("temp:n", n)
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)
	return ag
}

func newTestContext(t *testing.T, root agent.Agent) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)

	return agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Agent:       root,
		Session:     resp.Session,
		UserContent: agent.NewTextContent("hello", a2a.MessageRoleUser),
		RunConfig:   &agent.RunConfig{},
	})
}

func collect(t *testing.T, ctx agent.InvocationContext, ag agent.Agent) []*agent.Event {
	t.Helper()
	var events []*agent.Event
	for event, err := range ag.Run(ctx) {
		require.NoError(t, err)
		events = append(events, event)
	}
	return events
}

func TestSequentialRunsChildrenInOrder(t *testing.T) {
	a := echoAgent(t, "a")
	b := echoAgent(t, "b")

	seq, err := NewSequential(SequentialConfig{
		Name:      "seq",
		SubAgents: []agent.Agent{a, b},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, seq)
	events := collect(t, ctx, seq)

	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].Author)
	assert.Equal(t, "a", events[0].TextContent())
	assert.Equal(t, "b", events[1].Author)
	assert.Equal(t, "b", events[1].TextContent())
}

func TestSequentialEmptySubAgents(t *testing.T) {
	seq, err := NewSequential(SequentialConfig{Name: "seq"})
	require.NoError(t, err)

	ctx := newTestContext(t, seq)
	assert.Empty(t, collect(t, ctx, seq))
}

// All events of one composite run must share the top-level invocation ID.
func TestSequentialSharesInvocationID(t *testing.T) {
	seq, err := NewSequential(SequentialConfig{
		Name:      "seq",
		SubAgents: []agent.Agent{echoAgent(t, "a"), echoAgent(t, "b")},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, seq)
	events := collect(t, ctx, seq)

	require.Len(t, events, 2)
	for _, event := range events {
		assert.Equal(t, ctx.InvocationID(), event.InvocationID)
	}
}

func TestSequentialEscalationShortCircuits(t *testing.T) {
	escalator, err := agent.New(agent.Config{
		Name: "escalator",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				event := agent.NewEvent(ctx.InvocationID())
				event.Actions.Escalate = true
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)

	seq, err := NewSequential(SequentialConfig{
		Name:      "seq",
		SubAgents: []agent.Agent{escalator, echoAgent(t, "never")},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, seq)
	events := collect(t, ctx, seq)

	require.Len(t, events, 1)
	assert.True(t, events[0].Actions.Escalate)
}

func TestLoopStopsOnEscalation(t *testing.T) {
	loop, err := NewLoop(LoopConfig{
		Name:          "l",
		SubAgents:     []agent.Agent{countingAgent(t, "counter", 2)},
		MaxIterations: 10,
	})
	require.NoError(t, err)

	ctx := newTestContext(t, loop)
	events := collect(t, ctx, loop)

	require.Len(t, events, 2)
	assert.False(t, events[0].Actions.Escalate)
	assert.True(t, events[1].Actions.Escalate)
}

func TestLoopStopsAtMaxIterations(t *testing.T) {
	loop, err := NewLoop(LoopConfig{
		Name:          "l",
		SubAgents:     []agent.Agent{echoAgent(t, "child")},
		MaxIterations: 3,
	})
	require.NoError(t, err)

	ctx := newTestContext(t, loop)
	events := collect(t, ctx, loop)
	assert.Len(t, events, 3)
}

func TestLoopBranchCarriesIterationTag(t *testing.T) {
	loop, err := NewLoop(LoopConfig{
		Name:          "l",
		SubAgents:     []agent.Agent{echoAgent(t, "child")},
		MaxIterations: 2,
	})
	require.NoError(t, err)

	ctx := newTestContext(t, loop)
	events := collect(t, ctx, loop)

	require.Len(t, events, 2)
	assert.Equal(t, "/loop#1/child", events[0].Branch)
	assert.Equal(t, "/loop#2/child", events[1].Branch)
}

// Cooperative cancellation: once the invocation is ended mid-stream, the
// loop must not start another iteration.
func TestLoopStopsWhenInvocationEnds(t *testing.T) {
	loop, err := NewLoop(LoopConfig{
		Name:          "l",
		SubAgents:     []agent.Agent{echoAgent(t, "child")},
		MaxIterations: 10,
	})
	require.NoError(t, err)

	ctx := newTestContext(t, loop)

	var count int
	for _, err := range loop.Run(ctx) {
		require.NoError(t, err)
		count++
		ctx.EndInvocation()
	}
	assert.Equal(t, 1, count)
}

func TestParallelInterleavesAllChildren(t *testing.T) {
	a := echoAgent(t, "a")
	b := echoAgent(t, "b")
	c := echoAgent(t, "c")

	par, err := NewParallel(ParallelConfig{
		Name:      "par",
		SubAgents: []agent.Agent{a, b, c},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, par)
	events := collect(t, ctx, par)

	require.Len(t, events, 3)
	authors := make(map[string]bool)
	for _, event := range events {
		authors[event.Author] = true
		assert.Equal(t, ctx.InvocationID(), event.InvocationID)
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, authors)
}

// Within one child of a Parallel composite, event order is preserved even
// though inter-child order is unspecified.
func TestParallelPreservesPerChildOrder(t *testing.T) {
	makeSeqEmitter := func(name string, n int) agent.Agent {
		ag, err := agent.New(agent.Config{
			Name: name,
			Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
				return func(yield func(*agent.Event, error) bool) {
					for i := 0; i < n; i++ {
						event := agent.NewEvent(ctx.InvocationID())
						event.Message = agent.NewTextContent(fmt.Sprintf("%s-%d", name, i), a2a.MessageRoleAgent).ToMessage()
						if !yield(event, nil) {
							return
						}
					}
				}
			},
		})
		require.NoError(t, err)
		return ag
	}

	par, err := NewParallel(ParallelConfig{
		Name:      "par",
		SubAgents: []agent.Agent{makeSeqEmitter("x", 3), makeSeqEmitter("y", 3)},
	})
	require.NoError(t, err)

	ctx := newTestContext(t, par)
	events := collect(t, ctx, par)
	require.Len(t, events, 6)

	perChild := make(map[string][]string)
	for _, event := range events {
		perChild[event.Author] = append(perChild[event.Author], event.TextContent())
	}
	assert.Equal(t, []string{"x-0", "x-1", "x-2"}, perChild["x"])
	assert.Equal(t, []string{"y-0", "y-1", "y-2"}, perChild["y"])
}

func TestParallelEmptySubAgents(t *testing.T) {
	par, err := NewParallel(ParallelConfig{Name: "par"})
	require.NoError(t, err)

	ctx := newTestContext(t, par)
	assert.Empty(t, collect(t, ctx, par))
}

func TestConditionalTruePicksIfBranch(t *testing.T) {
	ifAgent := echoAgent(t, "if_agent")
	elseAgent := echoAgent(t, "else_agent")

	cond, err := NewConditional(ConditionalConfig{
		Name:      "cond",
		Predicate: func(agent.ReadonlyContext) bool { return true },
		IfAgent:   ifAgent,
		ElseAgent: elseAgent,
	})
	require.NoError(t, err)

	ctx := newTestContext(t, cond)
	events := collect(t, ctx, cond)

	require.Len(t, events, 1)
	assert.Equal(t, "if_agent", events[0].Author)
}

func TestConditionalFalseWithoutElseYieldsNothing(t *testing.T) {
	cond, err := NewConditional(ConditionalConfig{
		Name:      "cond",
		Predicate: func(agent.ReadonlyContext) bool { return false },
		IfAgent:   echoAgent(t, "if_agent"),
	})
	require.NoError(t, err)

	ctx := newTestContext(t, cond)
	assert.Empty(t, collect(t, ctx, cond))
}

func TestConditionalFalsePicksElseBranch(t *testing.T) {
	cond, err := NewConditional(ConditionalConfig{
		Name:      "cond",
		Predicate: func(agent.ReadonlyContext) bool { return false },
		IfAgent:   echoAgent(t, "if_agent"),
		ElseAgent: echoAgent(t, "else_agent"),
	})
	require.NoError(t, err)

	ctx := newTestContext(t, cond)
	events := collect(t, ctx, cond)

	require.Len(t, events, 1)
	assert.Equal(t, "else_agent", events[0].Author)
}

func TestConditionalRequiresPredicateAndIfAgent(t *testing.T) {
	_, err := NewConditional(ConditionalConfig{Name: "c", IfAgent: echoAgent(t, "a")})
	assert.Error(t, err)

	_, err = NewConditional(ConditionalConfig{
		Name:      "c",
		Predicate: func(agent.ReadonlyContext) bool { return true },
	})
	assert.Error(t, err)
}

func TestConditionalPredicateReadsState(t *testing.T) {
	cond, err := NewConditional(ConditionalConfig{
		Name: "cond",
		Predicate: func(ctx agent.ReadonlyContext) bool {
			_, err := ctx.ReadonlyState().Get("flag")
			return err == nil
		},
		IfAgent: echoAgent(t, "if_agent"),
	})
	require.NoError(t, err)

	ctx := newTestContext(t, cond)
	require.NoError(t, ctx.Session().State().Set("flag", true))

	events := collect(t, ctx, cond)
	require.Len(t, events, 1)
	assert.Equal(t, "if_agent", events[0].Author)
}
