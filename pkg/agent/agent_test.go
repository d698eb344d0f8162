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
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
)

func emitNothing(InvocationContext) iter.Seq2[*Event, error] {
	return func(func(*Event, error) bool) {}
}

func mustAgent(t *testing.T, cfg Config) Agent {
	t.Helper()
	ag, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ag
}

func TestNewValidation(t *testing.T) {
	child := mustAgent(t, Config{Name: "child", Run: emitNothing})

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Name: "a", Run: emitNothing}, false},
		{"empty name", Config{Run: emitNothing}, true},
		{"reserved name", Config{Name: AuthorUser, Run: emitNothing}, true},
		{"missing run", Config{Name: "a"}, true},
		{"duplicate sub-agents", Config{Name: "a", Run: emitNothing, SubAgents: []Agent{child, child}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var taxed *Error
				if !errors.As(err, &taxed) || taxed.Kind != KindConfig {
					t.Errorf("New() error kind = %v, want %v", err, KindConfig)
				}
			}
		})
	}
}

func TestRunStampsAuthor(t *testing.T) {
	ag := mustAgent(t, Config{
		Name: "writer",
		Run: func(ctx InvocationContext) iter.Seq2[*Event, error] {
			return func(yield func(*Event, error) bool) {
				yield(NewEvent(ctx.InvocationID()), nil)
			}
		},
	})

	ctx := NewInvocationContext(context.Background(), InvocationContextParams{Agent: ag})
	for event, err := range ag.Run(ctx) {
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if event.Author != "writer" {
			t.Errorf("event author = %q, want %q", event.Author, "writer")
		}
	}
}

func TestBeforeAgentCallbackShortCircuits(t *testing.T) {
	var ran bool
	ag := mustAgent(t, Config{
		Name: "guarded",
		BeforeAgentCallbacks: []BeforeAgentCallback{
			func(CallbackContext) (*a2a.Message, error) {
				return a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "replaced"}), nil
			},
		},
		Run: func(ctx InvocationContext) iter.Seq2[*Event, error] {
			ran = true
			return emitNothing(ctx)
		},
	})

	ctx := NewInvocationContext(context.Background(), InvocationContextParams{Agent: ag})
	var events []*Event
	for event, err := range ag.Run(ctx) {
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		events = append(events, event)
	}

	if ran {
		t.Error("agent Run executed despite short-circuiting callback")
	}
	if len(events) != 1 || events[0].TextContent() != "replaced" {
		t.Errorf("events = %v, want single replacement event", events)
	}
	if !ctx.Ended() {
		t.Error("short-circuit should end the invocation")
	}
}

func TestCallbackErrorIsAgentError(t *testing.T) {
	ag := mustAgent(t, Config{
		Name: "failing",
		BeforeAgentCallbacks: []BeforeAgentCallback{
			func(CallbackContext) (*a2a.Message, error) {
				return nil, errors.New("boom")
			},
		},
		Run: emitNothing,
	})

	ctx := NewInvocationContext(context.Background(), InvocationContextParams{Agent: ag})
	var got error
	for _, err := range ag.Run(ctx) {
		if err != nil {
			got = err
		}
	}

	var taxed *Error
	if !errors.As(got, &taxed) || taxed.Kind != KindAgent {
		t.Errorf("callback failure = %v, want KindAgent error", got)
	}
}

func TestSubContextSharesInvocation(t *testing.T) {
	parent := mustAgent(t, Config{Name: "parent", Run: emitNothing})
	child := mustAgent(t, Config{Name: "child", Run: emitNothing})

	ctx := NewInvocationContext(context.Background(), InvocationContextParams{Agent: parent, Branch: "root"})
	sub := NewSubContext(ctx, SubContextParams{Agent: child, Branch: "root/child"})

	if sub.InvocationID() != ctx.InvocationID() {
		t.Error("sub-context has a different invocation ID")
	}
	sub.EndInvocation()
	if !ctx.Ended() {
		t.Error("EndInvocation on sub-context not visible to parent")
	}
}

func TestFindAgentAndPath(t *testing.T) {
	leaf := mustAgent(t, Config{Name: "leaf", Run: emitNothing})
	mid := mustAgent(t, Config{Name: "mid", Run: emitNothing, SubAgents: []Agent{leaf}})
	root := mustAgent(t, Config{Name: "root", Run: emitNothing, SubAgents: []Agent{mid}})

	if FindAgent(root, "leaf") != leaf {
		t.Error("FindAgent did not locate the leaf")
	}
	if FindAgent(root, "ghost") != nil {
		t.Error("FindAgent found a nonexistent agent")
	}

	path := FindAgentPath(root, "leaf")
	if len(path) != 2 || path[0] != "mid" || path[1] != "leaf" {
		t.Errorf("FindAgentPath = %v, want [mid leaf]", path)
	}
}
