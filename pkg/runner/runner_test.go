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

package runner

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"
)

func textAgent(t *testing.T, name, text string, turnComplete bool) agent.Agent {
	t.Helper()
	ag, err := agent.New(agent.Config{
		Name: name,
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				event := agent.NewEvent(ctx.InvocationID())
				event.Message = agent.NewTextContent(text, a2a.MessageRoleAgent).ToMessage()
				event.TurnComplete = turnComplete
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)
	return ag
}

func newRunner(t *testing.T, root agent.Agent) (*Runner, session.Service) {
	t.Helper()
	svc := session.InMemoryService()
	r, err := New(Config{
		AppName:        "test-app",
		Agent:          root,
		SessionService: svc,
	})
	require.NoError(t, err)
	return r, svc
}

func sessionEventIDs(t *testing.T, svc session.Service, sessionID string) map[string]bool {
	t.Helper()
	resp, err := svc.Get(context.Background(), &session.GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: sessionID,
	})
	require.NoError(t, err)

	ids := make(map[string]bool)
	for event := range resp.Session.Events().All() {
		ids[event.ID] = true
	}
	return ids
}

// Every yielded event must already be in the session store by the time
// the caller sees it.
func TestAppendBeforeYield(t *testing.T) {
	r, svc := newRunner(t, textAgent(t, "root", "hello", true))

	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for event, err := range r.Run(context.Background(), "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
		ids := sessionEventIDs(t, svc, "s1")
		assert.True(t, ids[event.ID], "event %s yielded before it was appended", event.ID)
	}
}

func TestRunYieldsUserEventFirst(t *testing.T) {
	r, _ := newRunner(t, textAgent(t, "root", "hello", true))

	var events []*agent.Event
	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for event, err := range r.Run(context.Background(), "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, event)
	}

	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, agent.AuthorUser, events[0].Author)
	assert.Equal(t, "hi", events[0].TextContent())
	assert.Equal(t, "root", events[1].Author)
}

// When the root stream ends without a turn-complete event, the runner
// closes the invocation with an explicit marker.
func TestRunEmitsFinalMarker(t *testing.T) {
	r, _ := newRunner(t, textAgent(t, "root", "partial work", false))

	var events []*agent.Event
	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for event, err := range r.Run(context.Background(), "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, event)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.TurnComplete)
	assert.Equal(t, "root", last.Author)
}

func TestRunNoMarkerWhenAlreadyComplete(t *testing.T) {
	r, _ := newRunner(t, textAgent(t, "root", "done", true))

	var events []*agent.Event
	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for event, err := range r.Run(context.Background(), "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
		events = append(events, event)
	}

	// user event + the agent's own terminal event, nothing extra.
	require.Len(t, events, 2)
	assert.Equal(t, "done", events[1].TextContent())
}

// Replaying the same input against a deterministic agent produces the
// same event sequence, modulo IDs and timestamps.
func TestRunIsDeterministic(t *testing.T) {
	run := func(sessionID string) []string {
		r, _ := newRunner(t, textAgent(t, "root", "stable", true))
		var seq []string
		content := agent.NewTextContent("hi", a2a.MessageRoleUser)
		for event, err := range r.Run(context.Background(), "u1", sessionID, content, agent.RunConfig{}) {
			require.NoError(t, err)
			seq = append(seq, event.Author+":"+event.TextContent())
		}
		return seq
	}

	assert.Equal(t, run("s1"), run("s2"))
}

func TestRunClearsTempStateAfterInvocation(t *testing.T) {
	writer, err := agent.New(agent.Config{
		Name: "writer",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				event := agent.NewEvent(ctx.InvocationID())
				event.Actions.StateDelta = map[string]any{"temp:n": 1, "kept": true}
				event.TurnComplete = true
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)

	r, svc := newRunner(t, writer)
	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for _, err := range r.Run(context.Background(), "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
	}

	resp, err := svc.Get(context.Background(), &session.GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)

	_, err = resp.Session.State().Get("temp:n")
	assert.ErrorIs(t, err, session.ErrStateKeyNotExist)

	got, err := resp.Session.State().Get("kept")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestRunDeadlineExceeded(t *testing.T) {
	r, _ := newRunner(t, textAgent(t, "root", "too late", true))

	var events []*agent.Event
	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	cfg := agent.RunConfig{Deadline: time.Now().Add(-time.Second)}
	for event, err := range r.Run(context.Background(), "u1", "s1", content, cfg) {
		require.NoError(t, err)
		events = append(events, event)
	}

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.True(t, last.TurnComplete)
	assert.Equal(t, string(agent.KindContext), last.ErrorCode)
	assert.Contains(t, last.ErrorMessage, "deadline exceeded")
}

func TestSendToolResponse(t *testing.T) {
	longRunner, err := agent.New(agent.Config{
		Name: "long_runner",
		Run: func(ctx agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(yield func(*agent.Event, error) bool) {
				event := agent.NewEvent(ctx.InvocationID())
				event.ToolCalls = []agent.ToolCallState{{
					ID: "call_3", Name: "provision", Status: "pending",
				}}
				event.LongRunningToolIDs = []string{"call_3"}
				event.TurnComplete = true
				yield(event, nil)
			}
		},
	})
	require.NoError(t, err)

	r, svc := newRunner(t, longRunner)
	ctx := context.Background()

	content := agent.NewTextContent("provision a vm", a2a.MessageRoleUser)
	for _, err := range r.Run(ctx, "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
	}

	require.NoError(t, r.SendToolResponse(ctx, "u1", "s1", "call_3", map[string]any{"status": "done"}))

	resp, err := svc.Get(ctx, &session.GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)

	events := resp.Session.Events()
	last := events.At(events.Len() - 1)
	require.NotNil(t, last)
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "call_3", last.ToolResults[0].ToolCallID)
	assert.Contains(t, last.ToolResults[0].Content, "done")

	// The injected response stays inside the original invocation.
	origin := events.At(1)
	assert.Equal(t, origin.InvocationID, last.InvocationID)
}

func TestSendToolResponseUnknownCall(t *testing.T) {
	r, _ := newRunner(t, textAgent(t, "root", "x", true))
	ctx := context.Background()

	content := agent.NewTextContent("hi", a2a.MessageRoleUser)
	for _, err := range r.Run(ctx, "u1", "s1", content, agent.RunConfig{}) {
		require.NoError(t, err)
	}

	err := r.SendToolResponse(ctx, "u1", "s1", "no_such_call", map[string]any{})
	assert.Error(t, err)
}
