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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
)

func createSession(t *testing.T, svc Service, user, id string) Session {
	t.Helper()
	resp, err := svc.Create(context.Background(), &CreateRequest{
		AppName:   "test-app",
		UserID:    user,
		SessionID: id,
	})
	require.NoError(t, err)
	return resp.Session
}

func deltaEvent(delta map[string]any) *agent.Event {
	event := agent.NewEvent("inv-1")
	event.Author = "worker"
	event.Actions.StateDelta = delta
	return event
}

func TestCreateAndGet(t *testing.T) {
	svc := InMemoryService()
	created := createSession(t, svc, "u1", "s1")
	assert.Equal(t, "s1", created.ID())
	assert.Equal(t, "test-app", created.AppName())
	assert.Equal(t, "u1", created.UserID())

	resp, err := svc.Get(context.Background(), &GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", resp.Session.ID())

	_, err = svc.Get(context.Background(), &GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "missing",
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCreateGeneratesSessionID(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "")
	assert.NotEmpty(t, sess.ID())
}

// Applying the state deltas of all appended events in order must
// reproduce the session's current state snapshot.
func TestAppendEventAppliesStateDelta(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	deltas := []map[string]any{
		{"step": 1, "mode": "draft"},
		{"step": 2},
		{"mode": "final", "done": true},
	}
	for _, d := range deltas {
		require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(d)))
	}

	expected := map[string]any{}
	for _, d := range deltas {
		for k, v := range d {
			expected[k] = v
		}
	}
	for k, want := range expected {
		got, err := sess.State().Get(k)
		require.NoError(t, err, "key %q", k)
		assert.Equal(t, want, got, "key %q", k)
	}
	assert.Equal(t, len(deltas), sess.Events().Len())
}

func TestAppendEventNilValueDeletes(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(map[string]any{"k": "v"})))
	require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(map[string]any{"k": nil})))

	_, err := sess.State().Get("k")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)
}

// A user-scoped write made through one session must be visible from a
// different session of the same user, and invisible to other users.
func TestUserScopeSharedAcrossSessions(t *testing.T) {
	svc := InMemoryService()
	s1 := createSession(t, svc, "u1", "s1")
	s2 := createSession(t, svc, "u1", "s2")
	other := createSession(t, svc, "u2", "s3")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, s1, deltaEvent(map[string]any{"user:tier": "pro"})))

	got, err := s2.State().Get("user:tier")
	require.NoError(t, err)
	assert.Equal(t, "pro", got)

	_, err = other.State().Get("user:tier")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)
}

func TestAppScopeSharedAcrossUsers(t *testing.T) {
	svc := InMemoryService()
	s1 := createSession(t, svc, "u1", "s1")
	s2 := createSession(t, svc, "u2", "s2")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, s1, deltaEvent(map[string]any{"app:motd": "hello"})))

	got, err := s2.State().Get("app:motd")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestSessionScopeIsolatedBetweenSessions(t *testing.T) {
	svc := InMemoryService()
	s1 := createSession(t, svc, "u1", "s1")
	s2 := createSession(t, svc, "u1", "s2")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, s1, deltaEvent(map[string]any{"draft": "x"})))

	_, err := s2.State().Get("draft")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)
}

func TestInvalidScopePrefixRejected(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")

	err := sess.State().Set("bogus:key", 1)
	assert.ErrorIs(t, err, ErrInvalidStateScope)

	// A rejected delta must leave the event log untouched too.
	err = svc.AppendEvent(context.Background(), sess, deltaEvent(map[string]any{
		"fine":      1,
		"bogus:key": 2,
	}))
	assert.ErrorIs(t, err, ErrInvalidStateScope)
	assert.Zero(t, sess.Events().Len())
	_, err = sess.State().Get("fine")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)
}

func TestClearTempKeys(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(map[string]any{
		"temp:n": 2,
		"kept":   true,
	})))

	got, err := sess.State().Get("temp:n")
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	clearable, ok := sess.State().(agent.TempClearable)
	require.True(t, ok)
	clearable.ClearTempKeys()

	_, err = sess.State().Get("temp:n")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)

	got, err = sess.State().Get("kept")
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestGetFiltersRecentEvents(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(map[string]any{"i": i})))
	}

	resp, err := svc.Get(ctx, &GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
		NumRecentEvents: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Session.Events().Len())

	// The filtered view shares live state with the canonical session.
	got, err := resp.Session.State().Get("i")
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestGetFiltersByTime(t *testing.T) {
	svc := InMemoryService()
	sess := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	old := deltaEvent(map[string]any{"old": true})
	old.Timestamp = time.Now().Add(-time.Hour)
	require.NoError(t, svc.AppendEvent(ctx, sess, old))
	require.NoError(t, svc.AppendEvent(ctx, sess, deltaEvent(map[string]any{"new": true})))

	resp, err := svc.Get(ctx, &GetRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
		After: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Session.Events().Len())
}

func TestListAndDelete(t *testing.T) {
	svc := InMemoryService()
	createSession(t, svc, "u1", "s1")
	createSession(t, svc, "u1", "s2")
	createSession(t, svc, "u2", "s3")
	ctx := context.Background()

	resp, err := svc.List(ctx, &ListRequest{AppName: "test-app", UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, resp.Sessions, 2)

	require.NoError(t, svc.Delete(ctx, &DeleteRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	}))
	_, err = svc.Get(ctx, &GetRequest{AppName: "test-app", UserID: "u1", SessionID: "s1"})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// Deleting a session must not discard user- or app-scoped state, which
// belongs to the user/app, not the session.
func TestDeletePreservesSharedScopes(t *testing.T) {
	svc := InMemoryService()
	s1 := createSession(t, svc, "u1", "s1")
	ctx := context.Background()

	require.NoError(t, svc.AppendEvent(ctx, s1, deltaEvent(map[string]any{"user:plan": "pro"})))
	require.NoError(t, svc.Delete(ctx, &DeleteRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	}))

	s2 := createSession(t, svc, "u1", "s2")
	got, err := s2.State().Get("user:plan")
	require.NoError(t, err)
	assert.Equal(t, "pro", got)
}

func TestInitialStateRoutesScopes(t *testing.T) {
	svc := InMemoryService()
	resp, err := svc.Create(context.Background(), &CreateRequest{
		AppName: "test-app",
		UserID:  "u1",
		State: map[string]any{
			"local":     1,
			"user:pref": "dark",
		},
	})
	require.NoError(t, err)

	other := createSession(t, svc, "u1", "s2")
	got, err := other.State().Get("user:pref")
	require.NoError(t, err)
	assert.Equal(t, "dark", got)

	_, err = other.State().Get("local")
	assert.ErrorIs(t, err, ErrStateKeyNotExist)

	_, err = resp.Session.State().Get("local")
	assert.NoError(t, err)
}
