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

package instruction

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"
)

// fakeArtifacts serves a fixed set of text artifacts.
type fakeArtifacts struct {
	texts map[string]string
}

func (f *fakeArtifacts) Load(ctx context.Context, name string) (*agent.ArtifactLoadResponse, error) {
	text, ok := f.texts[name]
	if !ok {
		return nil, fmt.Errorf("artifact %q not found", name)
	}
	return &agent.ArtifactLoadResponse{Name: name, Part: a2a.TextPart{Text: text}}, nil
}

func (f *fakeArtifacts) Save(ctx context.Context, name string, part a2a.Part) (*agent.ArtifactSaveResponse, error) {
	return &agent.ArtifactSaveResponse{Name: name, Version: 1}, nil
}

func (f *fakeArtifacts) List(ctx context.Context) (*agent.ArtifactListResponse, error) {
	return &agent.ArtifactListResponse{}, nil
}

func (f *fakeArtifacts) LoadVersion(ctx context.Context, name string, version int) (*agent.ArtifactLoadResponse, error) {
	return f.Load(ctx, name)
}

func newTemplateContext(t *testing.T, state map[string]any, artifacts agent.Artifacts) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1", State: state,
	})
	require.NoError(t, err)

	return agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Session:   resp.Session,
		Artifacts: artifacts,
	})
}

func TestInjectStateResolvesPlaceholders(t *testing.T) {
	ctx := newTemplateContext(t,
		map[string]any{"user_name": "Ada"},
		&fakeArtifacts{texts: map[string]string{"hello": "Hi"}},
	)

	got, err := InjectState(ctx, "Hello {user_name}, opt={maybe?}, art={artifact.hello}")
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada, opt=, art=Hi", got)
}

func TestInjectStateMissingRequiredIsAgentError(t *testing.T) {
	ctx := newTemplateContext(t, nil, nil)

	_, err := InjectState(ctx, "Hello {user_name}")
	require.Error(t, err)

	var taxed *agent.Error
	require.True(t, errors.As(err, &taxed))
	assert.Equal(t, agent.KindAgent, taxed.Kind)
}

func TestInjectStateScopedKeys(t *testing.T) {
	ctx := newTemplateContext(t, map[string]any{
		"app:project": "loom",
		"user:name":   "Ada",
		"plain":       "x",
	}, nil)

	got, err := InjectState(ctx, "{app:project}/{user:name}/{plain}")
	require.NoError(t, err)
	assert.Equal(t, "loom/Ada/x", got)
}

// Anything that does not match the placeholder grammar stays literal, so
// JSON examples can live inside prompts.
func TestInjectStateLeavesNonPlaceholdersLiteral(t *testing.T) {
	ctx := newTemplateContext(t, nil, nil)

	cases := []string{
		`{123}`,
		`{}`,
		`{"key": "value"}`,
		`{not a name}`,
		`{bad-scope:x}`,
	}
	for _, tmpl := range cases {
		got, err := InjectState(ctx, tmpl)
		require.NoError(t, err, "template %q", tmpl)
		assert.Equal(t, tmpl, got, "template %q", tmpl)
	}
}

func TestInjectStateRejectsArtifactPathEscape(t *testing.T) {
	ctx := newTemplateContext(t, nil, &fakeArtifacts{texts: map[string]string{}})

	for _, tmpl := range []string{
		"{artifact.a/b}",
		`{artifact.a\b}`,
		"{artifact...secret}",
	} {
		_, err := InjectState(ctx, tmpl)
		assert.Error(t, err, "template %q", tmpl)
	}
}

func TestInjectStateOptionalArtifactMissing(t *testing.T) {
	ctx := newTemplateContext(t, nil, &fakeArtifacts{texts: map[string]string{}})

	got, err := InjectState(ctx, "art={artifact.gone?}")
	require.NoError(t, err)
	assert.Equal(t, "art=", got)

	_, err = InjectState(ctx, "art={artifact.gone}")
	assert.Error(t, err)
}

func TestHasPlaceholders(t *testing.T) {
	assert.True(t, HasPlaceholders("Hello {name}"))
	assert.True(t, HasPlaceholders("{a}{b}"))
	assert.False(t, HasPlaceholders("no placeholders here"))
	assert.False(t, HasPlaceholders(""))
}

func TestListPlaceholders(t *testing.T) {
	names := ListPlaceholders("{a} and {b?} and {a}")
	assert.Equal(t, []string{"a", "b"}, names)
}
