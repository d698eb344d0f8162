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

package skill

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/session"
)

func writeSkillFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirParsesFrontMatter(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "release.md", `---
name: release-notes
description: Drafts release notes.
tags: [release, changelog]
---
Group changes by audience impact.`)
	writeSkillFile(t, dir, "notes.txt", "ignored, wrong extension")
	writeSkillFile(t, dir, "plain.md", "no front matter, skipped")

	set, err := LoadDir(dir)
	require.NoError(t, err)

	skills := set.Skills()
	require.Len(t, skills, 1)
	assert.Equal(t, "release-notes", skills[0].Name)
	assert.Equal(t, "Drafts release notes.", skills[0].Description)
	assert.Equal(t, []string{"release", "changelog"}, skills[0].Tags)
	assert.Equal(t, "Group changes by audience impact.", skills[0].Body)
}

func TestLoadDirStableOrder(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "b.md", "---\nname: bravo\ntags: [x]\n---\n")
	writeSkillFile(t, dir, "a.md", "---\nname: alpha\ntags: [x]\n---\n")

	set, err := LoadDir(dir)
	require.NoError(t, err)

	skills := set.Skills()
	require.Len(t, skills, 2)
	assert.Equal(t, "alpha", skills[0].Name)
	assert.Equal(t, "bravo", skills[1].Name)
}

func TestLoadDirRejectsDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "a.md", "---\nname: same\n---\n")
	writeSkillFile(t, dir, "b.md", "---\nname: same\n---\n")

	_, err := LoadDir(dir)
	assert.Error(t, err)
}

func TestMatchIsCaseInsensitiveAndTokenized(t *testing.T) {
	set, err := New([]Skill{
		{Name: "deploy", Tags: []string{"deploy", "release"}},
		{Name: "debug", Tags: []string{"debug"}},
	})
	require.NoError(t, err)

	matched := set.Match("Please DEPLOY the new build!")
	require.Len(t, matched, 1)
	assert.Equal(t, "deploy", matched[0].Name)

	// A tag must match a whole token, not a substring.
	assert.Empty(t, set.Match("deployment pipeline is broken"))
	assert.Empty(t, set.Match("nothing relevant"))
}

func TestApplyInjectsMarkers(t *testing.T) {
	set, err := New([]Skill{
		{Name: "deploy", Tags: []string{"deploy"}},
		{Name: "rollback", Tags: []string{"rollback"}},
	})
	require.NoError(t, err)

	ctx := newSkillTestContext(t, "please deploy and rollback")
	rewritten := set.Apply(ctx)

	content := rewritten.UserContent()
	require.NotNil(t, content)
	require.NotEmpty(t, content.Parts)

	first, ok := content.Parts[0].(a2a.TextPart)
	require.True(t, ok)
	assert.Equal(t, "[skill:deploy]\n[skill:rollback]\n", first.Text)

	// The original text is preserved after the markers.
	last, ok := content.Parts[len(content.Parts)-1].(a2a.TextPart)
	require.True(t, ok)
	assert.Equal(t, "please deploy and rollback", last.Text)

	// The derived context stays inside the same invocation.
	assert.Equal(t, ctx.InvocationID(), rewritten.InvocationID())
}

func TestApplyNoMatchLeavesContextUntouched(t *testing.T) {
	set, err := New([]Skill{{Name: "deploy", Tags: []string{"deploy"}}})
	require.NoError(t, err)

	ctx := newSkillTestContext(t, "nothing relevant")
	assert.Same(t, ctx, set.Apply(ctx))
}

func TestApplyNilSetIsNoOp(t *testing.T) {
	var set *Set
	ctx := newSkillTestContext(t, "deploy")
	assert.Same(t, ctx, set.Apply(ctx))
}

func newSkillTestContext(t *testing.T, userText string) agent.InvocationContext {
	t.Helper()
	svc := session.InMemoryService()
	resp, err := svc.Create(context.Background(), &session.CreateRequest{
		AppName: "test-app", UserID: "u1", SessionID: "s1",
	})
	require.NoError(t, err)

	ag, err := agent.New(agent.Config{
		Name: "root",
		Run: func(agent.InvocationContext) iter.Seq2[*agent.Event, error] {
			return func(func(*agent.Event, error) bool) {}
		},
	})
	require.NoError(t, err)

	return agent.NewInvocationContext(context.Background(), agent.InvocationContextParams{
		Agent:       ag,
		Session:     resp.Session,
		UserContent: agent.NewTextContent(userText, a2a.MessageRoleUser),
		RunConfig:   &agent.RunConfig{},
	})
}
