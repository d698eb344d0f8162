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

// Package skill loads tagged behavior descriptors and injects markers for
// matching skills into the user content of an invocation.
//
// A skill descriptor is a Markdown file with a YAML front-matter block:
//
//	---
//	name: release-notes
//	description: Drafts release notes from a changelog.
//	tags: [release, changelog]
//	---
//	When drafting release notes, group changes by audience impact...
//
// A composite agent associated with a skill Set has its invocation's user
// content rewritten before sub-agents run: every skill whose tags
// intersect the tokens of the user text contributes a "[skill:<name>]"
// marker line ahead of the original text. Downstream prompts can then
// discover the applicable skills by name. The rewrite is visible only
// through the InvocationContext; the persisted user event is untouched.
package skill

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/loomkit/loom/pkg/agent"
)

// Skill is one loaded descriptor.
type Skill struct {
	// Name identifies the skill in injected markers. Required.
	Name string `yaml:"name"`

	// Description is a human-readable summary of what the skill does.
	Description string `yaml:"description"`

	// Tags are the match tokens. A skill is injected when any tag equals
	// a token of the user text, compared case-insensitively.
	Tags []string `yaml:"tags"`

	// Body is the Markdown content below the front matter.
	Body string `yaml:"-"`
}

// Set is an immutable collection of skills, ordered by file name.
type Set struct {
	skills []Skill
}

// New builds a Set from already-constructed skills. Skills keep the
// given order; duplicate names are rejected.
func New(skills []Skill) (*Set, error) {
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		if s.Name == "" {
			return nil, fmt.Errorf("skill name is required")
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("duplicate skill name %q", s.Name)
		}
		seen[s.Name] = true
	}
	return &Set{skills: skills}, nil
}

// LoadDir reads every *.md file in dir as a skill descriptor. Files are
// loaded in lexical order so injection order is stable across runs.
// Non-descriptor files (no front-matter block) are skipped.
func LoadDir(dir string) (*Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skill directory %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var skills []Skill
	for _, name := range names {
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading skill file %q: %w", path, err)
		}
		s, ok, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing skill file %q: %w", path, err)
		}
		if ok {
			skills = append(skills, s)
		}
	}

	return New(skills)
}

// parse splits the front matter from the body and decodes it. The second
// return value is false when the file has no front-matter block at all.
func parse(raw []byte) (Skill, bool, error) {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	if !strings.HasPrefix(text, "---\n") {
		return Skill{}, false, nil
	}
	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return Skill{}, false, fmt.Errorf("unterminated front matter")
	}

	var s Skill
	if err := yaml.Unmarshal([]byte(rest[:end]), &s); err != nil {
		return Skill{}, false, err
	}
	if s.Name == "" {
		return Skill{}, false, fmt.Errorf("front matter is missing name")
	}

	body := rest[end+len("\n---"):]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}
	s.Body = strings.TrimSpace(body)
	return s, true, nil
}

// Skills returns the set's skills in injection order.
func (s *Set) Skills() []Skill {
	if s == nil {
		return nil
	}
	return s.skills
}

// Match returns the skills whose tags intersect the tokens of text, in
// set order. Tokenization splits on anything that is not a letter or
// digit and folds case.
func (s *Set) Match(text string) []Skill {
	if s == nil || len(s.skills) == 0 {
		return nil
	}

	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}

	var matched []Skill
	for _, sk := range s.skills {
		for _, tag := range sk.Tags {
			if tokens[strings.ToLower(tag)] {
				matched = append(matched, sk)
				break
			}
		}
	}
	return matched
}

// Apply rewrites the invocation's view of the user content by prepending
// one "[skill:<name>]" marker line per matching skill. When nothing
// matches (or the invocation has no user text) the context is returned
// unchanged. The caller's session and persisted events are never touched.
func (s *Set) Apply(ctx agent.InvocationContext) agent.InvocationContext {
	content := ctx.UserContent()
	if s == nil || content == nil {
		return ctx
	}

	var text strings.Builder
	for _, part := range content.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			text.WriteString(tp.Text)
			text.WriteString(" ")
		}
	}

	matched := s.Match(text.String())
	if len(matched) == 0 {
		return ctx
	}

	var markers strings.Builder
	for _, sk := range matched {
		fmt.Fprintf(&markers, "[skill:%s]\n", sk.Name)
	}

	rewritten := &agent.Content{
		Role:  content.Role,
		Parts: append([]a2a.Part{a2a.TextPart{Text: markers.String()}}, content.Parts...),
	}

	return agent.NewSubContext(ctx, agent.SubContextParams{
		Agent:       ctx.Agent(),
		UserContent: rewritten,
	})
}
