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

// Package instruction resolves placeholders in agent instruction
// templates against session state and artifacts at request time.
//
// # Placeholder syntax
//
//	{variable}           session state
//	{app:variable}       app-scoped state (all users and sessions)
//	{user:variable}      user-scoped state (all sessions of one user)
//	{temp:variable}      invocation-scoped state
//	{artifact.filename}  artifact text content
//	{variable?}          optional: empty string when absent
//
// A required placeholder that cannot be resolved fails the render; an
// optional one collapses to the empty string. Anything inside braces
// that is not a valid identifier (with at most one scope prefix) is
// left untouched, so JSON snippets can live inside prompts:
//
//	resolved, err := instruction.InjectState(ctx, `Hi {user_name}, reply as {"role": "judge"}`)
//
// The turn loop runs every llmagent instruction through this package
// before the request is assembled:
//
//	ag, _ := llmagent.New(llmagent.Config{
//	    Name:        "assistant",
//	    Instruction: "You are helping {user_name?} with {task}.\n\n{artifact.project_context?}",
//	})
//
// Artifact names must not contain path separators or "..": the artifact
// namespace is flat, and a template cannot be used to walk out of it.
package instruction
