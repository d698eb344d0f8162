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

// Package agent defines the execution model every Loom agent shares: the
// Agent contract, the event stream an invocation produces, the invocation
// context threaded through it, and the error taxonomy.
//
// # The contract
//
// An agent turns an invocation context into a lazy stream of events:
//
//	type Agent interface {
//	    Name() string
//	    Description() string
//	    Run(InvocationContext) iter.Seq2[*Event, error]
//	    SubAgents() []Agent
//	}
//
// Streams are pull-based: the caller ranges over Run's result and the
// agent suspends between yields, so a slow consumer applies backpressure
// all the way down to model and tool calls.
//
// # Contexts
//
// Three context views control what code can touch:
//
//   - InvocationContext: full access, held by the executing agent
//   - CallbackContext: state mutation plus artifacts, handed to callbacks
//   - ReadonlyContext: read-only view, safe to pass to tools
//
// Sub-agent calls derive their context with NewSubContext, which shares
// the parent's invocation ID and cooperative end flag: EndInvocation
// called anywhere is observed everywhere in the same invocation.
//
// # Constructing agents
//
//	ag, err := agent.New(agent.Config{
//	    Name:        "summarizer",
//	    Description: "Summarizes a document.",
//	    Run:         run,
//	})
//
// Model-backed agents live in the llmagent subpackage, composition in
// workflowagent, remote delegation in remoteagent.
package agent
