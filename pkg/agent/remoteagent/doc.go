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

// Package remoteagent wraps an agent served by another process behind
// the local Agent contract, so a tree can mix in-process and remote
// members without the composites noticing.
//
// Point it at a base URL and the card is discovered:
//
//	ag, _ := remoteagent.NewA2A(remoteagent.Config{
//	    Name:        "remote_helper",
//	    Description: "A remote helper agent",
//	    URL:         "http://localhost:9000",
//	})
//
// or hand it a card directly via Config.AgentCard. The result is a
// plain agent.Agent: place it in SubAgents of a composite, or wrap it
// with agenttool.New to expose it as a tool of a model-backed agent.
package remoteagent
