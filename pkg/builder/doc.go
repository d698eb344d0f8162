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

// Package builder provides fluent builder APIs for programmatic agent
// construction.
//
// The builders are a convenience layer over the core packages: each one
// assembles the corresponding config struct (llmagent.Config, model.LLM,
// llmagent.ReasoningConfig, memory strategies) and hands it to the same
// constructors the YAML path uses. Code that prefers the structs can
// keep using them directly.
//
// # Quick Start
//
// Build a complete agent with LLM, reasoning, and tools:
//
//	agent, err := builder.NewAgent("assistant").
//	    WithName("Assistant").
//	    WithDescription("A helpful AI assistant").
//	    WithLLM(
//	        builder.NewLLM("openai").
//	            Model("gpt-4o-mini").
//	            APIKeyFromEnv("OPENAI_API_KEY").
//	            Temperature(0.7).
//	            MustBuild(),
//	    ).
//	    WithReasoning(
//	        builder.NewReasoning().
//	            MaxIterations(100).
//	            EnableExitTool(true).
//	            Build(),
//	    ).
//	    WithWorkingMemory(
//	        builder.NewWorkingMemory("summary_buffer").
//	            Budget(8000).
//	            Threshold(0.85).
//	            MustBuild(),
//	    ).
//	    WithTools(tool1, tool2).
//	    Build()
//
// # Available Builders
//
//   - [AgentBuilder]: LLM agents
//   - [LLMBuilder]: model backends (OpenAI, Anthropic, Gemini, Ollama)
//   - [ReasoningBuilder]: the turn loop
//   - [WorkingMemoryBuilder]: working memory strategies
//   - [LongTermMemoryBuilder]: long-term memory
//   - [CredentialsBuilder]: outbound credentials
//   - [AuthBuilder]: security schemes
//
// # Example: Multi-Agent System
//
//	researcher, _ := builder.NewAgent("researcher").
//	    WithDescription("Researches topics in depth").
//	    WithLLM(llm).
//	    Build()
//
//	writer, _ := builder.NewAgent("writer").
//	    WithDescription("Writes content based on research").
//	    WithLLM(llm).
//	    Build()
//
//	parent, _ := builder.NewAgent("coordinator").
//	    WithDescription("Coordinates research and writing").
//	    WithLLM(llm).
//	    WithSubAgents(researcher, writer).
//	    Build()
package builder
