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

package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// applyDefaults copies the defaults section onto native agents that
// left the corresponding reference unset. An inline definition counts
// as set: defaults never override either form.
func (c *Config) applyDefaults() {
	if c.Defaults == nil {
		return
	}

	for _, agent := range c.Agents {
		if agent == nil {
			continue
		}
		if agent.Type != "" && agent.Type != "native" {
			continue
		}

		if agent.LLM == "" && agent.LLMInline == nil && c.Defaults.LLM != "" {
			agent.LLM = c.Defaults.LLM
		}
		if agent.VectorStore == "" && agent.VectorStoreInline == nil && c.Defaults.VectorStore != "" {
			agent.VectorStore = c.Defaults.VectorStore
		}
		if agent.Embedder == "" && agent.EmbedderInline == nil && c.Defaults.Embedder != "" {
			agent.Embedder = c.Defaults.Embedder
		}
		if agent.SessionStore == "" && c.Defaults.SessionStore != "" {
			agent.SessionStore = c.Defaults.SessionStore
		}
	}
}

// expandInlineConfigs hoists an agent's inline provider definitions to
// named top-level providers and rewrites the agent to reference them,
// so the rest of the runtime only ever resolves by name. An agent that
// carries both an inline definition and a reference is left as-is for
// validation to reject.
func (c *Config) expandInlineConfigs(agent *AgentConfig) {
	if agent == nil {
		return
	}

	if agent.LLMInline != nil && agent.LLM == "" {
		if c.LLMs == nil {
			c.LLMs = make(map[string]*LLMConfig)
		}
		inlineName := generateInlineProviderName("llm", agent.Name)
		c.LLMs[inlineName] = agent.LLMInline
		agent.LLM = inlineName
		agent.LLMInline = nil
		logInlineExpansion("LLM", agent.Name, inlineName)
	}

	if agent.VectorStoreInline != nil && agent.VectorStore == "" {
		if c.VectorStores == nil {
			c.VectorStores = make(map[string]*VectorStoreConfig)
		}
		inlineName := generateInlineProviderName("vector-store", agent.Name)
		c.VectorStores[inlineName] = agent.VectorStoreInline
		agent.VectorStore = inlineName
		agent.VectorStoreInline = nil
		logInlineExpansion("vector store", agent.Name, inlineName)
	}

	if agent.EmbedderInline != nil && agent.Embedder == "" {
		if c.Embedders == nil {
			c.Embedders = make(map[string]*EmbedderConfig)
		}
		inlineName := generateInlineProviderName("embedder", agent.Name)
		c.Embedders[inlineName] = agent.EmbedderInline
		agent.Embedder = inlineName
		agent.EmbedderInline = nil
		logInlineExpansion("embedder", agent.Name, inlineName)
	}
}

func logInlineExpansion(kind, agentName, providerName string) {
	slog.Info("Expanded inline config to top-level provider",
		"kind", kind, "agent", agentName, "provider", providerName)
}

// generateInlineProviderName derives a stable provider name from the
// owning agent.
func generateInlineProviderName(providerType, agentName string) string {
	sanitized := strings.ToLower(strings.ReplaceAll(agentName, " ", "-"))
	return fmt.Sprintf("%s-%s-inline", sanitized, providerType)
}
