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

// Package config loads and validates the YAML configuration the whole
// runtime is built from: providers, tools, agents and the server.
//
// A complete config:
//
//	version: "2"
//	name: my-assistant
//
//	llms:
//	  default:
//	    provider: anthropic
//	    model: claude-sonnet-4-20250514
//	    api_key: ${ANTHROPIC_API_KEY}
//
//	tools:
//	  weather:
//	    type: mcp
//	    url: ${MCP_URL}
//
//	agents:
//	  assistant:
//	    llm: default
//	    tools: [weather]
//	    instruction: You are a helpful assistant.
//
//	server:
//	  port: 8080
//
// Components reference each other by name; Validate rejects dangling
// references so wiring mistakes fail at load, not mid-conversation.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure.
type Config struct {
	// Version of the config schema (e.g., "2").
	Version string `yaml:"version,omitempty"`

	// Name of this configuration, used for logging and as the app name.
	Name string `yaml:"name,omitempty"`

	// Description of this configuration.
	Description string `yaml:"description,omitempty"`

	// Databases defines SQL connections other sections reference.
	Databases map[string]*DatabaseConfig `yaml:"databases,omitempty"`

	// VectorStores defines vector database providers for memory, RAG
	// and document stores.
	VectorStores map[string]*VectorStoreConfig `yaml:"vector_stores,omitempty"`

	// LLMs defines model backends.
	LLMs map[string]*LLMConfig `yaml:"llms,omitempty"`

	// Embedders defines embedding providers for semantic search.
	Embedders map[string]*EmbedderConfig `yaml:"embedders,omitempty"`

	// Tools defines tools and toolsets.
	Tools map[string]*ToolConfig `yaml:"tools,omitempty"`

	// Agents defines the agent tree's members.
	Agents map[string]*AgentConfig `yaml:"agents,omitempty"`

	// DocumentStores defines RAG document stores.
	DocumentStores map[string]*DocumentStoreConfig `yaml:"document_stores,omitempty"`

	// Server configures the serving surface.
	Server ServerConfig `yaml:"server,omitempty"`

	// Logger configures logging.
	Logger *LoggerConfig `yaml:"logger,omitempty"`

	// RateLimiting configures model-usage quotas.
	RateLimiting *RateLimitConfig `yaml:"rate_limiting,omitempty"`

	// Defaults supplies fallback references for agents.
	Defaults *DefaultsConfig `yaml:"defaults,omitempty"`
}

// DefaultsConfig supplies the references an agent falls back to when
// its own are unset.
type DefaultsConfig struct {
	// LLM is the default model reference.
	LLM string `yaml:"llm,omitempty"`

	// VectorStore is the default vector store reference.
	VectorStore string `yaml:"vector_store,omitempty"`

	// Embedder is the default embedder reference.
	Embedder string `yaml:"embedder,omitempty"`

	// SessionStore is the default session store reference.
	SessionStore string `yaml:"session_store,omitempty"`
}

// defaulter is any config section with parameterless defaults.
type defaulter interface {
	SetDefaults()
}

// ensureDefaults replaces nil entries with zero values and applies
// defaults to every entry of one section map.
func ensureDefaults[T defaulter](section map[string]T, zero func() T) {
	for name, entry := range section {
		var nilT T
		if any(entry) == any(nilT) {
			entry = zero()
			section[name] = entry
		}
		entry.SetDefaults()
	}
}

// SetDefaults applies defaults across the whole tree. An empty config
// is promoted to one default LLM and one default agent, which is what
// makes zero-config mode work.
func (c *Config) SetDefaults() {
	if c.Databases == nil {
		c.Databases = make(map[string]*DatabaseConfig)
	}
	if c.VectorStores == nil {
		c.VectorStores = make(map[string]*VectorStoreConfig)
	}
	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMConfig)
	}
	if c.Embedders == nil {
		c.Embedders = make(map[string]*EmbedderConfig)
	}
	if c.Tools == nil {
		c.Tools = make(map[string]*ToolConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}
	if c.DocumentStores == nil {
		c.DocumentStores = make(map[string]*DocumentStoreConfig)
	}

	if len(c.LLMs) == 0 {
		c.LLMs["default"] = &LLMConfig{}
	}
	if len(c.Agents) == 0 {
		c.Agents["assistant"] = &AgentConfig{}
	}

	ensureDefaults(c.Databases, func() *DatabaseConfig { return &DatabaseConfig{} })
	ensureDefaults(c.VectorStores, func() *VectorStoreConfig { return &VectorStoreConfig{} })
	ensureDefaults(c.DocumentStores, func() *DocumentStoreConfig { return &DocumentStoreConfig{} })
	ensureDefaults(c.LLMs, func() *LLMConfig { return &LLMConfig{} })
	ensureDefaults(c.Embedders, func() *EmbedderConfig { return &EmbedderConfig{} })
	ensureDefaults(c.Tools, func() *ToolConfig { return &ToolConfig{} })

	// Agents take the defaults section, so they defer to the generic
	// helper's shape but not its signature.
	for name, agent := range c.Agents {
		if agent == nil {
			agent = &AgentConfig{}
			c.Agents[name] = agent
		}
		agent.SetDefaults(c.Defaults)
	}

	c.Server.SetDefaults()

	if c.RateLimiting != nil {
		c.RateLimiting.SetDefaults()
	}
}

// Validate checks every section, then cross-section references, and
// reports all problems at once rather than one per load attempt.
func (c *Config) Validate() error {
	var errs []string

	validateSection := func(kind string, validate func() error) {
		if err := validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", kind, err))
		}
	}

	for name, db := range c.Databases {
		if db != nil {
			validateSection(fmt.Sprintf("database %q", name), db.Validate)
		}
	}
	for name, vs := range c.VectorStores {
		if vs != nil {
			validateSection(fmt.Sprintf("vector_store %q", name), vs.Validate)
		}
	}
	for name, llm := range c.LLMs {
		if llm != nil {
			validateSection(fmt.Sprintf("llm %q", name), llm.Validate)
		}
	}
	for name, tool := range c.Tools {
		if tool != nil {
			validateSection(fmt.Sprintf("tool %q", name), tool.Validate)
		}
	}
	for name, agent := range c.Agents {
		if agent != nil {
			validateSection(fmt.Sprintf("agent %q", name), agent.Validate)
		}
	}
	for name, ds := range c.DocumentStores {
		if ds != nil {
			validateSection(fmt.Sprintf("document_store %q", name), ds.Validate)
		}
	}

	validateSection("server", c.Server.Validate)
	if c.Logger != nil {
		validateSection("logger", c.Logger.Validate)
	}
	if c.RateLimiting != nil {
		validateSection("rate_limiting", c.RateLimiting.Validate)
	}

	if err := c.validateReferences(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// validateReferences checks that every by-name reference between
// sections points at something defined.
func (c *Config) validateReferences() error {
	var errs []string

	for agentName, agent := range c.Agents {
		if agent == nil {
			continue
		}

		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok {
				errs = append(errs, fmt.Sprintf("agent %q references undefined llm %q", agentName, agent.LLM))
			}
		}
		for _, toolName := range agent.Tools {
			if _, ok := c.Tools[toolName]; !ok {
				errs = append(errs, fmt.Sprintf("agent %q references undefined tool %q", agentName, toolName))
			}
		}
		if agent.DocumentStores != nil {
			for _, storeName := range *agent.DocumentStores {
				if _, ok := c.DocumentStores[storeName]; !ok {
					errs = append(errs, fmt.Sprintf("agent %q references undefined document_store %q", agentName, storeName))
				}
			}
		}
	}

	for storeName, store := range c.DocumentStores {
		if store == nil {
			continue
		}

		if store.VectorStore != "" {
			if _, ok := c.VectorStores[store.VectorStore]; !ok {
				errs = append(errs, fmt.Sprintf("document_store %q references undefined vector_store %q", storeName, store.VectorStore))
			}
		}
		if store.Embedder != "" {
			if _, ok := c.Embedders[store.Embedder]; !ok {
				errs = append(errs, fmt.Sprintf("document_store %q references undefined embedder %q", storeName, store.Embedder))
			}
		}
		if store.Source != nil && store.Source.SQL != nil && store.Source.SQL.Database != "" {
			if _, ok := c.Databases[store.Source.SQL.Database]; !ok {
				errs = append(errs, fmt.Sprintf("document_store %q references undefined database %q", storeName, store.Source.SQL.Database))
			}
		}

		// Search enhancements each name their own model.
		if store.Search != nil {
			checkLLM := func(llmName, purpose string) {
				if llmName == "" {
					return
				}
				if _, ok := c.LLMs[llmName]; !ok {
					errs = append(errs, fmt.Sprintf("document_store %q references undefined llm %q for %s", storeName, llmName, purpose))
				}
			}
			checkLLM(store.Search.HyDELLM, "HyDE")
			checkLLM(store.Search.RerankLLM, "reranking")
			checkLLM(store.Search.MultiQueryLLM, "multi-query")
		}
	}

	if c.Server.Tasks != nil && c.Server.Tasks.Database != "" {
		if _, ok := c.Databases[c.Server.Tasks.Database]; !ok {
			errs = append(errs, fmt.Sprintf("server.tasks references undefined database %q", c.Server.Tasks.Database))
		}
	}
	if c.Server.Sessions != nil && c.Server.Sessions.Database != "" {
		if _, ok := c.Databases[c.Server.Sessions.Database]; !ok {
			errs = append(errs, fmt.Sprintf("server.sessions references undefined database %q", c.Server.Sessions.Database))
		}
	}
	if c.RateLimiting != nil && c.RateLimiting.Backend == "sql" && c.RateLimiting.SQLDatabase != "" {
		if _, ok := c.Databases[c.RateLimiting.SQLDatabase]; !ok {
			errs = append(errs, fmt.Sprintf("rate_limiting references undefined database %q", c.RateLimiting.SQLDatabase))
		}
	}
	if c.Server.Memory != nil && c.Server.Memory.Embedder != "" {
		if _, ok := c.Embedders[c.Server.Memory.Embedder]; !ok {
			errs = append(errs, fmt.Sprintf("server.memory references undefined embedder %q", c.Server.Memory.Embedder))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("reference errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// GetAgent returns an agent config by name.
func (c *Config) GetAgent(name string) (*AgentConfig, bool) {
	agent, ok := c.Agents[name]
	return agent, ok
}

// GetLLM returns an LLM config by name.
func (c *Config) GetLLM(name string) (*LLMConfig, bool) {
	llm, ok := c.LLMs[name]
	return llm, ok
}

// GetTool returns a tool config by name.
func (c *Config) GetTool(name string) (*ToolConfig, bool) {
	tool, ok := c.Tools[name]
	return tool, ok
}

// ListAgents returns the configured agent names.
func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}

// GetDatabase returns a database config by name.
func (c *Config) GetDatabase(name string) (*DatabaseConfig, bool) {
	db, ok := c.Databases[name]
	return db, ok
}
