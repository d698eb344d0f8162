package config

import (
	"strings"
	"testing"
)

func validTestConfig() *Config {
	return &Config{
		LLMs: map[string]*LLMConfig{
			"default": {Provider: LLMProviderOllama, Model: "llama3.2"},
		},
		Agents: map[string]*AgentConfig{
			"assistant": {Name: "assistant", LLM: "default"},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got: %v", err)
		}
	})

	t.Run("agent referencing undefined llm", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Agents["assistant"].LLM = "missing-llm"
		cfg.SetDefaults()
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected reference error")
		}
		if !strings.Contains(err.Error(), "undefined llm") {
			t.Errorf("error should name the undefined llm, got: %v", err)
		}
	})

	t.Run("agent referencing undefined tool", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Agents["assistant"].Tools = []string{"missing-tool"}
		cfg.SetDefaults()
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "undefined tool") {
			t.Errorf("expected undefined tool error, got: %v", err)
		}
	})

	t.Run("agent referencing undefined document store", func(t *testing.T) {
		cfg := validTestConfig()
		stores := []string{"missing-store"}
		cfg.Agents["assistant"].DocumentStores = &stores
		cfg.SetDefaults()
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "undefined document_store") {
			t.Errorf("expected undefined document_store error, got: %v", err)
		}
	})

	t.Run("document store referencing undefined vector store", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.DocumentStores = map[string]*DocumentStoreConfig{
			"docs": {
				Source:      &DocumentSourceConfig{Type: "directory", Path: "./docs"},
				VectorStore: "missing-vectors",
			},
		}
		cfg.SetDefaults()
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), "undefined vector_store") {
			t.Errorf("expected undefined vector_store error, got: %v", err)
		}
	})

	t.Run("all section errors reported at once", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.Agents["assistant"].LLM = "missing-llm"
		cfg.Agents["assistant"].Tools = []string{"missing-tool"}
		cfg.SetDefaults()
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected errors")
		}
		msg := err.Error()
		if !strings.Contains(msg, "missing-llm") || !strings.Contains(msg, "missing-tool") {
			t.Errorf("expected both problems in one report, got: %v", msg)
		}
	})
}

func TestConfig_SetDefaults(t *testing.T) {
	t.Run("empty config promoted to working defaults", func(t *testing.T) {
		cfg := &Config{}
		cfg.SetDefaults()

		if _, ok := cfg.LLMs["default"]; !ok {
			t.Error("empty config should gain a default LLM")
		}
		if _, ok := cfg.Agents["assistant"]; !ok {
			t.Error("empty config should gain a default agent")
		}
	})

	t.Run("nil maps are initialized", func(t *testing.T) {
		cfg := &Config{}
		cfg.SetDefaults()

		if cfg.Databases == nil || cfg.VectorStores == nil || cfg.Tools == nil || cfg.DocumentStores == nil {
			t.Error("all section maps should be non-nil after SetDefaults")
		}
	})

	t.Run("nil entries replaced and defaulted", func(t *testing.T) {
		cfg := &Config{
			LLMs:   map[string]*LLMConfig{"broken": nil},
			Agents: map[string]*AgentConfig{"broken": nil},
		}
		cfg.SetDefaults()

		if cfg.LLMs["broken"] == nil {
			t.Fatal("nil LLM entry should be replaced")
		}
		if cfg.LLMs["broken"].MaxTokens != 4096 {
			t.Error("replaced entry should carry defaults")
		}
		if cfg.Agents["broken"] == nil {
			t.Fatal("nil agent entry should be replaced")
		}
	})

	t.Run("existing entries keep their values", func(t *testing.T) {
		cfg := validTestConfig()
		cfg.SetDefaults()

		if cfg.LLMs["default"].Model != "llama3.2" {
			t.Errorf("Model = %v, want llama3.2", cfg.LLMs["default"].Model)
		}
	})
}

func TestConfig_HelperMethods(t *testing.T) {
	cfg := &Config{
		Agents: map[string]*AgentConfig{
			"agent1": {Name: "Agent 1", LLM: "llm1"},
			"agent2": {Name: "Agent 2", LLM: "llm2"},
		},
		LLMs: map[string]*LLMConfig{
			"llm1": {Provider: LLMProviderOllama},
		},
		Tools: map[string]*ToolConfig{
			"search": {Type: ToolTypeFunction, Handler: "search"},
		},
		Databases: map[string]*DatabaseConfig{
			"main": {Driver: "sqlite", Database: "loom.db"},
		},
	}

	t.Run("GetAgent", func(t *testing.T) {
		agent, exists := cfg.GetAgent("agent1")
		if !exists || agent.Name != "Agent 1" {
			t.Errorf("GetAgent(agent1) = %v, %v", agent, exists)
		}
		if _, exists := cfg.GetAgent("nope"); exists {
			t.Error("GetAgent should miss unknown names")
		}
	})

	t.Run("GetLLM", func(t *testing.T) {
		llm, exists := cfg.GetLLM("llm1")
		if !exists || llm.Provider != LLMProviderOllama {
			t.Errorf("GetLLM(llm1) = %v, %v", llm, exists)
		}
	})

	t.Run("GetTool", func(t *testing.T) {
		tool, exists := cfg.GetTool("search")
		if !exists || tool.Handler != "search" {
			t.Errorf("GetTool(search) = %v, %v", tool, exists)
		}
	})

	t.Run("GetDatabase", func(t *testing.T) {
		db, exists := cfg.GetDatabase("main")
		if !exists || db.Driver != "sqlite" {
			t.Errorf("GetDatabase(main) = %v, %v", db, exists)
		}
	})

	t.Run("ListAgents", func(t *testing.T) {
		names := cfg.ListAgents()
		if len(names) != 2 {
			t.Errorf("ListAgents() length = %v, want 2", len(names))
		}
	})
}
