package config

import (
	"testing"
	"time"
)

func clearProviderKeys(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY", "COHERE_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLLMConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   LLMConfig
		envVars  map[string]string
		validate func(t *testing.T, config LLMConfig)
	}{
		{
			name:   "empty_config_anthropic_defaults",
			config: LLMConfig{},
			validate: func(t *testing.T, config LLMConfig) {
				if config.Provider != LLMProviderAnthropic {
					t.Errorf("Default provider = %v, want %v", config.Provider, LLMProviderAnthropic)
				}
				if config.Model != "claude-sonnet-4-20250514" {
					t.Errorf("Default model = %v, want %v", config.Model, "claude-sonnet-4-20250514")
				}
				if config.Temperature == nil || *config.Temperature != 0.7 {
					t.Errorf("Default temperature = %v, want 0.7", config.Temperature)
				}
				if config.MaxTokens != 4096 {
					t.Errorf("Default max_tokens = %v, want %v", config.MaxTokens, 4096)
				}
			},
		},
		{
			name:   "provider_detected_from_environment",
			config: LLMConfig{},
			envVars: map[string]string{
				"OPENAI_API_KEY": "sk-test-key-123",
			},
			validate: func(t *testing.T, config LLMConfig) {
				if config.Provider != LLMProviderOpenAI {
					t.Errorf("Detected provider = %v, want %v", config.Provider, LLMProviderOpenAI)
				}
				if config.Model != "gpt-4o" {
					t.Errorf("Default openai model = %v, want %v", config.Model, "gpt-4o")
				}
				if config.APIKey != "sk-test-key-123" {
					t.Errorf("API key from env = %v, want %v", config.APIKey, "sk-test-key-123")
				}
			},
		},
		{
			name: "api_key_from_environment_anthropic",
			config: LLMConfig{
				Provider: LLMProviderAnthropic,
			},
			envVars: map[string]string{
				"ANTHROPIC_API_KEY": "sk-ant-test-key-456",
			},
			validate: func(t *testing.T, config LLMConfig) {
				if config.APIKey != "sk-ant-test-key-456" {
					t.Errorf("API key from env = %v, want %v", config.APIKey, "sk-ant-test-key-456")
				}
			},
		},
		{
			name: "partial_config_preserves_values",
			config: LLMConfig{
				Provider: LLMProviderOpenAI,
				Model:    "gpt-4o-mini",
			},
			validate: func(t *testing.T, config LLMConfig) {
				if config.Provider != LLMProviderOpenAI {
					t.Errorf("Provider should be preserved: %v", config.Provider)
				}
				if config.Model != "gpt-4o-mini" {
					t.Errorf("Model should be preserved: %v", config.Model)
				}
				if config.MaxTokens != 4096 {
					t.Errorf("Default max_tokens = %v, want %v", config.MaxTokens, 4096)
				}
			},
		},
		{
			name: "thinking_defaults",
			config: LLMConfig{
				Provider: LLMProviderAnthropic,
				Thinking: &ThinkingConfig{},
			},
			validate: func(t *testing.T, config LLMConfig) {
				if config.Thinking.Enabled == nil || !*config.Thinking.Enabled {
					t.Error("Thinking should default to enabled")
				}
				if config.Thinking.BudgetTokens != 1024 {
					t.Errorf("Default budget_tokens = %v, want %v", config.Thinking.BudgetTokens, 1024)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderKeys(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			tt.config.SetDefaults()
			tt.validate(t, tt.config)
		})
	}
}

func TestDatabaseConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		validate func(t *testing.T, config DatabaseConfig)
	}{
		{
			name:   "postgres_defaults",
			config: DatabaseConfig{Driver: "postgres"},
			validate: func(t *testing.T, config DatabaseConfig) {
				if config.Port != 5432 {
					t.Errorf("Default postgres port = %v, want %v", config.Port, 5432)
				}
				if config.SSLMode != "disable" {
					t.Errorf("Default ssl_mode = %v, want %v", config.SSLMode, "disable")
				}
				if config.MaxConns != 25 {
					t.Errorf("Default max_conns = %v, want %v", config.MaxConns, 25)
				}
				if config.MaxIdle != 5 {
					t.Errorf("Default max_idle = %v, want %v", config.MaxIdle, 5)
				}
			},
		},
		{
			name:   "mysql_defaults",
			config: DatabaseConfig{Driver: "mysql"},
			validate: func(t *testing.T, config DatabaseConfig) {
				if config.Port != 3306 {
					t.Errorf("Default mysql port = %v, want %v", config.Port, 3306)
				}
				if config.SSLMode != "" {
					t.Errorf("MySQL should not get an ssl_mode default: %v", config.SSLMode)
				}
			},
		},
		{
			name:   "sqlite_gets_no_port",
			config: DatabaseConfig{Driver: "sqlite", Database: "loom.db"},
			validate: func(t *testing.T, config DatabaseConfig) {
				if config.Port != 0 {
					t.Errorf("SQLite should not get a port default: %v", config.Port)
				}
			},
		},
		{
			name:   "explicit_values_preserved",
			config: DatabaseConfig{Driver: "postgres", Port: 5433, MaxConns: 50},
			validate: func(t *testing.T, config DatabaseConfig) {
				if config.Port != 5433 {
					t.Errorf("Port should be preserved: %v", config.Port)
				}
				if config.MaxConns != 50 {
					t.Errorf("MaxConns should be preserved: %v", config.MaxConns)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SetDefaults()
			tt.validate(t, tt.config)
		})
	}
}

func TestEmbedderConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   EmbedderConfig
		validate func(t *testing.T, config EmbedderConfig)
	}{
		{
			name:   "empty_config_openai_defaults",
			config: EmbedderConfig{},
			validate: func(t *testing.T, config EmbedderConfig) {
				if config.Provider != "openai" {
					t.Errorf("Default provider = %v, want %v", config.Provider, "openai")
				}
				if config.Model != "text-embedding-3-small" {
					t.Errorf("Default model = %v, want %v", config.Model, "text-embedding-3-small")
				}
				if config.Timeout != 30 {
					t.Errorf("Default timeout = %v, want %v", config.Timeout, 30)
				}
				if config.MaxRetries != 3 {
					t.Errorf("Default max_retries = %v, want %v", config.MaxRetries, 3)
				}
			},
		},
		{
			name:   "ollama_model_default",
			config: EmbedderConfig{Provider: "ollama"},
			validate: func(t *testing.T, config EmbedderConfig) {
				if config.Model != "nomic-embed-text" {
					t.Errorf("Default ollama model = %v, want %v", config.Model, "nomic-embed-text")
				}
			},
		},
		{
			name:   "cohere_model_default",
			config: EmbedderConfig{Provider: "cohere"},
			validate: func(t *testing.T, config EmbedderConfig) {
				if config.Model != "embed-english-v3.0" {
					t.Errorf("Default cohere model = %v, want %v", config.Model, "embed-english-v3.0")
				}
			},
		},
		{
			name:   "explicit_model_preserved",
			config: EmbedderConfig{Provider: "openai", Model: "text-embedding-3-large"},
			validate: func(t *testing.T, config EmbedderConfig) {
				if config.Model != "text-embedding-3-large" {
					t.Errorf("Model should be preserved: %v", config.Model)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderKeys(t)
			tt.config.SetDefaults()
			tt.validate(t, tt.config)
		})
	}
}

func TestVectorStoreConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   VectorStoreConfig
		wantType string
		wantPort int
	}{
		{"empty_defaults_to_chromem", VectorStoreConfig{}, "chromem", 0},
		{"qdrant_port", VectorStoreConfig{Type: "qdrant"}, "qdrant", 6333},
		{"weaviate_port", VectorStoreConfig{Type: "weaviate"}, "weaviate", 8080},
		{"milvus_port", VectorStoreConfig{Type: "milvus"}, "milvus", 19530},
		{"explicit_port_preserved", VectorStoreConfig{Type: "qdrant", Port: 7000}, "qdrant", 7000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SetDefaults()
			if tt.config.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", tt.config.Type, tt.wantType)
			}
			if tt.config.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", tt.config.Port, tt.wantPort)
			}
		})
	}
}

func TestAgentConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   AgentConfig
		defaults *DefaultsConfig
		validate func(t *testing.T, config AgentConfig)
	}{
		{
			name:   "empty_config_defaults",
			config: AgentConfig{},
			validate: func(t *testing.T, config AgentConfig) {
				if config.LLM != "default" {
					t.Errorf("Default LLM = %v, want %v", config.LLM, "default")
				}
				if config.Visibility != "public" {
					t.Errorf("Default visibility = %v, want %v", config.Visibility, "public")
				}
				if config.Description != "A helpful AI assistant" {
					t.Errorf("Default description = %v", config.Description)
				}
				if len(config.InputModes) != 1 || config.InputModes[0] != "text/plain" {
					t.Errorf("Default input modes = %v", config.InputModes)
				}
				if len(config.Skills) != 1 || config.Skills[0].ID != "default" {
					t.Errorf("Expected one default skill, got %v", config.Skills)
				}
				if config.Streaming == nil || !*config.Streaming {
					t.Error("Streaming should default to true")
				}
			},
		},
		{
			name:     "global_default_llm_applies",
			config:   AgentConfig{},
			defaults: &DefaultsConfig{LLM: "shared-llm"},
			validate: func(t *testing.T, config AgentConfig) {
				if config.LLM != "shared-llm" {
					t.Errorf("LLM = %v, want %v", config.LLM, "shared-llm")
				}
			},
		},
		{
			name:     "explicit_llm_wins_over_global_default",
			config:   AgentConfig{LLM: "own-llm"},
			defaults: &DefaultsConfig{LLM: "shared-llm"},
			validate: func(t *testing.T, config AgentConfig) {
				if config.LLM != "own-llm" {
					t.Errorf("LLM = %v, want %v", config.LLM, "own-llm")
				}
			},
		},
		{
			name:   "named_agent_gets_derived_description",
			config: AgentConfig{Name: "researcher"},
			validate: func(t *testing.T, config AgentConfig) {
				if config.Description != "A helpful AI agent: researcher" {
					t.Errorf("Description = %v", config.Description)
				}
				if config.Skills[0].Name != "researcher" {
					t.Errorf("Default skill name = %v, want %v", config.Skills[0].Name, "researcher")
				}
			},
		},
		{
			name:   "nested_sections_get_defaults",
			config: AgentConfig{Reasoning: &ReasoningConfig{}, Context: &ContextConfig{Strategy: "buffer_window"}},
			validate: func(t *testing.T, config AgentConfig) {
				if config.Reasoning.MaxIterations != 100 {
					t.Errorf("Reasoning max_iterations = %v, want %v", config.Reasoning.MaxIterations, 100)
				}
				if len(config.Reasoning.TerminationConditions) == 0 {
					t.Error("Termination conditions should be populated")
				}
				if config.Context.WindowSize != 20 {
					t.Errorf("Context window_size = %v, want %v", config.Context.WindowSize, 20)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.config.SetDefaults(tt.defaults)
			tt.validate(t, tt.config)
		})
	}
}

func TestRetryConfig_SetDefaults(t *testing.T) {
	cfg := RetryConfig{}
	cfg.SetDefaults()

	if cfg.MaxRetries != 3 {
		t.Errorf("Default max_retries = %v, want %v", cfg.MaxRetries, 3)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("Default base_delay = %v, want %v", cfg.BaseDelay, time.Second)
	}
	if cfg.MaxDelay != 30*time.Second {
		t.Errorf("Default max_delay = %v, want %v", cfg.MaxDelay, 30*time.Second)
	}
	if cfg.Jitter != 0.1 {
		t.Errorf("Default jitter = %v, want %v", cfg.Jitter, 0.1)
	}
}

func TestChunkingConfig_SetDefaults(t *testing.T) {
	cfg := ChunkingConfig{}
	cfg.SetDefaults()

	if cfg.Strategy != "simple" {
		t.Errorf("Default strategy = %v, want %v", cfg.Strategy, "simple")
	}
	if cfg.Size != 1000 {
		t.Errorf("Default size = %v, want %v", cfg.Size, 1000)
	}
	if cfg.MinSize != 100 || cfg.MaxSize != 2000 {
		t.Errorf("Default min/max = %v/%v, want 100/2000", cfg.MinSize, cfg.MaxSize)
	}
	if cfg.PreserveWords == nil || !*cfg.PreserveWords {
		t.Error("PreserveWords should default to true")
	}
}
