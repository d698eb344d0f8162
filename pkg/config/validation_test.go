package config

import (
	"testing"
	"time"
)

func TestLLMConfig_Validate(t *testing.T) {
	temp := func(v float64) *float64 { return &v }

	tests := []struct {
		name    string
		config  LLMConfig
		wantErr bool
	}{
		{
			name: "valid_openai_config",
			config: LLMConfig{
				Provider:    LLMProviderOpenAI,
				Model:       "gpt-4o",
				APIKey:      "sk-test-key",
				Temperature: temp(0.7),
				MaxTokens:   4000,
			},
		},
		{
			name: "valid_anthropic_config",
			config: LLMConfig{
				Provider: LLMProviderAnthropic,
				Model:    "claude-sonnet-4-20250514",
				APIKey:   "sk-ant-test-key",
			},
		},
		{
			name: "ollama_needs_no_api_key",
			config: LLMConfig{
				Provider: LLMProviderOllama,
				Model:    "llama3.2",
			},
		},
		{
			name: "invalid_provider",
			config: LLMConfig{
				Provider: "watson",
				APIKey:   "key",
			},
			wantErr: true,
		},
		{
			name: "missing_api_key_for_openai",
			config: LLMConfig{
				Provider: LLMProviderOpenAI,
				Model:    "gpt-4o",
			},
			wantErr: true,
		},
		{
			name: "temperature_too_low",
			config: LLMConfig{
				Provider:    LLMProviderOpenAI,
				APIKey:      "key",
				Temperature: temp(-0.1),
			},
			wantErr: true,
		},
		{
			name: "temperature_too_high",
			config: LLMConfig{
				Provider:    LLMProviderOpenAI,
				APIKey:      "key",
				Temperature: temp(2.1),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  DatabaseConfig
		wantErr bool
	}{
		{
			name: "valid_postgres",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Database: "loom",
			},
		},
		{
			name: "valid_sqlite_without_host",
			config: DatabaseConfig{
				Driver:   "sqlite",
				Database: ".loom/loom.db",
			},
		},
		{
			name:    "missing_driver",
			config:  DatabaseConfig{Database: "loom"},
			wantErr: true,
		},
		{
			name:    "invalid_driver",
			config:  DatabaseConfig{Driver: "oracle", Database: "loom", Host: "localhost"},
			wantErr: true,
		},
		{
			name:    "missing_database",
			config:  DatabaseConfig{Driver: "postgres", Host: "localhost"},
			wantErr: true,
		},
		{
			name:    "postgres_requires_host",
			config:  DatabaseConfig{Driver: "postgres", Database: "loom"},
			wantErr: true,
		},
		{
			name:    "negative_max_conns",
			config:  DatabaseConfig{Driver: "sqlite", Database: "x.db", MaxConns: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbedderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  EmbedderConfig
		wantErr bool
	}{
		{
			name:   "valid_openai",
			config: EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small"},
		},
		{
			name:   "valid_ollama",
			config: EmbedderConfig{Provider: "ollama", Model: "nomic-embed-text"},
		},
		{
			name:    "unsupported_provider",
			config:  EmbedderConfig{Provider: "huggingface", Model: "some-model"},
			wantErr: true,
		},
		{
			name:    "missing_model",
			config:  EmbedderConfig{Provider: "openai"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVectorStoreConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  VectorStoreConfig
		wantErr bool
	}{
		{
			name:   "chromem_needs_nothing",
			config: VectorStoreConfig{Type: "chromem"},
		},
		{
			name:   "qdrant_with_host",
			config: VectorStoreConfig{Type: "qdrant", Host: "localhost"},
		},
		{
			name:    "qdrant_without_host",
			config:  VectorStoreConfig{Type: "qdrant"},
			wantErr: true,
		},
		{
			name:    "pinecone_without_api_key",
			config:  VectorStoreConfig{Type: "pinecone"},
			wantErr: true,
		},
		{
			name:   "pinecone_with_api_key",
			config: VectorStoreConfig{Type: "pinecone", APIKey: "pc-key"},
		},
		{
			name:    "unknown_type",
			config:  VectorStoreConfig{Type: "faiss"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAgentConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AgentConfig
		wantErr bool
	}{
		{
			name:   "minimal_agent",
			config: AgentConfig{Name: "assistant"},
		},
		{
			name:   "valid_visibility",
			config: AgentConfig{Visibility: "internal"},
		},
		{
			name:    "invalid_visibility",
			config:  AgentConfig{Visibility: "hidden"},
			wantErr: true,
		},
		{
			name: "structured_output_without_schema",
			config: AgentConfig{
				StructuredOutput: &StructuredOutputConfig{},
			},
			wantErr: true,
		},
		{
			name: "structured_output_with_schema",
			config: AgentConfig{
				StructuredOutput: &StructuredOutputConfig{
					Schema: map[string]interface{}{"type": "object"},
				},
			},
		},
		{
			name: "invalid_context_strategy",
			config: AgentConfig{
				Context: &ContextConfig{Strategy: "forget_everything"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestContextConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  ContextConfig
		wantErr bool
	}{
		{"empty_is_valid", ContextConfig{}, false},
		{"buffer_window", ContextConfig{Strategy: "buffer_window", WindowSize: 10}, false},
		{"negative_window", ContextConfig{Strategy: "buffer_window", WindowSize: -1}, true},
		{"threshold_out_of_range", ContextConfig{Strategy: "summary_buffer", Threshold: 1.5}, true},
		{"negative_budget", ContextConfig{Strategy: "token_window", Budget: -100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentSearchConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  DocumentSearchConfig
		wantErr bool
	}{
		{"defaults_are_valid", DocumentSearchConfig{TopK: 10}, false},
		{"hyde_requires_llm", DocumentSearchConfig{EnableHyDE: true}, true},
		{"hyde_with_llm", DocumentSearchConfig{EnableHyDE: true, HyDELLM: "fast"}, false},
		{"rerank_requires_llm", DocumentSearchConfig{EnableRerank: true}, true},
		{"multi_query_requires_llm", DocumentSearchConfig{EnableMultiQuery: true}, true},
		{"threshold_out_of_range", DocumentSearchConfig{Threshold: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDocumentSourceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  DocumentSourceConfig
		wantErr bool
	}{
		{"directory_with_path", DocumentSourceConfig{Type: "directory", Path: "./docs"}, false},
		{"directory_without_path", DocumentSourceConfig{Type: "directory"}, true},
		{"sql_without_config", DocumentSourceConfig{Type: "sql"}, true},
		{"collection_without_name", DocumentSourceConfig{Type: "collection"}, true},
		{"collection_with_name", DocumentSourceConfig{Type: "collection", Collection: "kb"}, false},
		{"unknown_type", DocumentSourceConfig{Type: "carrier-pigeon"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  AuthConfig
		wantErr bool
	}{
		{
			name:   "disabled_is_always_valid",
			config: AuthConfig{},
		},
		{
			name: "enabled_and_complete",
			config: AuthConfig{
				Enabled:         true,
				JWKSURL:         "https://idp.example.com/.well-known/jwks.json",
				Issuer:          "https://idp.example.com",
				Audience:        "loom-api",
				RefreshInterval: 15 * time.Minute,
			},
		},
		{
			name:    "enabled_without_jwks_url",
			config:  AuthConfig{Enabled: true, Issuer: "x", Audience: "y", RefreshInterval: time.Hour},
			wantErr: true,
		},
		{
			name:    "enabled_without_issuer",
			config:  AuthConfig{Enabled: true, JWKSURL: "https://x", Audience: "y", RefreshInterval: time.Hour},
			wantErr: true,
		},
		{
			name: "refresh_interval_too_short",
			config: AuthConfig{
				Enabled:         true,
				JWKSURL:         "https://x",
				Issuer:          "i",
				Audience:        "a",
				RefreshInterval: time.Second,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthConfig_IsEnabled(t *testing.T) {
	complete := AuthConfig{Enabled: true, JWKSURL: "https://x", Issuer: "i", Audience: "a"}
	if !complete.IsEnabled() {
		t.Error("complete enabled config should report enabled")
	}

	half := AuthConfig{Enabled: true, JWKSURL: "https://x"}
	if half.IsEnabled() {
		t.Error("half-configured auth should stay off")
	}

	var nilCfg *AuthConfig
	if nilCfg.IsEnabled() {
		t.Error("nil config should report disabled")
	}
}
