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

package config

import "fmt"

// EmbedderConfig configures an embedding provider.
type EmbedderConfig struct {
	// Provider type: "openai", "ollama" or "cohere".
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=Embedding provider,enum=openai,enum=ollama,enum=cohere,default=openai"`

	// Model is the embedding model name.
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Embedding model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key for authentication (use ${ENV_VAR})"`

	// BaseURL overrides the default API endpoint.
	BaseURL string `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"title=Base URL,description=Custom base URL for API endpoint"`

	// Dimension is the embedding vector size; zero uses the model's
	// native dimension.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,description=Embedding vector dimension"`

	// Timeout in seconds per request.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Request timeout in seconds,default=30"`

	// MaxRetries for transient failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Retry attempts for transient failures,default=3"`

	// BatchSize caps how many inputs go into one embedding request.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty" jsonschema:"title=Batch Size,description=Inputs per embedding request"`

	// EncodingFormat selects the response encoding (OpenAI).
	EncodingFormat string `yaml:"encoding_format,omitempty" json:"encoding_format,omitempty"`

	// User is an end-user identifier forwarded to the provider (OpenAI).
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// InputType hints the embedding use case (Cohere).
	InputType string `yaml:"input_type,omitempty" json:"input_type,omitempty"`

	// OutputDimension requests Matryoshka truncation (Cohere).
	OutputDimension int `yaml:"output_dimension,omitempty" json:"output_dimension,omitempty"`

	// Truncate selects long-input handling (Cohere).
	Truncate string `yaml:"truncate,omitempty" json:"truncate,omitempty"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "openai"
	}
	if c.Model == "" {
		switch c.Provider {
		case "openai":
			c.Model = "text-embedding-3-small"
		case "ollama":
			c.Model = "nomic-embed-text"
		case "cohere":
			c.Model = "embed-english-v3.0"
		}
	}
	if c.APIKey == "" {
		c.APIKey = GetProviderAPIKey(c.Provider)
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case "openai", "ollama", "cohere":
	default:
		return fmt.Errorf("unsupported embedder provider: %q (supported: openai, ollama, cohere)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("embedder model is required")
	}
	return nil
}
