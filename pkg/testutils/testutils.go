// Package testutils provides shared fixtures for Loom's test suites: a
// deterministic scripted model.LLM (model.go) and small context and
// config helpers.
package testutils

import (
	"context"
	"time"

	"github.com/loomkit/loom/pkg/config"
)

// TestConfig returns a minimal valid configuration.
func TestConfig() *config.Config {
	cfg := &config.Config{
		Agents: map[string]*config.AgentConfig{
			"test-agent": {
				Name: "Test Agent",
				LLM:  "test-llm",
			},
		},
		LLMs: map[string]*config.LLMConfig{
			"test-llm": {
				Provider: "openai",
				Model:    "gpt-4o-mini",
			},
		},
	}
	cfg.SetDefaults()
	return cfg
}

// TestContext returns a context that expires after five seconds, long
// enough for any unit test and short enough to fail fast on a hang.
func TestContext() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = cancel // expires via timeout
	return ctx
}

// TestContextWithTimeout returns a context with a custom timeout.
func TestContextWithTimeout(timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	_ = cancel // expires via timeout
	return ctx
}
