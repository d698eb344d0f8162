// Package loom re-exports the most commonly used pieces of the runtime
// so small programs can depend on a single package.
//
//	import loom "github.com/loomkit/loom/pkg"
//
//	svc := loom.InMemorySessionService()
//	r, err := loom.NewRunner(loom.RunnerConfig{
//	    AppName:        "demo",
//	    Agent:          root,
//	    SessionService: svc,
//	})
//	for event, err := range r.Run(ctx, "user-1", "session-1", content, loom.RunConfig{}) {
//	    ...
//	}
package loom

import (
	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/runner"
	"github.com/loomkit/loom/pkg/session"
)

// Re-export commonly used types.
type (
	// Agent is the contract every agent satisfies.
	Agent = agent.Agent

	// Event is one step of an invocation.
	Event = agent.Event

	// Content is the payload of a user or model turn.
	Content = agent.Content

	// RunConfig carries per-invocation knobs.
	RunConfig = agent.RunConfig

	// Runner drives a root agent against a session.
	Runner = runner.Runner

	// RunnerConfig configures NewRunner.
	RunnerConfig = runner.Config

	// SessionService manages session lifecycle and persistence.
	SessionService = session.Service

	// Config is the root YAML configuration.
	Config = config.Config

	// AgentConfig is one agent's YAML configuration.
	AgentConfig = config.AgentConfig
)

// Re-export commonly used constructors.
var (
	// NewAgent creates a custom agent from a Run function.
	NewAgent = agent.New

	// NewRunner creates the invocation entry point.
	NewRunner = runner.New

	// NewTextContent builds single-text-part content.
	NewTextContent = agent.NewTextContent

	// InMemorySessionService is the conformance session store.
	InMemorySessionService = session.InMemoryService

	// LoadConfig loads configuration through a config provider.
	LoadConfig = config.LoadConfig

	// LoadConfigFile loads a configuration file and returns its loader.
	LoadConfigFile = config.LoadConfigFile
)
