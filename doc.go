// Package loom is an agent orchestration runtime for building LLM-driven
// applications from cooperating agents.
//
// Loom composes agents into trees (sequential, parallel, loop,
// conditional and LLM-routed workflows), drives model-backed agents
// through an iterative tool-calling turn loop, and records every step of
// an invocation as an append-only event log with layered, scoped session
// state.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/loomkit/loom/cmd/loom@latest
//
// Define an agent in YAML:
//
//	agents:
//	  assistant:
//	    name: "My Assistant"
//	    llm: "gpt-4o"
//	    prompt:
//	      system_prompt: "You are a helpful assistant"
//
//	llms:
//	  gpt-4o:
//	    provider: "openai"
//	    model: "gpt-4o-mini"
//	    api_key: "${OPENAI_API_KEY}"
//
// And serve it:
//
//	loom serve --config my-agent.yaml
//
// # Using as a Go library
//
//	import (
//	    "github.com/loomkit/loom/pkg/agent"
//	    "github.com/loomkit/loom/pkg/agent/llmagent"
//	    "github.com/loomkit/loom/pkg/agent/workflowagent"
//	    "github.com/loomkit/loom/pkg/runner"
//	    "github.com/loomkit/loom/pkg/session"
//	)
//
// Agents yield lazy event streams; the runner appends every event to the
// session before handing it to the caller, so a session replay always
// reproduces what the caller saw.
//
// # License
//
// AGPL-3.0 - See LICENSE.md for details.
package loom
