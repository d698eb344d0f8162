// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel

// Package server provides the HTTP and gRPC serving surface.
//
// The HTTP server exposes the agent API, the A2A discovery document,
// health checks, and a minimal embedded web UI (static/index.html)
// compiled into the binary with go:embed.
package server
