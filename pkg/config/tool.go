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

import "fmt"

// ToolType identifies the tool family a config entry describes.
type ToolType string

const (
	// ToolTypeMCP connects an MCP (Model Context Protocol) server.
	ToolTypeMCP ToolType = "mcp"

	// ToolTypeFunction is a built-in Go function tool.
	ToolTypeFunction ToolType = "function"

	// ToolTypeCommand is the shell command execution tool.
	ToolTypeCommand ToolType = "command"
)

// safeFunctionHandlers are the built-in handlers that only read or keep
// local scratch state; everything else writes, executes or reaches the
// network and defaults to requiring approval.
var safeFunctionHandlers = map[string]bool{
	"read_file":   true,
	"grep_search": true,
	"todo_write":  true,
}

// ToolConfig configures one tool or toolset. The fields split by Type:
// the MCP block for mcp, Handler/Parameters for function, the command
// block for command. HITL fields apply to all types.
type ToolConfig struct {
	// Type of tool (mcp, function, command).
	Type ToolType `yaml:"type,omitempty" json:"type,omitempty" jsonschema:"title=Tool Type,description=Type of tool,enum=mcp,enum=function,enum=command,default=mcp"`

	// Enabled controls whether the tool is active.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Whether the tool is active,default=true"`

	// Description of the tool, shown to the model.
	Description string `yaml:"description,omitempty" json:"description,omitempty" jsonschema:"title=Description,description=What this tool does"`

	// URL is the MCP server URL (type: mcp).
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=MCP URL,description=MCP server URL (for type=mcp)"`

	// Transport selects the MCP transport (stdio, sse, streamable-http).
	Transport string `yaml:"transport,omitempty" json:"transport,omitempty" jsonschema:"title=Transport,description=MCP transport type,enum=stdio,enum=sse,enum=streamable-http"`

	// Command launches an MCP stdio server. Distinct from the command
	// execution tool type.
	Command string `yaml:"command,omitempty" json:"command,omitempty" jsonschema:"title=Command,description=Command to execute MCP server (for type=mcp stdio)"`

	// Args for the MCP stdio command.
	Args []string `yaml:"args,omitempty" json:"args,omitempty" jsonschema:"title=Args,description=Arguments for MCP stdio transport"`

	// Env for the MCP stdio command.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty" jsonschema:"title=Environment Variables,description=Environment variables for MCP stdio transport"`

	// Filter limits which tools an MCP server exposes.
	Filter []string `yaml:"filter,omitempty" json:"filter,omitempty" jsonschema:"title=Filter,description=Limit which tools are exposed from MCP server"`

	// Handler names the built-in function (type: function).
	Handler string `yaml:"handler,omitempty" json:"handler,omitempty" jsonschema:"title=Handler,description=Function name (for type=function)"`

	// Parameters is the function's parameter schema.
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty" jsonschema:"title=Parameters,description=Parameters schema (for type=function)"`

	// AllowedCommands whitelists base commands (type: command).
	AllowedCommands []string `yaml:"allowed_commands,omitempty" json:"allowed_commands,omitempty" jsonschema:"title=Allowed Commands,description=Whitelist of allowed base commands"`

	// DeniedCommands blacklists base commands.
	DeniedCommands []string `yaml:"denied_commands,omitempty" json:"denied_commands,omitempty" jsonschema:"title=Denied Commands,description=Blacklist of denied base commands"`

	// WorkingDirectory for command execution.
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty" jsonschema:"title=Working Directory,description=Working directory for command execution"`

	// MaxExecutionTime bounds command duration.
	MaxExecutionTime string `yaml:"max_execution_time,omitempty" json:"max_execution_time,omitempty" jsonschema:"title=Max Execution Time,description=Maximum command execution duration"`

	// DenyByDefault rejects commands absent from allowed_commands.
	DenyByDefault *bool `yaml:"deny_by_default,omitempty" json:"deny_by_default,omitempty" jsonschema:"title=Deny By Default,description=Require explicit allowed_commands whitelist,default=false"`

	// RequireApproval gates execution on human approval. nil applies
	// the per-type defaults in SetDefaults.
	RequireApproval *bool `yaml:"require_approval,omitempty" json:"require_approval,omitempty" jsonschema:"title=Requires Approval (HITL),description=Whether this tool requires human approval,default=false"`

	// ApprovalPrompt is shown when requesting approval.
	ApprovalPrompt string `yaml:"approval_prompt,omitempty" json:"approval_prompt,omitempty" jsonschema:"title=Approval Prompt,description=Message shown when requesting approval"`
}

// SetDefaults applies default values, including the approval policy:
// anything that writes, executes or reaches the network defaults to
// requiring approval; read-only tools do not. The --approve-tools /
// --no-approve-tools flags override either way.
func (c *ToolConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = ToolTypeMCP
	}
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}

	// MCP transport follows from how the server is addressed.
	if c.Type == ToolTypeMCP && c.Transport == "" {
		if c.URL != "" {
			c.Transport = "sse"
		} else if c.Command != "" {
			c.Transport = "stdio"
		}
	}

	if c.RequireApproval == nil {
		switch c.Type {
		case ToolTypeCommand:
			c.RequireApproval = BoolPtr(true)
		case ToolTypeFunction:
			c.RequireApproval = BoolPtr(!safeFunctionHandlers[c.Handler])
		default:
			c.RequireApproval = BoolPtr(false)
		}
	}
}

// Validate checks the configuration. Command tools validate leniently;
// their defaults cover everything.
func (c *ToolConfig) Validate() error {
	switch c.Type {
	case ToolTypeMCP:
		if c.URL == "" && c.Command == "" {
			return fmt.Errorf("mcp tool requires url or command")
		}
	case ToolTypeFunction:
		if c.Handler == "" {
			return fmt.Errorf("function tool requires handler")
		}
	case ToolTypeCommand:
	default:
		return fmt.Errorf("invalid tool type %q (valid: mcp, function, command)", c.Type)
	}
	return nil
}

// IsEnabled resolves the tri-state Enabled flag, defaulting to true.
func (c *ToolConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// NeedsApproval reports whether execution is gated on human approval.
func (c *ToolConfig) NeedsApproval() bool {
	return c.RequireApproval != nil && *c.RequireApproval
}

// GetDefaultToolConfigs returns the built-in local tool set enabled by
// the --tools flag. Approval policy comes from SetDefaults.
func GetDefaultToolConfigs() map[string]*ToolConfig {
	return map[string]*ToolConfig{
		"execute_command": {
			Type:             ToolTypeCommand,
			Enabled:          BoolPtr(true),
			Description:      "Execute shell commands with security restrictions. Use for running scripts, build tools, package managers, etc.",
			WorkingDirectory: "./",
			MaxExecutionTime: "30s",
		},
		"read_file": {
			Type:        ToolTypeFunction,
			Handler:     "read_file",
			Enabled:     BoolPtr(true),
			Description: "Read the contents of a file with optional line numbers and range selection. Use to understand code structure and context before making edits.",
		},
		"write_file": {
			Type:        ToolTypeFunction,
			Handler:     "write_file",
			Enabled:     BoolPtr(true),
			Description: "Create a new file or overwrite an existing file with content. Supports backups and safety checks.",
		},
		"search_replace": {
			Type:        ToolTypeFunction,
			Handler:     "search_replace",
			Enabled:     BoolPtr(true),
			Description: "Replace exact text in a file. Preserves formatting and indentation. Use for precise edits. Requires unique match unless replace_all=true.",
		},
		"apply_patch": {
			Type:        ToolTypeFunction,
			Handler:     "apply_patch",
			Enabled:     BoolPtr(true),
			Description: "Apply a patch to a file by finding and replacing text with surrounding context. More robust than search_replace for code edits. Validates context before applying changes.",
		},
		"grep_search": {
			Type:        ToolTypeFunction,
			Handler:     "grep_search",
			Enabled:     BoolPtr(true),
			Description: "Search for patterns across files using regex. Use to find code references, function definitions, or text patterns.",
		},
		"web_request": {
			Type:        ToolTypeFunction,
			Handler:     "web_request",
			Enabled:     BoolPtr(true),
			Description: "Make HTTP requests to external APIs or services. Supports GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS methods.",
		},
		"todo_write": {
			Type:        ToolTypeFunction,
			Handler:     "todo_write",
			Enabled:     BoolPtr(true),
			Description: "Create and manage a structured task list for tracking progress. Use for complex multi-step tasks (3+ steps) to demonstrate thoroughness.",
		},
	}
}
