package config

import (
	"testing"
)

func TestToolConfig_Validate(t *testing.T) {
	tests := []struct {
		name          string
		tool          ToolConfig
		expectError   bool
		errorContains string
	}{
		{
			name: "mcp tool with url",
			tool: ToolConfig{Type: ToolTypeMCP, URL: "http://localhost:3000/mcp"},
		},
		{
			name: "mcp tool with stdio command",
			tool: ToolConfig{Type: ToolTypeMCP, Command: "npx", Args: []string{"-y", "some-server"}},
		},
		{
			name:          "mcp tool without url or command",
			tool:          ToolConfig{Type: ToolTypeMCP},
			expectError:   true,
			errorContains: "requires url or command",
		},
		{
			name: "function tool with handler",
			tool: ToolConfig{Type: ToolTypeFunction, Handler: "read_file"},
		},
		{
			name:          "function tool without handler",
			tool:          ToolConfig{Type: ToolTypeFunction},
			expectError:   true,
			errorContains: "requires handler",
		},
		{
			name: "command tool with no restrictions is valid",
			tool: ToolConfig{Type: ToolTypeCommand},
		},
		{
			name: "command tool with whitelist",
			tool: ToolConfig{Type: ToolTypeCommand, AllowedCommands: []string{"ls", "cat"}},
		},
		{
			name:          "unknown type",
			tool:          ToolConfig{Type: "telepathy"},
			expectError:   true,
			errorContains: "invalid tool type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tool.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if tt.errorContains != "" && !contains(err.Error(), tt.errorContains) {
					t.Errorf("expected error containing %q, got %q", tt.errorContains, err.Error())
				}
			} else if err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}

func TestToolConfig_SetDefaults(t *testing.T) {
	t.Run("empty config defaults to enabled mcp", func(t *testing.T) {
		cfg := ToolConfig{}
		cfg.SetDefaults()
		if cfg.Type != ToolTypeMCP {
			t.Errorf("Type = %v, want %v", cfg.Type, ToolTypeMCP)
		}
		if !cfg.IsEnabled() {
			t.Error("tool should default to enabled")
		}
	})

	t.Run("mcp transport follows addressing", func(t *testing.T) {
		byURL := ToolConfig{Type: ToolTypeMCP, URL: "http://localhost:3000"}
		byURL.SetDefaults()
		if byURL.Transport != "sse" {
			t.Errorf("URL-addressed transport = %v, want sse", byURL.Transport)
		}

		byCommand := ToolConfig{Type: ToolTypeMCP, Command: "npx"}
		byCommand.SetDefaults()
		if byCommand.Transport != "stdio" {
			t.Errorf("command-addressed transport = %v, want stdio", byCommand.Transport)
		}
	})

	t.Run("explicit transport preserved", func(t *testing.T) {
		cfg := ToolConfig{Type: ToolTypeMCP, URL: "http://localhost:3000", Transport: "streamable-http"}
		cfg.SetDefaults()
		if cfg.Transport != "streamable-http" {
			t.Errorf("Transport = %v, want streamable-http", cfg.Transport)
		}
	})
}

func TestToolConfig_ApprovalDefaults(t *testing.T) {
	tests := []struct {
		name         string
		tool         ToolConfig
		wantApproval bool
	}{
		{"command tools require approval", ToolConfig{Type: ToolTypeCommand}, true},
		{"write handler requires approval", ToolConfig{Type: ToolTypeFunction, Handler: "write_file"}, true},
		{"read handler does not", ToolConfig{Type: ToolTypeFunction, Handler: "read_file"}, false},
		{"grep handler does not", ToolConfig{Type: ToolTypeFunction, Handler: "grep_search"}, false},
		{"todo handler does not", ToolConfig{Type: ToolTypeFunction, Handler: "todo_write"}, false},
		{"mcp tools do not by default", ToolConfig{Type: ToolTypeMCP, URL: "http://x"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.tool.SetDefaults()
			if got := tt.tool.NeedsApproval(); got != tt.wantApproval {
				t.Errorf("NeedsApproval() = %v, want %v", got, tt.wantApproval)
			}
		})
	}

	t.Run("explicit require_approval wins", func(t *testing.T) {
		cfg := ToolConfig{Type: ToolTypeCommand, RequireApproval: BoolPtr(false)}
		cfg.SetDefaults()
		if cfg.NeedsApproval() {
			t.Error("explicit require_approval=false should be preserved")
		}
	})
}
