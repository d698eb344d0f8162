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

// Package commandtool runs shell commands as a StreamingTool, yielding
// stdout/stderr incrementally as the command runs. It is the reference
// implementation of the streaming execution pattern described in
// pkg/tool's package doc.
package commandtool

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/loomkit/loom/pkg/tool"
)

// Config configures a command tool.
type Config struct {
	// Name is the unique identifier for this tool (required).
	Name string

	// AllowedCommands restricts execution to this list of command names
	// (the first whitespace-separated token of the command line). Empty
	// means no allowlist restriction.
	AllowedCommands []string

	// DeniedCommands blocks execution of these command names even if
	// present in AllowedCommands.
	DeniedCommands []string

	// WorkingDir is the directory commands execute in. Defaults to ".".
	WorkingDir string

	// Timeout bounds how long a command may run. Zero means no timeout.
	Timeout time.Duration

	// RequireApproval gates every invocation behind human approval (HITL).
	RequireApproval bool

	// ApprovalPrompt is shown to the approver when RequireApproval is set.
	ApprovalPrompt string

	// DenyByDefault, combined with an empty AllowedCommands, rejects every
	// command unless explicitly allowed.
	DenyByDefault bool
}

// Args is the argument shape the LLM supplies.
type Args struct {
	Command string `json:"command" jsonschema:"required,description=Shell command to execute"`
}

type commandTool struct {
	cfg Config
}

// New creates a streaming command-execution tool.
func New(cfg Config) tool.Tool {
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "."
	}
	return &commandTool{cfg: cfg}
}

func (t *commandTool) Name() string        { return t.cfg.Name }
func (t *commandTool) Description() string { return "Executes a shell command and streams its output." }
func (t *commandTool) IsLongRunning() bool { return false }
func (t *commandTool) RequiresApproval() bool {
	return t.cfg.RequireApproval
}

func (t *commandTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "Shell command to execute",
			},
		},
		"required": []string{"command"},
	}
}

func (t *commandTool) commandName(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (t *commandTool) checkAllowed(command string) error {
	name := t.commandName(command)
	if name == "" {
		return fmt.Errorf("empty command")
	}
	if slices.Contains(t.cfg.DeniedCommands, name) {
		return fmt.Errorf("command %q is denied", name)
	}
	if len(t.cfg.AllowedCommands) > 0 {
		if !slices.Contains(t.cfg.AllowedCommands, name) {
			return fmt.Errorf("command %q is not in the allowed list", name)
		}
		return nil
	}
	if t.cfg.DenyByDefault {
		return fmt.Errorf("command %q rejected: deny_by_default is set and no allowed_commands configured", name)
	}
	return nil
}

// CallStreaming executes the command, yielding one Result per output line
// followed by a final non-streaming Result carrying the exit status.
func (t *commandTool) CallStreaming(ctx tool.Context, args map[string]any) iter.Seq2[*tool.Result, error] {
	return func(yield func(*tool.Result, error) bool) {
		var a Args
		if v, ok := args["command"].(string); ok {
			a.Command = v
		}

		if err := t.checkAllowed(a.Command); err != nil {
			yield(nil, err)
			return
		}

		runCtx := context.Background()
		var cancel context.CancelFunc
		if t.cfg.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(runCtx, t.cfg.Timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(runCtx, "sh", "-c", a.Command)
		cmd.Dir = t.cfg.WorkingDir

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(nil, fmt.Errorf("failed to attach stdout: %w", err))
			return
		}
		cmd.Stderr = cmd.Stdout

		if err := cmd.Start(); err != nil {
			yield(nil, fmt.Errorf("failed to start command: %w", err))
			return
		}

		var output strings.Builder
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			output.WriteString(line)
			output.WriteString("\n")
			if !yield(&tool.Result{Content: line, Streaming: true}, nil) {
				_ = cmd.Process.Kill()
				return
			}
		}
		if err := scanner.Err(); err != nil && err != io.EOF {
			yield(nil, fmt.Errorf("failed reading command output: %w", err))
			return
		}

		waitErr := cmd.Wait()
		result := &tool.Result{
			Content:   output.String(),
			Streaming: false,
			Metadata: map[string]any{
				"exit_code": cmd.ProcessState.ExitCode(),
			},
		}
		if waitErr != nil {
			result.Error = waitErr.Error()
		}
		yield(result, nil)
	}
}

var _ tool.StreamingTool = (*commandTool)(nil)
