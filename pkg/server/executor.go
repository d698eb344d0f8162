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

package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/runner"
	"github.com/loomkit/loom/pkg/session"
)

// ExecutorConfig configures the bridge between the A2A server surface
// and a runner.
type ExecutorConfig struct {
	// RunnerConfig creates the runner each execution drives.
	RunnerConfig runner.Config

	// RunConfig is the per-invocation runtime configuration.
	RunConfig agent.RunConfig
}

// Executor implements a2asrv.AgentExecutor on top of runner.Run.
//
// Event translation:
//   - new task: TaskStatusUpdateEvent(submitted)
//   - before the run: TaskStatusUpdateEvent(working)
//   - each agent event: TaskArtifactUpdateEvent with translated parts
//   - after the last event: TaskArtifactUpdateEvent with LastChunk set
//   - run failure: TaskStatusUpdateEvent(failed)
//   - pending long-running tool: TaskStatusUpdateEvent(input-required)
//   - natural completion: TaskStatusUpdateEvent(completed)
type Executor struct {
	config ExecutorConfig
}

// NewExecutor creates an A2A executor.
func NewExecutor(config ExecutorConfig) *Executor {
	return &Executor{config: config}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	msg := reqCtx.Message
	if msg == nil {
		slog.Error("Execute: message not provided")
		return fmt.Errorf("message not provided")
	}

	slog.Debug("Execute: converting message", "parts", len(msg.Parts), "role", msg.Role)

	// A user's approve/deny reply to a pending tool arrives as a regular
	// message; surface the decision to the agent via message metadata and
	// session state.
	approval := ExtractApprovalResponse(msg)
	if approval != nil {
		slog.Debug("Execute: processing approval response",
			"decision", approval.Decision, "toolCallID", approval.ToolCallID)
		if msg.Metadata == nil {
			msg.Metadata = make(map[string]any)
		}
		msg.Metadata["loom:approval_decision"] = approval.Decision
		msg.Metadata["loom:approval_tool_call_id"] = approval.ToolCallID
	}

	content, err := toLoomContent(msg)
	if err != nil {
		slog.Error("Execute: message conversion failed", "error", err)
		return fmt.Errorf("message conversion failed: %w", err)
	}

	r, err := runner.New(e.config.RunnerConfig)
	if err != nil {
		slog.Error("Execute: failed to create runner", "error", err)
		return fmt.Errorf("failed to create runner: %w", err)
	}

	if reqCtx.StoredTask == nil {
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	meta := toInvocationMeta(reqCtx)

	if err := e.prepareSession(ctx, meta); err != nil {
		event := toFailedStatusEvent(reqCtx, err, meta.eventMeta)
		if err := queue.Write(ctx, event); err != nil {
			return err
		}
		return nil
	}

	if approval != nil {
		if err := e.storeApprovalDecision(ctx, meta, approval); err != nil {
			slog.Warn("Execute: failed to store approval decision", "error", err)
			// The agent may still resolve the approval from metadata.
		}
	}

	workingEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	workingEvent.Metadata = meta.eventMeta
	if err := queue.Write(ctx, workingEvent); err != nil {
		return err
	}

	processor := newEventProcessor(reqCtx, meta)
	return e.process(ctx, r, processor, content, queue)
}

// storeApprovalDecision records the decision in session state under the
// key the turn loop reads when it resumes the pending tool.
func (e *Executor) storeApprovalDecision(ctx context.Context, meta invocationMeta, approval *ApprovalResponse) error {
	service := e.config.RunnerConfig.SessionService

	resp, err := service.Get(ctx, &session.GetRequest{
		AppName:   e.config.RunnerConfig.AppName,
		UserID:    meta.userID,
		SessionID: meta.sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	key := "_approval"
	if approval.ToolCallID != "" {
		key = "_approval:" + approval.ToolCallID
	}

	event := agent.NewEvent("")
	event.Author = agent.AuthorUser
	event.Actions.StateDelta = map[string]any{key: approval.Decision}

	if err := service.AppendEvent(ctx, resp.Session, event); err != nil {
		return fmt.Errorf("failed to store approval: %w", err)
	}
	return nil
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

func (e *Executor) process(ctx context.Context, r *runner.Runner, processor *eventProcessor, content *agent.Content, q eventqueue.Queue) error {
	meta := processor.meta

	for event, err := range r.Run(ctx, meta.userID, meta.sessionID, content, e.config.RunConfig) {
		if err != nil {
			failedEvent := processor.makeFailedEvent(fmt.Errorf("agent run failed: %w", err), nil)
			if writeErr := q.Write(ctx, failedEvent); writeErr != nil {
				return fmt.Errorf("failed to write error event: %w (original: %w)", writeErr, err)
			}
			return nil
		}

		a2aEvent, err := processor.process(ctx, event)
		if err != nil {
			failedEvent := processor.makeFailedEvent(fmt.Errorf("event processing failed: %w", err), event)
			if writeErr := q.Write(ctx, failedEvent); writeErr != nil {
				return fmt.Errorf("failed to write processing error: %w (original: %w)", writeErr, err)
			}
			return nil
		}

		if a2aEvent != nil {
			if err := q.Write(ctx, a2aEvent); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
		}
	}

	for _, ev := range processor.makeTerminalEvents() {
		if err := q.Write(ctx, ev); err != nil {
			return fmt.Errorf("failed to write terminal event: %w", err)
		}
	}

	return nil
}

// prepareSession ensures the session exists before the run starts.
func (e *Executor) prepareSession(ctx context.Context, meta invocationMeta) error {
	service := e.config.RunnerConfig.SessionService

	_, err := service.Get(ctx, &session.GetRequest{
		AppName:   e.config.RunnerConfig.AppName,
		UserID:    meta.userID,
		SessionID: meta.sessionID,
	})
	if err == nil {
		return nil
	}

	_, err = service.Create(ctx, &session.CreateRequest{
		AppName:   e.config.RunnerConfig.AppName,
		UserID:    meta.userID,
		SessionID: meta.sessionID,
		State:     make(map[string]any),
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

var _ a2asrv.AgentExecutor = (*Executor)(nil)
