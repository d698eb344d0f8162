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

package agent

import "fmt"

// Kind identifies the taxonomy a Error belongs to, so callers can decide
// whether an invocation failure is recoverable-by-the-model or must
// terminate the stream without relying on string matching.
type Kind string

const (
	// KindConfig marks invalid agent construction: duplicate tool name,
	// cyclic agent tree, unknown placeholder scope. Always raised at
	// build time, never while an invocation is running.
	KindConfig Kind = "config_error"

	// KindAgent marks a required state placeholder missing, an unknown
	// route label, an unresolved transfer_to_agent target, or an
	// otherwise illegal agent state encountered while running.
	KindAgent Kind = "agent_error"

	// KindModel marks a model backend failure (carries the backend's
	// error_code/message), an iteration-limit violation, or a
	// structured-output schema validation failure.
	KindModel Kind = "model_error"

	// KindTool marks an infrastructure-level tool fault such as a
	// missing binding. A tool's own failure is NOT reported this way —
	// it is converted into a FunctionResponse carrying an "error" field
	// so the model can recover; only faults in the dispatch plumbing
	// itself reach this kind.
	KindTool Kind = "tool_error"

	// KindSession marks a session store I/O failure, an unknown
	// session, or a concurrent modification.
	KindSession Kind = "session_error"

	// KindContext marks a deadline exceeded or an invocation ended
	// during a required operation.
	KindContext Kind = "context_error"
)

// Error is the taxonomy wrapper for failures the core raises. It carries
// a Kind so callers can branch on category without parsing the message,
// while still satisfying the standard error interface and unwrap chain.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewConfigError builds a build-time KindConfig error.
func NewConfigError(message string, cause error) error {
	return &Error{Kind: KindConfig, Message: message, Err: cause}
}

// NewAgentError builds a KindAgent error.
func NewAgentError(message string, cause error) error {
	return &Error{Kind: KindAgent, Message: message, Err: cause}
}

// NewModelError builds a KindModel error.
func NewModelError(message string, cause error) error {
	return &Error{Kind: KindModel, Message: message, Err: cause}
}

// SchemaViolationError is a KindModel error raised when a structured-output
// response fails OutputSchema validation. It is a distinct type
// (rather than a plain KindModel Error) so a turn loop can recognize it
// with errors.As and apply its configured retry-with-reminder policy
// before giving up, instead of treating every model failure alike.
type SchemaViolationError struct {
	inner *Error
}

func (e *SchemaViolationError) Error() string {
	return e.inner.Error()
}

func (e *SchemaViolationError) Unwrap() error {
	return e.inner
}

// NewSchemaViolationError builds a SchemaViolationError.
func NewSchemaViolationError(message string) error {
	return &SchemaViolationError{inner: &Error{Kind: KindModel, Message: message}}
}

// NewToolError builds a KindTool error for infrastructure-level tool
// faults. A tool's own runtime failure should not use this: it belongs
// in a FunctionResponse's "error" field instead.
func NewToolError(message string, cause error) error {
	return &Error{Kind: KindTool, Message: message, Err: cause}
}

// NewSessionError builds a KindSession error.
func NewSessionError(message string, cause error) error {
	return &Error{Kind: KindSession, Message: message, Err: cause}
}

// NewContextError builds a KindContext error.
func NewContextError(message string, cause error) error {
	return &Error{Kind: KindContext, Message: message, Err: cause}
}
