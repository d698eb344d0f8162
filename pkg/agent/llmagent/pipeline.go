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

package llmagent

import (
	"github.com/loomkit/loom/pkg/agent"
	"github.com/loomkit/loom/pkg/model"
)

// ProcessorContext carries the invocation context plus the owning agent
// into the processor pipeline. It embeds InvocationContext so a processor
// can be handed directly to anything expecting agent.ReadonlyContext or
// agent.CallbackContext, such as instruction.InjectState.
type ProcessorContext struct {
	agent.InvocationContext

	llmAgent *llmAgent
}

// newProcessorContext wraps an invocation context for the processor pipeline.
func newProcessorContext(ctx agent.InvocationContext, a *llmAgent) *ProcessorContext {
	return &ProcessorContext{InvocationContext: ctx, llmAgent: a}
}

// RequestProcessor prepares or augments an LlmRequest before it is sent to
// the model. Processors run in registration order; each sees the request
// as left by the previous one.
type RequestProcessor interface {
	ProcessRequest(ctx *ProcessorContext, req *model.Request) error
}

// ResponseProcessor inspects or rewrites a model Response after the
// terminal chunk has been merged, before it becomes an Event.
type ResponseProcessor interface {
	ProcessResponse(ctx *ProcessorContext, req *model.Request, resp *model.Response) error
}

// RequestProcessorFunc adapts a plain function to RequestProcessor.
type RequestProcessorFunc func(ctx *ProcessorContext, req *model.Request) error

func (f RequestProcessorFunc) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	return f(ctx, req)
}

// ResponseProcessorFunc adapts a plain function to ResponseProcessor.
type ResponseProcessorFunc func(ctx *ProcessorContext, req *model.Request, resp *model.Response) error

func (f ResponseProcessorFunc) ProcessResponse(ctx *ProcessorContext, req *model.Request, resp *model.Response) error {
	return f(ctx, req, resp)
}

// Pipeline is the ordered chain of request/response processors a Flow
// runs on every turn. The default pipeline (NewPipeline) mirrors the
// stages of the turn loop: instruction resolution,
// history reconstruction, tool declaration, generation config, then
// (on the way back) structured-output validation.
type Pipeline struct {
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
}

// NewPipeline builds the default processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		requestProcessors: []RequestProcessor{
			&instructionRequestProcessor{},
			&contentsRequestProcessor{},
			&toolsRequestProcessor{},
			&generateConfigRequestProcessor{},
		},
		responseProcessors: []ResponseProcessor{
			&structuredOutputResponseProcessor{},
		},
	}
}

// AddRequestProcessor appends a processor to the request pipeline.
func (p *Pipeline) AddRequestProcessor(rp RequestProcessor) {
	p.requestProcessors = append(p.requestProcessors, rp)
}

// AddResponseProcessor appends a processor to the response pipeline.
func (p *Pipeline) AddResponseProcessor(rp ResponseProcessor) {
	p.responseProcessors = append(p.responseProcessors, rp)
}

// ProcessRequest runs every request processor in order.
func (p *Pipeline) ProcessRequest(ctx *ProcessorContext, req *model.Request) error {
	for _, proc := range p.requestProcessors {
		if err := proc.ProcessRequest(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// ProcessResponse runs every response processor in order.
func (p *Pipeline) ProcessResponse(ctx *ProcessorContext, req *model.Request, resp *model.Response) error {
	for _, proc := range p.responseProcessors {
		if err := proc.ProcessResponse(ctx, req, resp); err != nil {
			return err
		}
	}
	return nil
}
