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

package model

import (
	"context"
	"iter"
	"log/slog"

	"github.com/loomkit/loom/pkg/ratelimit"
)

// IdentifierFunc extracts the rate-limit identifier for a request, for
// example a user or session ID carried in the request metadata.
type IdentifierFunc func(ctx context.Context, req *Request) string

// rateLimitedLLM wraps an LLM and gates every GenerateContent call
// through a ratelimit.RateLimiter. The request is counted before the
// call; actual token usage is recorded after the final response so
// token-based windows reflect what the provider really charged.
type rateLimitedLLM struct {
	inner      LLM
	limiter    ratelimit.RateLimiter
	scope      ratelimit.Scope
	identifier IdentifierFunc
}

// WithRateLimit decorates an LLM with request- and token-based rate
// limiting. identifier may be nil, in which case all requests share one
// bucket.
func WithRateLimit(inner LLM, limiter ratelimit.RateLimiter, scope ratelimit.Scope, identifier IdentifierFunc) LLM {
	if limiter == nil {
		return inner
	}
	if identifier == nil {
		identifier = func(context.Context, *Request) string { return "default" }
	}
	return &rateLimitedLLM{
		inner:      inner,
		limiter:    limiter,
		scope:      scope,
		identifier: identifier,
	}
}

func (l *rateLimitedLLM) Name() string       { return l.inner.Name() }
func (l *rateLimitedLLM) Provider() Provider { return l.inner.Provider() }
func (l *rateLimitedLLM) Close() error       { return l.inner.Close() }

func (l *rateLimitedLLM) GenerateContent(ctx context.Context, req *Request, stream bool) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		id := l.identifier(ctx, req)

		result, err := l.limiter.CheckAndRecord(ctx, l.scope, id, 0, 1)
		if err != nil {
			yield(nil, err)
			return
		}
		if !result.Allowed {
			yield(nil, ratelimit.NewRateLimitError(result))
			return
		}

		var totalTokens int64
		for resp, err := range l.inner.GenerateContent(ctx, req, stream) {
			if resp != nil && !resp.Partial && resp.Usage != nil {
				totalTokens = int64(resp.Usage.TotalTokens)
			}
			if !yield(resp, err) {
				break
			}
		}

		if totalTokens > 0 {
			if err := l.limiter.Record(ctx, l.scope, id, totalTokens, 0); err != nil {
				slog.Warn("failed to record token usage for rate limiting",
					"model", l.inner.Name(), "identifier", id, "error", err)
			}
		}
	}
}

var _ LLM = (*rateLimitedLLM)(nil)
