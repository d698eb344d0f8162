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

package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// IdentifierFunc maps an HTTP request to the identity whose quota it
// consumes.
type IdentifierFunc func(r *http.Request) (identifier string, scope Scope)

// DefaultIdentifierFunc charges the session named by X-Session-ID, then
// the user named by X-User-ID (set by the auth middleware), then the
// remote address as a last resort.
func DefaultIdentifierFunc(r *http.Request) (string, Scope) {
	if sessionID := r.Header.Get("X-Session-ID"); sessionID != "" {
		return sessionID, ScopeSession
	}
	if userID := r.Header.Get("X-User-ID"); userID != "" {
		return userID, ScopeUser
	}
	return r.RemoteAddr, ScopeSession
}

// MiddlewareConfig configures the HTTP rate-limiting middleware.
type MiddlewareConfig struct {
	// Limiter enforces the rules. Nil disables the middleware entirely.
	Limiter RateLimiter

	// IdentifierFunc maps requests to identities; nil uses
	// DefaultIdentifierFunc.
	IdentifierFunc IdentifierFunc

	// TokenEstimator pre-charges an estimated token count per request.
	// Nil charges zero tokens, leaving only count-based rules active
	// at the HTTP layer (the model wrapper records real tokens).
	TokenEstimator func(r *http.Request) int64

	// ExcludedPaths bypass rate limiting (health checks, metrics).
	ExcludedPaths []string

	// OnLimited renders the denial; nil sends the standard 429 JSON
	// body with usage details.
	OnLimited func(w http.ResponseWriter, r *http.Request, result *CheckResult)
}

// Middleware enforces rate limits on every non-excluded request. A
// limiter error fails open: an unreachable usage store should degrade
// service quality, not availability.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	if cfg.IdentifierFunc == nil {
		cfg.IdentifierFunc = DefaultIdentifierFunc
	}
	if cfg.OnLimited == nil {
		cfg.OnLimited = defaultOnLimited
	}

	excludedPaths := make(map[string]bool, len(cfg.ExcludedPaths))
	for _, path := range cfg.ExcludedPaths {
		excludedPaths[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			identifier, scope := cfg.IdentifierFunc(r)
			if identifier == "" {
				next.ServeHTTP(w, r)
				return
			}

			var tokenCount int64
			if cfg.TokenEstimator != nil {
				tokenCount = cfg.TokenEstimator(r)
			}

			ctx := r.Context()
			result, err := cfg.Limiter.CheckAndRecord(ctx, scope, identifier, tokenCount, 1)
			if err != nil {
				slog.Error("Rate limit check failed", "error", err, "identifier", identifier)
				next.ServeHTTP(w, r)
				return
			}

			// Downstream handlers can read the verdict off the context.
			r = r.WithContext(context.WithValue(ctx, rateLimitUsageKey{}, result))

			if !result.Allowed {
				cfg.OnLimited(w, r, result)
				return
			}

			addRateLimitHeaders(w, result)
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitUsageKey is the context key for the check result.
type rateLimitUsageKey struct{}

// UsageFromContext returns the request's rate-limit verdict, or nil
// when the middleware did not run.
func UsageFromContext(ctx context.Context) *CheckResult {
	if result, ok := ctx.Value(rateLimitUsageKey{}).(*CheckResult); ok {
		return result
	}
	return nil
}

// defaultOnLimited sends the standard 429 response: Retry-After and
// X-RateLimit-* headers plus a JSON body detailing every rule's usage.
func defaultOnLimited(w http.ResponseWriter, r *http.Request, result *CheckResult) {
	w.Header().Set("Content-Type", "application/json")
	if result.RetryAfter != nil && *result.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(result.RetryAfter.Seconds()), 10))
	}
	addRateLimitHeaders(w, result)
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    "rate_limit_exceeded",
			"message": result.Reason,
		},
	}
	if result.RetryAfter != nil {
		response["retry_after_seconds"] = int64(result.RetryAfter.Seconds())
	}
	if len(result.Usages) > 0 {
		usages := make([]map[string]interface{}, len(result.Usages))
		for i, u := range result.Usages {
			usages[i] = map[string]interface{}{
				"type":       u.LimitType,
				"window":     u.Window,
				"current":    u.Current,
				"limit":      u.Limit,
				"remaining":  u.Remaining,
				"percentage": u.Percentage,
				"resets_at":  u.WindowEnd.Format(time.RFC3339),
			}
		}
		response["usage"] = usages
	}

	_ = json.NewEncoder(w).Encode(response)
}

// addRateLimitHeaders reports the tightest rule — the one closest to
// exhaustion — through the conventional X-RateLimit-* headers.
func addRateLimitHeaders(w http.ResponseWriter, result *CheckResult) {
	if result == nil || len(result.Usages) == 0 {
		return
	}

	var tightest *Usage
	for i := range result.Usages {
		u := &result.Usages[i]
		if tightest == nil || u.Percentage > tightest.Percentage {
			tightest = u
		}
	}

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(tightest.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(tightest.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(tightest.WindowEnd.Unix(), 10))
}

// SimpleMiddleware is Middleware with only a limiter and excluded
// paths, for the common case.
func SimpleMiddleware(limiter RateLimiter, excludedPaths ...string) func(http.Handler) http.Handler {
	return Middleware(MiddlewareConfig{
		Limiter:       limiter,
		ExcludedPaths: excludedPaths,
	})
}
