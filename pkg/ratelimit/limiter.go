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
	"fmt"
	"sync"
	"time"
)

// Config holds the limiter's rule set.
type Config struct {
	// Enabled turns enforcement on. A disabled limiter allows
	// everything and records nothing.
	Enabled bool

	// Limits are the rules; a request must clear all of them.
	Limits []LimitRule
}

// LimitRule caps one quantity over one window.
type LimitRule struct {
	// Type is what the rule counts (token or count).
	Type LimitType

	// Window is the rule's time window.
	Window TimeWindow

	// Limit is the window's cap. Must be positive.
	Limit int64
}

// DefaultRateLimiter enforces a rule set against a Store. The limiter's
// own mutex makes CheckAndRecord atomic even over stores without native
// compare-and-set.
type DefaultRateLimiter struct {
	config *Config
	store  Store
	mu     sync.RWMutex
}

// NewRateLimiter validates the rule set and binds it to a store.
func NewRateLimiter(cfg *Config, store Store) (*DefaultRateLimiter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	for i, limit := range cfg.Limits {
		if limit.Type == "" {
			return nil, fmt.Errorf("limit[%d]: type is required", i)
		}
		if limit.Window == "" {
			return nil, fmt.Errorf("limit[%d]: window is required", i)
		}
		if limit.Limit <= 0 {
			return nil, fmt.Errorf("limit[%d]: limit must be positive", i)
		}
	}

	return &DefaultRateLimiter{config: cfg, store: store}, nil
}

// ruleUsage reads one rule's live counter and derives its Usage view,
// treating an expired window as empty.
func (rl *DefaultRateLimiter) ruleUsage(ctx context.Context, scope Scope, identifier string, rule LimitRule) (Usage, error) {
	current, windowEnd, err := rl.store.GetUsage(ctx, scope, identifier, rule.Type, rule.Window)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get usage for %s/%s: %w", rule.Type, rule.Window, err)
	}

	now := time.Now()
	if windowEnd.Before(now) {
		current = 0
		windowEnd = now.Add(rule.Window.Duration())
	}

	remaining := max(rule.Limit-current, 0)

	return Usage{
		LimitType:  rule.Type,
		Window:     rule.Window,
		Current:    current,
		Limit:      rule.Limit,
		WindowEnd:  windowEnd,
		Remaining:  remaining,
		Percentage: float64(current) / float64(rule.Limit) * 100,
	}, nil
}

// Check evaluates every rule without consuming quota.
func (rl *DefaultRateLimiter) Check(ctx context.Context, scope Scope, identifier string) (*CheckResult, error) {
	if !rl.config.Enabled {
		return &CheckResult{Allowed: true}, nil
	}
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.checkUnlocked(ctx, scope, identifier)
}

// Record consumes quota after the fact.
func (rl *DefaultRateLimiter) Record(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) error {
	if !rl.config.Enabled {
		return nil
	}
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.recordUnlocked(ctx, scope, identifier, tokenCount, requestCount)
}

// CheckAndRecord evaluates the rules and, when allowed, consumes quota
// under one lock, so concurrent callers cannot both pass a nearly-full
// window. The returned result reflects the state after recording.
func (rl *DefaultRateLimiter) CheckAndRecord(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) (*CheckResult, error) {
	if !rl.config.Enabled {
		return &CheckResult{Allowed: true}, nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	result, err := rl.checkUnlocked(ctx, scope, identifier)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return result, nil
	}

	if err := rl.recordUnlocked(ctx, scope, identifier, tokenCount, requestCount); err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	return rl.checkUnlocked(ctx, scope, identifier)
}

// GetUsage reports live consumption for every rule.
func (rl *DefaultRateLimiter) GetUsage(ctx context.Context, scope Scope, identifier string) ([]Usage, error) {
	if !rl.config.Enabled {
		return []Usage{}, nil
	}
	if identifier == "" {
		return nil, fmt.Errorf("identifier cannot be empty")
	}

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	usages := make([]Usage, 0, len(rl.config.Limits))
	for _, rule := range rl.config.Limits {
		usage, err := rl.ruleUsage(ctx, scope, identifier, rule)
		if err != nil {
			return nil, err
		}
		usages = append(usages, usage)
	}
	return usages, nil
}

// Reset zeroes an identifier's usage.
func (rl *DefaultRateLimiter) Reset(ctx context.Context, scope Scope, identifier string) error {
	if identifier == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.store.DeleteUsage(ctx, scope, identifier)
}

// ResetExpired drops usage whose windows ended before the given time.
func (rl *DefaultRateLimiter) ResetExpired(ctx context.Context, before time.Time) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.store.DeleteExpired(ctx, before)
}

// checkUnlocked evaluates every rule; callers hold the lock. A rule
// binds only when current usage strictly exceeds its cap — the call
// that lands exactly on the cap still passes, the next one is denied.
func (rl *DefaultRateLimiter) checkUnlocked(ctx context.Context, scope Scope, identifier string) (*CheckResult, error) {
	result := &CheckResult{
		Allowed: true,
		Usages:  make([]Usage, 0, len(rl.config.Limits)),
	}

	var earliestRetry *time.Time
	for _, rule := range rl.config.Limits {
		usage, err := rl.ruleUsage(ctx, scope, identifier, rule)
		if err != nil {
			return nil, err
		}
		result.Usages = append(result.Usages, usage)

		if usage.Current > rule.Limit {
			result.Allowed = false
			if result.Reason == "" {
				result.Reason = fmt.Sprintf("%s limit exceeded for %s window (%d/%d)",
					rule.Type, rule.Window, usage.Current, rule.Limit)
			}
			if earliestRetry == nil || usage.WindowEnd.Before(*earliestRetry) {
				windowEnd := usage.WindowEnd
				earliestRetry = &windowEnd
			}
		}
	}

	if !result.Allowed && earliestRetry != nil {
		if retryDuration := time.Until(*earliestRetry); retryDuration > 0 {
			result.RetryAfter = &retryDuration
		}
	}

	return result, nil
}

// recordUnlocked consumes quota on every rule the amounts apply to;
// callers hold the lock.
func (rl *DefaultRateLimiter) recordUnlocked(ctx context.Context, scope Scope, identifier string, tokenCount int64, requestCount int64) error {
	now := time.Now()

	for _, rule := range rl.config.Limits {
		var amount int64
		switch rule.Type {
		case LimitTypeToken:
			amount = tokenCount
		case LimitTypeCount:
			amount = requestCount
		}
		if amount <= 0 {
			continue
		}

		_, windowEnd, err := rl.store.GetUsage(ctx, scope, identifier, rule.Type, rule.Window)
		if err != nil {
			return fmt.Errorf("failed to get usage for %s/%s: %w", rule.Type, rule.Window, err)
		}

		if windowEnd.Before(now) {
			// Expired window: start a fresh one at this amount.
			windowEnd = now.Add(rule.Window.Duration())
			if err := rl.store.SetUsage(ctx, scope, identifier, rule.Type, rule.Window, amount, windowEnd); err != nil {
				return fmt.Errorf("failed to reset usage for %s/%s: %w", rule.Type, rule.Window, err)
			}
			continue
		}

		if _, _, err := rl.store.IncrementUsage(ctx, scope, identifier, rule.Type, rule.Window, amount); err != nil {
			return fmt.Errorf("failed to increment usage for %s/%s: %w", rule.Type, rule.Window, err)
		}
	}

	return nil
}

// IsEnabled reports whether enforcement is on.
func (rl *DefaultRateLimiter) IsEnabled() bool {
	return rl.config.Enabled
}

// Store exposes the underlying store, for tests.
func (rl *DefaultRateLimiter) Store() Store {
	return rl.store
}
