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

package config

import "fmt"

// rateLimitWindows are the accepted rule windows.
var rateLimitWindows = map[string]bool{
	"minute": true,
	"hour":   true,
	"day":    true,
	"week":   true,
	"month":  true,
}

// RateLimitConfig configures model-usage quotas. Disabled unless
// switched on explicitly.
type RateLimitConfig struct {
	// Enabled turns rate limiting on.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Scope keys usage by "session" or "user".
	Scope string `yaml:"scope,omitempty" json:"scope,omitempty"`

	// Backend stores counters in "memory" or "sql".
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty"`

	// SQLDatabase references a connection from the databases section;
	// required for the sql backend.
	SQLDatabase string `yaml:"sql_database,omitempty" json:"sql_database,omitempty"`

	// Limits are the active rules.
	Limits []RateLimitRule `yaml:"limits,omitempty" json:"limits,omitempty"`
}

// RateLimitRule caps one kind of usage over one window.
type RateLimitRule struct {
	// Type counts "token" usage or request "count".
	Type string `yaml:"type" json:"type"`

	// Window is "minute", "hour", "day", "week" or "month".
	Window string `yaml:"window" json:"window"`

	// Limit is the maximum allowed in the window.
	Limit int64 `yaml:"limit" json:"limit"`
}

// IsEnabled reports whether rate limiting is switched on.
func (c *RateLimitConfig) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// SetDefaults applies default values. An enabled section with no rules
// gets a conservative starter set.
func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.IsEnabled() && len(c.Limits) == 0 {
		c.Limits = []RateLimitRule{
			{Type: "token", Window: "day", Limit: 100000},
			{Type: "count", Window: "minute", Limit: 60},
		}
	}
	if c.Scope == "" {
		c.Scope = "session"
	}
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// Validate checks the configuration; a disabled section is always
// valid.
func (c *RateLimitConfig) Validate() error {
	if !c.IsEnabled() {
		return nil
	}

	if c.Scope != "" && c.Scope != "session" && c.Scope != "user" {
		return fmt.Errorf("invalid rate_limiting.scope '%s', must be 'session' or 'user'", c.Scope)
	}
	if c.Backend != "" && c.Backend != "memory" && c.Backend != "sql" {
		return fmt.Errorf("invalid rate_limiting.backend '%s', must be 'memory' or 'sql'", c.Backend)
	}
	if c.Backend == "sql" && c.SQLDatabase == "" {
		return fmt.Errorf("rate_limiting.backend 'sql' requires 'sql_database' reference")
	}
	if len(c.Limits) == 0 {
		return fmt.Errorf("rate_limiting.limits is required when rate limiting is enabled")
	}

	for i, limit := range c.Limits {
		if err := validateRateLimitRule(i, limit); err != nil {
			return err
		}
	}
	return nil
}

func validateRateLimitRule(index int, limit RateLimitRule) error {
	if limit.Type == "" {
		return fmt.Errorf("rate_limiting.limits[%d].type is required", index)
	}
	if limit.Type != "token" && limit.Type != "count" {
		return fmt.Errorf("invalid rate_limiting.limits[%d].type '%s', must be 'token' or 'count'", index, limit.Type)
	}
	if limit.Window == "" {
		return fmt.Errorf("rate_limiting.limits[%d].window is required", index)
	}
	if !rateLimitWindows[limit.Window] {
		return fmt.Errorf("invalid rate_limiting.limits[%d].window '%s', must be 'minute', 'hour', 'day', 'week', or 'month'", index, limit.Window)
	}
	if limit.Limit <= 0 {
		return fmt.Errorf("rate_limiting.limits[%d].limit must be positive", index)
	}
	return nil
}
