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

package checkpoint

import (
	"fmt"
	"time"
)

// Strategy selects when checkpoints are taken.
type Strategy string

const (
	// StrategyEvent checkpoints on specific events (tool approval,
	// errors).
	StrategyEvent Strategy = "event"

	// StrategyInterval checkpoints every N iterations.
	StrategyInterval Strategy = "interval"

	// StrategyHybrid combines event and interval checkpointing.
	StrategyHybrid Strategy = "hybrid"
)

// defaultRecoveryTimeout bounds how old a checkpoint can be and still
// be resumed.
const defaultRecoveryTimeout = time.Hour

// Config controls checkpoint creation. Everything is off until enabled
// explicitly; the Should* accessors below resolve the tri-state flags.
//
// Example YAML:
//
//	checkpoint:
//	  enabled: true
//	  strategy: hybrid
//	  interval: 5
//	  after_tools: true
//	  before_llm: false
//	  recovery:
//	    auto_resume: true
//	    auto_resume_hitl: false
//	    timeout: 3600
type Config struct {
	// Enabled turns checkpointing on.
	Enabled *bool `yaml:"enabled,omitempty"`

	// Strategy is "event", "interval" or "hybrid".
	Strategy Strategy `yaml:"strategy,omitempty"`

	// Interval checkpoints every N iterations (interval and hybrid
	// strategies).
	Interval int `yaml:"interval,omitempty"`

	// AfterTools checkpoints after tool executions complete.
	AfterTools *bool `yaml:"after_tools,omitempty"`

	// BeforeLLM checkpoints before LLM API calls.
	BeforeLLM *bool `yaml:"before_llm,omitempty"`

	// Recovery controls startup recovery.
	Recovery *RecoveryConfig `yaml:"recovery,omitempty"`
}

// RecoveryConfig controls what happens to interrupted tasks on startup.
type RecoveryConfig struct {
	// AutoResume resumes interrupted tasks automatically.
	AutoResume *bool `yaml:"auto_resume,omitempty"`

	// AutoResumeHITL extends auto-resume to INPUT_REQUIRED tasks; off,
	// those wait for explicit user action.
	AutoResumeHITL *bool `yaml:"auto_resume_hitl,omitempty"`

	// Timeout is the maximum checkpoint age in seconds; older
	// checkpoints are expired and marked FAILED.
	Timeout int `yaml:"timeout,omitempty"`
}

func (c *Config) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = boolPtr(false)
	}
	if c.Strategy == "" {
		c.Strategy = StrategyEvent
	}
	if c.AfterTools == nil {
		c.AfterTools = boolPtr(false)
	}
	if c.BeforeLLM == nil {
		c.BeforeLLM = boolPtr(false)
	}
	if c.Recovery == nil {
		c.Recovery = &RecoveryConfig{}
	}
	c.Recovery.SetDefaults()
}

func (c *RecoveryConfig) SetDefaults() {
	if c.AutoResume == nil {
		c.AutoResume = boolPtr(false)
	}
	if c.AutoResumeHITL == nil {
		c.AutoResumeHITL = boolPtr(false)
	}
	if c.Timeout == 0 {
		c.Timeout = int(defaultRecoveryTimeout / time.Second)
	}
}

func boolPtr(b bool) *bool { return &b }

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Strategy {
	case "", StrategyEvent, StrategyInterval, StrategyHybrid:
	default:
		return fmt.Errorf("invalid checkpoint strategy '%s' (valid: event, interval, hybrid)", c.Strategy)
	}
	if c.Interval < 0 {
		return fmt.Errorf("checkpoint interval must be non-negative")
	}
	if c.Recovery != nil {
		if err := c.Recovery.Validate(); err != nil {
			return fmt.Errorf("recovery config: %w", err)
		}
	}
	return nil
}

// Validate checks the recovery section.
func (c *RecoveryConfig) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// IsEnabled reports whether checkpointing is on.
func (c *Config) IsEnabled() bool {
	return c != nil && c.Enabled != nil && *c.Enabled
}

// ShouldCheckpointAfterTools reports whether to checkpoint after tool
// execution.
func (c *Config) ShouldCheckpointAfterTools() bool {
	return c.IsEnabled() && c.AfterTools != nil && *c.AfterTools
}

// ShouldCheckpointBeforeLLM reports whether to checkpoint before LLM
// calls.
func (c *Config) ShouldCheckpointBeforeLLM() bool {
	return c.IsEnabled() && c.BeforeLLM != nil && *c.BeforeLLM
}

// ShouldCheckpointInterval reports whether interval checkpointing is
// active.
func (c *Config) ShouldCheckpointInterval() bool {
	return c.IsEnabled() &&
		(c.Strategy == StrategyInterval || c.Strategy == StrategyHybrid) &&
		c.Interval > 0
}

// ShouldCheckpointAtIteration reports whether the given iteration lands
// on a checkpoint boundary.
func (c *Config) ShouldCheckpointAtIteration(iteration int) bool {
	if !c.ShouldCheckpointInterval() {
		return false
	}
	return iteration > 0 && iteration%c.Interval == 0
}

// GetRecoveryTimeout returns the recovery timeout as a duration.
func (c *Config) GetRecoveryTimeout() time.Duration {
	if c == nil || c.Recovery == nil || c.Recovery.Timeout <= 0 {
		return defaultRecoveryTimeout
	}
	return time.Duration(c.Recovery.Timeout) * time.Second
}

// ShouldAutoResume reports whether to resume interrupted tasks on
// startup.
func (c *Config) ShouldAutoResume() bool {
	return c.IsEnabled() && c.Recovery != nil && c.Recovery.AutoResume != nil && *c.Recovery.AutoResume
}

// ShouldAutoResumeHITL reports whether auto-resume covers
// INPUT_REQUIRED tasks.
func (c *Config) ShouldAutoResumeHITL() bool {
	return c.IsEnabled() && c.Recovery != nil && c.Recovery.AutoResumeHITL != nil && *c.Recovery.AutoResumeHITL
}
