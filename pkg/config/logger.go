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

// validLogLevels are the accepted values for LoggerConfig.Level.
var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// LoggerConfig configures logging. CLI flags override environment
// variables, which override this section, which overrides the defaults
// (info level, simple format, stderr).
//
//	logger:
//	  level: info
//	  file: loom.log
//	  format: simple
type LoggerConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level,omitempty"`

	// File is the log destination; empty writes to stderr.
	File string `yaml:"file,omitempty"`

	// Format is "simple" (level + message), "verbose" (time + level +
	// message), or a custom format string. Default: simple.
	Format string `yaml:"format,omitempty"`
}

// SetDefaults applies default values.
func (c *LoggerConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the configuration. Format is unrestricted: custom
// format strings are allowed.
func (c *LoggerConfig) Validate() error {
	if c.Level != "" && !validLogLevels[c.Level] {
		return fmt.Errorf("invalid log level %q (valid: debug, info, warn, error)", c.Level)
	}
	return nil
}
