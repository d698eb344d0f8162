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

// Package utils provides utility functions for v2.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnsureLoomDir ensures the .loom directory exists at the given base path.
// If basePath is empty or ".", it creates ./.loom in the current directory.
// Otherwise, it creates {basePath}/.loom.
//
// This is used by various facilities that need to store data in .loom:
// - Tasks database: ./.loom/tasks.db
// - Document store index state: {sourcePath}/.loom/index_state_*.json
// - Checkpoints: {sourcePath}/.loom/checkpoints/
// - Vector stores: {sourcePath}/.loom/vectors/
//
// Returns the full path to the .loom directory and any error.
func EnsureLoomDir(basePath string) (string, error) {
	var loomDir string
	if basePath == "" || basePath == "." {
		// Root-level .loom directory (for tasks.db, etc.)
		loomDir = ".loom"
	} else {
		// Source-specific .loom directory (for document stores, checkpoints)
		loomDir = filepath.Join(basePath, ".loom")
	}

	if err := os.MkdirAll(loomDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create .loom directory at '%s': %w", loomDir, err)
	}

	return loomDir, nil
}

// DefaultConfigPath is where zero-config mode reads and writes the
// generated configuration file.
func DefaultConfigPath() string {
	return filepath.Join(".loom", "loom.yaml")
}

// DefaultDatabasePath is the default SQLite location for storage
// backends that persist locally.
func DefaultDatabasePath() string {
	return filepath.Join(".loom", "loom.db")
}
