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

import (
	"path/filepath"

	"github.com/joho/godotenv"
)

// BoolPtr returns a pointer to b, for the tri-state *bool config fields
// where nil means "unset".
func BoolPtr(b bool) *bool {
	return &b
}

// BoolValue dereferences a tri-state *bool, falling back to def when
// unset.
func BoolValue(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// LoadDotEnv overlays ./.env onto the process environment. A missing
// file is not an error; explicit environment variables always win.
func LoadDotEnv() error {
	return LoadEnvFiles()
}

// LoadDotEnvForConfig overlays the .env file sitting next to the given
// config file, then the working directory's, so per-project secrets
// resolve no matter where the process started.
func LoadDotEnvForConfig(configPath string) error {
	if configPath != "" {
		if dir := filepath.Dir(configPath); dir != "" && dir != "." {
			// Errors other than absence would also surface on the
			// working-directory load below; ignore here.
			_ = godotenv.Load(filepath.Join(dir, ".env"))
		}
	}
	return LoadEnvFiles()
}
