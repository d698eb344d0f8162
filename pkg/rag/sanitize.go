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

package rag

import "strings"

// injectionPatterns are stripped from user queries before they reach a
// prompt: role markers, instruction-override phrasing, and delimiter
// sequences that try to break out of the surrounding prompt structure.
var injectionPatterns = []string{
	// Role markers that could restructure the conversation.
	"SYSTEM:", "System:", "system:",
	"ASSISTANT:", "Assistant:", "assistant:",
	"USER:", "User:", "user:",

	// Instruction-override attempts.
	"Ignore previous instructions", "ignore previous instructions",
	"Ignore all previous", "ignore all previous",
	"Disregard previous", "disregard previous",

	// Delimiter and fence attacks.
	"---", "===", "***", "```",
}

// sanitizeInput strips prompt-injection patterns from user input before
// it is embedded into a prompt (reranking, HyDE, query expansion).
func sanitizeInput(input string) string {
	sanitized := input
	for _, pattern := range injectionPatterns {
		sanitized = strings.ReplaceAll(sanitized, pattern, "")
	}
	return strings.TrimSpace(sanitized)
}
