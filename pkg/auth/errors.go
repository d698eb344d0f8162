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

package auth

import "errors"

// Sentinel errors the middleware and interceptor branch on. Wrap them
// with %w so errors.Is keeps working through added context.
var (
	// ErrUnauthorized: authentication required but absent.
	ErrUnauthorized = errors.New("unauthorized: authentication required")

	// ErrForbidden: authenticated but lacking permission.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrInvalidToken: the token failed verification.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired: the token's validity window has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrMissingClaims: the token verified but lacks required claims.
	ErrMissingClaims = errors.New("missing required claims")
)
