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

package auth

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Middleware requires a valid bearer token on every request. The token
// comes from the Authorization header ("Bearer <token>" preferred, raw
// token accepted); validated claims are stored on the request context
// for ClaimsFromContext.
func Middleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "Missing Authorization header", http.StatusUnauthorized)
				return
			}

			tokenString := extractToken(authHeader)
			if tokenString == "" {
				writeAuthError(w, "Invalid Authorization format, expected: Bearer <token>", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), tokenString)
			if err != nil {
				writeAuthError(w, fmt.Sprintf("Invalid token: %s", err.Error()), http.StatusUnauthorized)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MiddlewareWithExclusions behaves like Middleware but skips the named
// paths (health checks, discovery documents and other public endpoints).
// Paths match with or without a trailing slash.
func MiddlewareWithExclusions(validator TokenValidator, excludedPaths []string) func(http.Handler) http.Handler {
	excludeSet := make(map[string]bool, len(excludedPaths))
	for _, path := range excludedPaths {
		excludeSet[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludeSet[r.URL.Path] ||
				excludeSet[strings.TrimSuffix(r.URL.Path, "/")] ||
				excludeSet[r.URL.Path+"/"] {
				next.ServeHTTP(w, r)
				return
			}

			Middleware(validator)(next).ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose claims lack all of the given roles.
// Chain it after Middleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeAuthError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !claims.HasAnyRole(roles...) {
				writeAuthError(w, "Forbidden: insufficient permissions", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenant rejects requests whose claims name a different tenant.
// Chain it after Middleware.
func RequireTenant(tenants ...string) func(http.Handler) http.Handler {
	tenantSet := make(map[string]bool, len(tenants))
	for _, t := range tenants {
		tenantSet[t] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeAuthError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !tenantSet[claims.TenantID] {
				writeAuthError(w, "Forbidden: access denied for this tenant", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OptionalMiddleware validates a token when one is present but lets
// anonymous requests through. A present-but-invalid token is still
// rejected.
func OptionalMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			tokenString := extractToken(authHeader)
			if tokenString == "" {
				writeAuthError(w, "Invalid Authorization format", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(r.Context(), tokenString)
			if err != nil {
				writeAuthError(w, fmt.Sprintf("Invalid token: %s", err.Error()), http.StatusUnauthorized)
				return
			}

			ctx := ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the token out of an Authorization header,
// accepting "Bearer <token>" or a raw token.
func extractToken(authHeader string) string {
	if after, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return after
	}
	return authHeader
}

func writeAuthError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":%q}`, message)
}

// CredentialType identifies the kind of credential used for outbound
// requests to remote agents.
type CredentialType string

const (
	CredentialTypeBearer CredentialType = "bearer"
	CredentialTypeAPIKey CredentialType = "api_key"
	CredentialTypeBasic  CredentialType = "basic"
)

// TokenProvider produces the Authorization value for one outbound
// request.
type TokenProvider func() (string, error)

// NewTokenProvider builds a TokenProvider for the given credential
// configuration.
func NewTokenProvider(credType CredentialType, token, apiKey, username, password string) (TokenProvider, error) {
	switch credType {
	case CredentialTypeBearer:
		if token == "" {
			return nil, fmt.Errorf("bearer token is required")
		}
		return func() (string, error) {
			return "Bearer " + token, nil
		}, nil

	case CredentialTypeAPIKey:
		if apiKey == "" {
			return nil, fmt.Errorf("api_key is required")
		}
		return func() (string, error) {
			return apiKey, nil
		}, nil

	case CredentialTypeBasic:
		if username == "" || password == "" {
			return nil, fmt.Errorf("username and password are required for basic auth")
		}
		return func() (string, error) {
			encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
			return "Basic " + encoded, nil
		}, nil

	default:
		return nil, fmt.Errorf("unsupported credential type: %s (supported: bearer, api_key, basic)", credType)
	}
}
