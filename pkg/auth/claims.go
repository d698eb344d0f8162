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

// Package auth authenticates callers of the HTTP and A2A surfaces.
//
// Token verification lives in TokenValidator (JWT over a cached JWKS);
// the HTTP middleware extracts and validates bearer tokens and stores
// the resulting Claims on the request context; the call interceptor
// lifts those Claims onto the A2A call context so executors see who is
// calling.
//
// Enabled through configuration:
//
//	server:
//	  auth:
//	    enabled: true
//	    jwks_url: "https://auth.example.com/.well-known/jwks.json"
//	    issuer: "https://auth.example.com"
//	    audience: "loom-api"
package auth

import "context"

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

// ClaimsContextKey is where validated claims live on a request context.
const ClaimsContextKey contextKey = "loom_auth_claims"

// Claims is what a validated token yields. The named fields cover the
// common identity providers; everything else the provider put in the
// token lands in Custom.
type Claims struct {
	// Subject uniquely identifies the user (the sub claim).
	Subject string `json:"sub"`

	// Email is the user's email address, when the provider includes it.
	Email string `json:"email,omitempty"`

	// Role drives authorization decisions (RequireRole).
	Role string `json:"role,omitempty"`

	// TenantID partitions multi-tenant deployments (RequireTenant).
	TenantID string `json:"tenant_id,omitempty"`

	// Custom holds all claims not mapped to a field above.
	Custom map[string]any `json:"-"`
}

// GetClaim retrieves a custom claim by key.
func (c *Claims) GetClaim(key string) (any, bool) {
	if c.Custom == nil {
		return nil, false
	}
	val, ok := c.Custom[key]
	return val, ok
}

// GetStringClaim retrieves a custom claim as a string, returning the
// empty string when absent or not a string.
func (c *Claims) GetStringClaim(key string) string {
	val, ok := c.GetClaim(key)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return s
}

// HasRole reports whether the claims carry exactly this role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role
}

// HasAnyRole reports whether the claims carry any of the given roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}

// ClaimsFromContext extracts claims from a context, or nil when the
// request is unauthenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ContextWithClaims returns a context carrying the given claims.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
