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
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator verifies a bearer token and yields its claims. The
// HTTP middleware and the A2A interceptor depend on this interface, not
// on the JWT implementation, so tests can substitute a fake.
type TokenValidator interface {
	// ValidateToken verifies the token and extracts its claims.
	ValidateToken(ctx context.Context, token string) (*Claims, error)

	// Close releases validator resources.
	Close() error
}

// defaultJWKSRefreshInterval bounds how often the validator re-fetches
// the provider's JWKS, trading key-rotation latency for request volume.
const defaultJWKSRefreshInterval = 15 * time.Minute

// reservedClaimKeys are the standard/already-extracted claims that
// ValidateToken excludes from Claims.Custom.
var reservedClaimKeys = map[string]bool{
	"sub": true, "email": true, "role": true, "tenant_id": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true,
}

// JWTValidatorConfig configures a JWTValidator.
type JWTValidatorConfig struct {
	// JWKSURL is the provider's key-set endpoint. Required.
	JWKSURL string

	// Issuer, when non-empty, must match the token's iss claim.
	Issuer string

	// Audience, when non-empty, must appear in the token's aud claim.
	Audience string

	// RefreshInterval bounds JWKS re-fetching. Zero means the default
	// of 15 minutes.
	RefreshInterval time.Duration
}

// JWTValidator validates bearer tokens issued by an external identity
// provider, fetching and caching the provider's JWKS so verification
// never round-trips to the provider per request.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator builds a validator for the given provider, registering
// the JWKS URL with the refresh cache and performing one synchronous
// fetch so construction fails fast on a misconfigured URL rather than on
// the first request.
func NewJWTValidator(cfg JWTValidatorConfig) (*JWTValidator, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks_url is required")
	}
	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = defaultJWKSRefreshInterval
	}

	ctx := context.Background()
	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(refresh)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWTValidator{
		jwksURL:  cfg.JWKSURL,
		cache:    cache,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
	}, nil
}

// ValidateToken verifies signature, expiry, issuer, and audience against
// the cached JWKS, then extracts Claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	options := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), options...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return extractClaims(token), nil
}

// extractClaims pulls the standard fields out of a verified token,
// preserving everything else in Custom so a provider's private claims
// aren't silently discarded.
func extractClaims(token jwt.Token) *Claims {
	claims := &Claims{Subject: token.Subject(), Custom: make(map[string]any)}

	if email, ok := stringClaim(token, "email"); ok {
		claims.Email = email
	}
	if role, ok := stringClaim(token, "role"); ok {
		claims.Role = role
	}
	if tenantID, ok := stringClaim(token, "tenant_id"); ok {
		claims.TenantID = tenantID
	}

	for iter := token.Iterate(context.Background()); iter.Next(context.Background()); {
		pair := iter.Pair()
		key, _ := pair.Key.(string)
		if key == "" || reservedClaimKeys[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}

func stringClaim(token jwt.Token, key string) (string, bool) {
	v, ok := token.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Close is a no-op and the validator stays usable afterwards. The jwk
// cache is bound to a background context, so its refresh goroutine is
// not stopped here.
func (v *JWTValidator) Close() error { return nil }

var _ TokenValidator = (*JWTValidator)(nil)
