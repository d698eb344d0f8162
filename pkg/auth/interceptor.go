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

	"github.com/a2aproject/a2a-go/a2asrv"
)

// Interceptor bridges validated HTTP claims to a2a-go's call context.
// Token validation happens in the HTTP middleware; Before only lifts the
// resulting Claims onto CallContext.User so executors and agents can
// read the caller's identity.
type Interceptor struct {
	// RequireAuth, when true, rejects calls that reach the handler
	// without claims. A safety net behind the middleware.
	RequireAuth bool
}

// NewInterceptor creates an auth interceptor.
func NewInterceptor(requireAuth bool) *Interceptor {
	return &Interceptor{RequireAuth: requireAuth}
}

// Before runs ahead of each request handler method.
func (i *Interceptor) Before(ctx context.Context, callCtx *a2asrv.CallContext, req *a2asrv.Request) (context.Context, error) {
	claims := ClaimsFromContext(ctx)

	if claims != nil {
		callCtx.User = &AuthenticatedUser{claims: claims}
	} else if i.RequireAuth {
		return ctx, ErrUnauthorized
	}

	return ctx, nil
}

// After runs following each request handler method.
func (i *Interceptor) After(ctx context.Context, callCtx *a2asrv.CallContext, resp *a2asrv.Response) error {
	return nil
}

var _ a2asrv.CallInterceptor = (*Interceptor)(nil)

// AuthenticatedUser exposes validated Claims through a2asrv.User.
type AuthenticatedUser struct {
	claims *Claims
}

// Name returns the user's subject.
func (u *AuthenticatedUser) Name() string {
	if u.claims == nil {
		return ""
	}
	return u.claims.Subject
}

// Authenticated reports true; an AuthenticatedUser only exists for
// validated requests.
func (u *AuthenticatedUser) Authenticated() bool {
	return true
}

// Claims returns the full claim set.
func (u *AuthenticatedUser) Claims() *Claims {
	return u.claims
}

// Email returns the user's email address.
func (u *AuthenticatedUser) Email() string {
	if u.claims == nil {
		return ""
	}
	return u.claims.Email
}

// Role returns the user's role.
func (u *AuthenticatedUser) Role() string {
	if u.claims == nil {
		return ""
	}
	return u.claims.Role
}

// TenantID returns the user's tenant.
func (u *AuthenticatedUser) TenantID() string {
	if u.claims == nil {
		return ""
	}
	return u.claims.TenantID
}

var _ a2asrv.User = (*AuthenticatedUser)(nil)

// UserFromCallContext extracts the AuthenticatedUser from a call
// context, or nil when the call is anonymous.
func UserFromCallContext(callCtx *a2asrv.CallContext) *AuthenticatedUser {
	if callCtx == nil || callCtx.User == nil {
		return nil
	}
	if user, ok := callCtx.User.(*AuthenticatedUser); ok {
		return user
	}
	return nil
}

// ClaimsFromCallContext extracts Claims from a call context, or nil when
// the call is anonymous.
func ClaimsFromCallContext(callCtx *a2asrv.CallContext) *Claims {
	user := UserFromCallContext(callCtx)
	if user == nil {
		return nil
	}
	return user.Claims()
}
