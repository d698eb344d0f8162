package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// fakeValidator accepts exactly one token and returns fixed claims.
type fakeValidator struct {
	token  string
	claims *Claims
}

func (f *fakeValidator) ValidateToken(ctx context.Context, token string) (*Claims, error) {
	if token != f.token {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidToken)
	}
	return f.claims, nil
}

func (f *fakeValidator) Close() error { return nil }

func newFakeValidator() *fakeValidator {
	return &fakeValidator{
		token: "good-token",
		claims: &Claims{
			Subject:  "user-123",
			Email:    "ada@example.com",
			Role:     "admin",
			TenantID: "tenant-1",
		},
	}
}

func claimsEchoHandler(t *testing.T, wantSubject string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			t.Error("handler reached without claims in context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if claims.Subject != wantSubject {
			t.Errorf("claims subject = %q, want %q", claims.Subject, wantSubject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	validator := newFakeValidator()
	handler := Middleware(validator)(claimsEchoHandler(t, "user-123"))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer token", "Bearer good-token", http.StatusOK},
		{"valid raw token", "good-token", http.StatusOK},
		{"invalid token", "Bearer bad-token", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/agents", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestMiddlewareWithExclusions(t *testing.T) {
	validator := newFakeValidator()
	open := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := MiddlewareWithExclusions(validator, []string{"/health", "/.well-known/agent.json"})(open)

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{"excluded path without token", "/health", "", http.StatusOK},
		{"excluded path trailing slash", "/health/", "", http.StatusOK},
		{"excluded discovery document", "/.well-known/agent.json", "", http.StatusOK},
		{"protected path without token", "/v1/agents", "", http.StatusUnauthorized},
		{"protected path with token", "/v1/agents", "Bearer good-token", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	validator := newFakeValidator()
	protected := Middleware(validator)(RequireRole("admin")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin request status = %d, want %d", rec.Code, http.StatusOK)
	}

	denied := Middleware(validator)(RequireRole("owner")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	)))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	denied.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong-role request status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireTenant(t *testing.T) {
	validator := newFakeValidator()
	handler := Middleware(validator)(RequireTenant("tenant-1")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("same-tenant status = %d, want %d", rec.Code, http.StatusOK)
	}

	other := Middleware(validator)(RequireTenant("tenant-9")(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) },
	)))
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	other.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("cross-tenant status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestOptionalMiddleware(t *testing.T) {
	validator := newFakeValidator()

	var sawClaims bool
	handler := OptionalMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawClaims = ClaimsFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	}))

	// Anonymous request proceeds without claims.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || sawClaims {
		t.Errorf("anonymous: status = %d, sawClaims = %v", rec.Code, sawClaims)
	}

	// Valid token attaches claims.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !sawClaims {
		t.Errorf("authenticated: status = %d, sawClaims = %v", rec.Code, sawClaims)
	}

	// Invalid token is rejected outright.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestNewTokenProvider(t *testing.T) {
	tests := []struct {
		name     string
		credType CredentialType
		token    string
		apiKey   string
		username string
		password string
		want     string
		wantErr  bool
	}{
		{"bearer", CredentialTypeBearer, "tok", "", "", "", "Bearer tok", false},
		{"bearer missing token", CredentialTypeBearer, "", "", "", "", "", true},
		{"api key", CredentialTypeAPIKey, "", "key-1", "", "", "key-1", false},
		{"basic", CredentialTypeBasic, "", "", "u", "p", "Basic dTpw", false},
		{"basic missing password", CredentialTypeBasic, "", "", "u", "", "", true},
		{"unknown type", CredentialType("ldap"), "", "", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewTokenProvider(tt.credType, tt.token, tt.apiKey, tt.username, tt.password)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := provider()
			if err != nil {
				t.Fatalf("provider() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("provider() = %q, want %q", got, tt.want)
			}
		})
	}
}
