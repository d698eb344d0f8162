package runtime

import (
	"testing"

	"github.com/loomkit/loom/pkg/config"
	"github.com/loomkit/loom/pkg/session"
)

func TestNewWithEmptyConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	rt, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if rt == nil {
		t.Fatal("New() returned nil runtime")
	}
	if rt.SessionService() == nil {
		t.Error("SessionService() returned nil, want in-memory default")
	}

	if err := rt.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewSessionServiceDefaultsToInMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	svc, err := NewSessionService(cfg, nil)
	if err != nil {
		t.Fatalf("NewSessionService() error = %v", err)
	}
	if svc == nil {
		t.Fatal("NewSessionService() returned nil")
	}
}

func TestNewSessionServiceRejectsUnknownDatabase(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Sessions: &config.SessionsConfig{
				Backend:  config.StorageBackendSQL,
				Database: "missing",
			},
		},
	}

	if _, err := NewSessionService(cfg, nil); err == nil {
		t.Fatal("expected error for undefined database reference")
	}
}

func TestWithSessionServiceOverride(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()

	custom := session.InMemoryService()
	rt, err := New(cfg, WithSessionService(custom))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close()

	if rt.SessionService() != custom {
		t.Error("WithSessionService override was not used")
	}
}
