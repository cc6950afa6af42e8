package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const minimalConfig = `
auth:
  issuer: https://idp.example.com
  audience: absentia-api
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Auth.JWKSTTL != 30*time.Minute {
		t.Errorf("expected default JWKS TTL 30m, got %v", cfg.Auth.JWKSTTL)
	}
	if cfg.Auth.IdentityCacheSize != 1024 {
		t.Errorf("expected default cache size 1024, got %d", cfg.Auth.IdentityCacheSize)
	}
	if cfg.Leave.DefaultEntitlements["vacation"] != 25 {
		t.Errorf("expected default vacation entitlement 25, got %d", cfg.Leave.DefaultEntitlements["vacation"])
	}
	if cfg.IsProduction() {
		t.Error("default environment must not be production")
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
auth:
  issuer: https://idp.example.com
  audience: absentia-api
  identity_cache_ttl: 2m
environment: prod
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Auth.IdentityCacheTTL != 2*time.Minute {
		t.Errorf("expected cache TTL 2m, got %v", cfg.Auth.IdentityCacheTTL)
	}
	if !cfg.IsProduction() {
		t.Error("expected production environment")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, minimalConfig+`
database:
  postgres:
    password: ${TEST_DB_PASSWORD}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.Postgres.Password != "s3cret" {
		t.Errorf("expected expanded password, got %q", cfg.Database.Postgres.Password)
	}
}

func TestLoad_RequiresIssuerAndAudience(t *testing.T) {
	if _, err := Load(writeConfig(t, `
auth:
  audience: absentia-api
`)); err == nil {
		t.Error("expected error for missing issuer")
	}

	if _, err := Load(writeConfig(t, `
auth:
  issuer: https://idp.example.com
`)); err == nil {
		t.Error("expected error for missing audience")
	}
}

func TestFileExists(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	if !fileExists(path) {
		t.Error("expected true for an existing file")
	}
	if fileExists(t.TempDir()) {
		t.Error("expected false for a directory")
	}
	// Statting a path routed through a regular file fails with ENOTDIR,
	// which is not ErrNotExist; it must still report false without panicking
	if fileExists(filepath.Join(path, "nested.yaml")) {
		t.Error("expected false for a path under a regular file")
	}
}

func TestResolvedJWKSURL(t *testing.T) {
	a := AuthConfig{Issuer: "https://idp.example.com"}
	if got := a.ResolvedJWKSURL(); got != "https://idp.example.com/.well-known/jwks.json" {
		t.Errorf("expected well-known default, got %q", got)
	}

	a.JWKSURL = "https://keys.example.com/jwks"
	if got := a.ResolvedJWKSURL(); got != "https://keys.example.com/jwks" {
		t.Errorf("expected override, got %q", got)
	}
}
