package internal

import (
	"strings"
	"testing"
	"time"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Remote.Configured() {
		t.Error("default github backend without repo should be unconfigured")
	}
}

func TestRemoteConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RemoteConfig)
		wantErr string
	}{
		{"owner/name repo", func(c *RemoteConfig) { c.Repo = "acme/prompts" }, ""},
		{"bad repo", func(c *RemoteConfig) { c.Repo = "not-a-repo" }, "owner/name"},
		{"unknown backend", func(c *RemoteConfig) { c.Backend = "gitlab" }, "Backend"},
		{"empty backend defaults", func(c *RemoteConfig) { c.Backend = "" }, ""},
		{"negative ttl", func(c *RemoteConfig) { c.CacheTTL = -time.Second }, "CacheTTL"},
		{"too many versions", func(c *RemoteConfig) { c.MaxVersions = 500 }, "MaxVersions"},
		{"missing root", func(c *RemoteConfig) { c.Root = "" }, "Root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Remote
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestRemoteConfig_MemoryBackendIsConfigured(t *testing.T) {
	cfg := NewDefaultConfig().Remote
	cfg.Backend = BackendMemory
	if !cfg.Configured() {
		t.Error("memory backend should count as configured")
	}
	layout := cfg.Layout()
	if layout.Root != "prompts" || layout.BodyFile != "prompt.md" || layout.MaxVersions != 20 {
		t.Errorf("layout = %+v", layout)
	}
}

func TestBranchConfig_PrefixRequired(t *testing.T) {
	cfg := BranchConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty prefix should fail validation")
	}
}
