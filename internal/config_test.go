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

func TestEmbedConfig_NegativeValuesRejected(t *testing.T) {
	tests := []struct {
		name string
		cfg  EmbedConfig
	}{
		{"max size", EmbedConfig{MaxSizeMB: -1}},
		{"max width", EmbedConfig{MaxWidth: -10}},
		{"max height", EmbedConfig{MaxHeight: -10}},
		{"concurrency", EmbedConfig{Concurrency: -2}},
		{"fetch timeout", EmbedConfig{FetchTimeoutSeconds: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("negative value should fail validation")
			}
		})
	}
}

func TestEmbedConfig_OutOfRangeQualityPassesValidation(t *testing.T) {
	// The rewriter corrects a bad scale at runtime; validation must not
	// turn it into a hard failure.
	cfg := EmbedConfig{Quality: 42}
	if err := cfg.Validate(); err != nil {
		t.Errorf("out-of-range quality should not fail validation: %v", err)
	}
}

func TestEmbedConfig_Options(t *testing.T) {
	cfg := EmbedConfig{
		Quality:             3,
		MaxSizeMB:           2,
		MaxWidth:            800,
		MaxHeight:           600,
		BasePath:            "/notes",
		Yarle:               true,
		Concurrency:         8,
		FetchTimeoutSeconds: 10,
	}

	opts := cfg.Options("")
	if opts.BasePath != "/notes" {
		t.Errorf("BasePath = %q, want configured value", opts.BasePath)
	}
	if opts.QualityScale != 3 || opts.MaxSizeMB != 2 || !opts.YarleMode {
		t.Errorf("opts = %+v", opts)
	}
	if opts.FetchTimeout != 10*time.Second {
		t.Errorf("FetchTimeout = %v", opts.FetchTimeout)
	}

	opts = cfg.Options("/override")
	if opts.BasePath != "/override" {
		t.Errorf("BasePath = %q, want override", opts.BasePath)
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

func TestNewDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.Embed.Quality != 5 || cfg.Embed.MaxSizeMB != 10 {
		t.Errorf("embed defaults = %+v", cfg.Embed)
	}
}
