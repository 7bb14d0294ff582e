package internal

import (
	"strings"
	"testing"
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
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Grading.Enabled() {
		t.Error("grading should be disabled without base_url")
	}
	if cfg.Grading.SubmitLimit != 15000 {
		t.Errorf("submit limit = %d", cfg.Grading.SubmitLimit)
	}
}

func TestStorageConfig_EmptyBackendDefaultsFS(t *testing.T) {
	cfg := StorageConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to fs: %v", err)
	}
	if cfg.Backend != StorageBackendFS {
		t.Errorf("backend = %q", cfg.Backend)
	}
}

func TestStorageConfig_S3RequiresBucket(t *testing.T) {
	cfg := StorageConfig{Backend: "s3", S3: S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("s3 without bucket should fail")
	}
	cfg.S3.Bucket = "labs"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("complete s3 config should pass: %v", err)
	}
}

func TestStorageConfig_UnknownBackend(t *testing.T) {
	cfg := StorageConfig{Backend: "ftp"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestGradingConfig_InvalidURL(t *testing.T) {
	cfg := GradingConfig{BaseURL: "not a url"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("invalid base_url should fail")
	}
	cfg.BaseURL = "http://localhost:8000"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid base_url: %v", err)
	}
	if !cfg.Enabled() {
		t.Error("grading should be enabled")
	}
}

func TestCacheConfig_NegativeSize(t *testing.T) {
	cfg := CacheConfig{Size: -1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("negative cache size should fail")
	}
}
