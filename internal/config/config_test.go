package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CapsuleMaxChars != DefaultConfig().CapsuleMaxChars {
		t.Fatalf("CapsuleMaxChars = %d, want %d", cfg.CapsuleMaxChars, DefaultConfig().CapsuleMaxChars)
	}
	if cfg.DBPath != filepath.Join(tmpDir, "katha.db") {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.MediaDir != filepath.Join(tmpDir, "media") {
		t.Errorf("MediaDir = %q", cfg.MediaDir)
	}
	if cfg.AITimeout() != 30*time.Second {
		t.Errorf("AITimeout = %s", cfg.AITimeout())
	}
	if cfg.AutosaveInterval() != 2*time.Second {
		t.Errorf("AutosaveInterval = %s", cfg.AutosaveInterval())
	}
}

func TestLoad_YAML(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "config.yaml", `
capsule_max_chars: 500
log_format: json
storage: s3
s3_bucket: katha-audio
ai_timeout_seconds: 10
disabled_tools:
  - unlock_milestone
audio_hosts:
  - cdn.katha.example
`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CapsuleMaxChars != 500 {
		t.Errorf("CapsuleMaxChars = %d, want 500", cfg.CapsuleMaxChars)
	}
	if cfg.LogFormat != "json" || cfg.Storage != "s3" || cfg.S3Bucket != "katha-audio" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.AITimeout() != 10*time.Second {
		t.Errorf("AITimeout = %s", cfg.AITimeout())
	}
	if len(cfg.DisabledTools) != 1 || cfg.DisabledTools[0] != "unlock_milestone" {
		t.Errorf("DisabledTools = %v", cfg.DisabledTools)
	}
	if len(cfg.AudioHosts) != 1 || cfg.AudioHosts[0] != "cdn.katha.example" {
		t.Errorf("AudioHosts = %v", cfg.AudioHosts)
	}
	// Unset fields keep defaults
	if cfg.PolishModel != DefaultPolishModel {
		t.Errorf("PolishModel = %q", cfg.PolishModel)
	}
}

func TestLoad_JSONStillAccepted(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "config.json", `{"capsule_max_chars": 700, "disabled_types": ["prompt"]}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CapsuleMaxChars != 700 {
		t.Errorf("CapsuleMaxChars = %d, want 700", cfg.CapsuleMaxChars)
	}
	if len(cfg.DisabledTypes) != 1 || cfg.DisabledTypes[0] != "prompt" {
		t.Errorf("DisabledTypes = %v", cfg.DisabledTypes)
	}
}

func TestLoad_YAMLPreferredOverJSON(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "config.yaml", "addr: \":9000\"\n")
	writeConfig(t, tmpDir, "config.json", `{"addr": ":7000"}`)

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	writeConfig(t, tmpDir, "config.yaml", "capsule_max_chars: [not, an, int]\n")

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KATHA_JWT_SECRET":         "s3cret",
		"ANTHROPIC_API_KEY":        "fallback-key",
		"KATHA_OPENAI_API_KEY":     "openai-katha",
		"OPENAI_API_KEY":           "openai-plain",
		"KATHA_AI_TIMEOUT_SECONDS": "15",
		"KATHA_CAPSULE_MAX_CHARS":  "not-a-number",
	}
	cfg := DefaultConfig()
	ApplyEnv(cfg, func(k string) string { return env[k] })

	if cfg.JWTSecret != "s3cret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.AnthropicAPIKey != "fallback-key" {
		t.Errorf("AnthropicAPIKey = %q", cfg.AnthropicAPIKey)
	}
	if cfg.OpenAIAPIKey != "openai-katha" {
		t.Errorf("OpenAIAPIKey = %q, want KATHA_ variable to win", cfg.OpenAIAPIKey)
	}
	if cfg.AITimeoutSeconds != 15 {
		t.Errorf("AITimeoutSeconds = %d", cfg.AITimeoutSeconds)
	}
	if cfg.CapsuleMaxChars != DefaultConfig().CapsuleMaxChars {
		t.Errorf("CapsuleMaxChars changed by invalid env value: %d", cfg.CapsuleMaxChars)
	}
}

func TestMerge(t *testing.T) {
	base := &Config{CapsuleMaxChars: 100, Addr: ":1", DisabledTools: []string{"a", " b "}}
	overlay := &Config{Addr: ":2", DisabledTools: []string{"b", "c", ""}}

	got := Merge(base, overlay)
	if got.CapsuleMaxChars != 100 {
		t.Errorf("CapsuleMaxChars = %d, want base value", got.CapsuleMaxChars)
	}
	if got.Addr != ":2" {
		t.Errorf("Addr = %q, want overlay value", got.Addr)
	}
	want := []string{"a", "b", "c"}
	if len(got.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", got.DisabledTools, want)
	}
	for i := range want {
		if got.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, got.DisabledTools[i], want[i])
		}
	}
	if Merge(&Config{}, &Config{}).DisabledTypes != nil {
		t.Error("empty merge should yield nil slice")
	}
}
