package config

import (
	"testing"
)

func TestGetAPIKeyFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	key, err := GetAPIKey(nil)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-from-env" {
		t.Errorf("key = %q", key)
	}
	if src := GetAPIKeySource(nil); src != KeySourceEnv {
		t.Errorf("source = %s", src)
	}
}

func TestGetAPIKeyFromConfig(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	cfg.Anthropic.APIKey = "sk-ant-from-config"
	key, err := GetAPIKey(cfg)
	if err != nil {
		t.Fatalf("GetAPIKey: %v", err)
	}
	if key != "sk-ant-from-config" {
		t.Errorf("key = %q", key)
	}
	if src := GetAPIKeySource(cfg); src != KeySourceConfig {
		t.Errorf("source = %s", src)
	}
}

func TestGetAPIKeyMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	if _, err := GetAPIKey(Default()); err == nil {
		t.Fatal("expected ErrNoAPIKey")
	}
}

func TestValidateAPIKey(t *testing.T) {
	if err := ValidateAPIKey("sk-ant-api03-abcdefghij"); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := ValidateAPIKey("bad-prefix-key-value"); err == nil {
		t.Error("bad prefix accepted")
	}
	if err := ValidateAPIKey(""); err == nil {
		t.Error("empty key accepted")
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := MaskAPIKey(""); got != "(not set)" {
		t.Errorf("mask = %q", got)
	}
	if got := MaskAPIKey("short"); got != "***" {
		t.Errorf("mask = %q", got)
	}
	masked := MaskAPIKey("sk-ant-REDACTED")
	if masked != "sk-ant-...mnop" {
		t.Errorf("mask = %q", masked)
	}
}
