package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRetryMaxAttemptsClamped(t *testing.T) {
	tests := []struct {
		env  string
		want int
	}{
		{"", 3},
		{"junk", 3},
		{"1", 3},
		{"4", 4},
		{"9", 5},
	}
	for _, tt := range tests {
		t.Setenv("RETRY_MAX_ATTEMPTS", tt.env)
		if got := RetryMaxAttempts(); got != tt.want {
			t.Errorf("RETRY_MAX_ATTEMPTS=%q: got %d, want %d", tt.env, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "LLM_PROVIDER", "RETRY_INITIAL_DELAY_MS", "SESSION_TTL_MINUTES", "PROVIDER_RPS"} {
		t.Setenv(k, "")
	}
	if ServerAddr() != ":8080" {
		t.Errorf("expected :8080, got %s", ServerAddr())
	}
	if LLMProvider() != "gemini" {
		t.Errorf("expected gemini, got %s", LLMProvider())
	}
	if RetryInitialDelay() != time.Second {
		t.Errorf("expected 1s, got %s", RetryInitialDelay())
	}
	if SessionTTL() != time.Hour {
		t.Errorf("expected 1h, got %s", SessionTTL())
	}
	if ProviderRPS() != 0 {
		t.Errorf("expected unlimited outbound rate, got %v", ProviderRPS())
	}
}

func TestLoadReadsEnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("LLM_PROVIDER=ollama\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(envFile+".secret", []byte("GEMINI_API_KEY=from-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("BELIEFGRAPH_ENV", envFile)
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("GEMINI_API_KEY", "")
	os.Unsetenv("LLM_PROVIDER")
	os.Unsetenv("GEMINI_API_KEY")

	if err := Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if LLMProvider() != "ollama" {
		t.Errorf("expected provider from env file, got %s", LLMProvider())
	}
	if os.Getenv("GEMINI_API_KEY") != "from-secret" {
		t.Errorf("expected key from secret sidecar, got %q", os.Getenv("GEMINI_API_KEY"))
	}
}

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(`
providers:
  ollama:
    base_url: http://gpu:11434/v1
    default_model: qwen2.5
  openai:
    default_model: gpt-4.1-mini
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := c.Providers["ollama"]; got.BaseURL != "http://gpu:11434/v1" || got.DefaultModel != "qwen2.5" {
		t.Errorf("unexpected ollama entry: %+v", got)
	}
	if got := c.Providers["openai"]; got.BaseURL != "" || got.DefaultModel != "gpt-4.1-mini" {
		t.Errorf("unexpected openai entry: %+v", got)
	}

	if _, err := ParseCatalog([]byte("providers: [")); err == nil {
		t.Error("expected malformed YAML to fail")
	}

	empty, err := LoadCatalog("")
	if err != nil || len(empty.Providers) != 0 {
		t.Errorf("expected empty catalog, got %+v, %v", empty, err)
	}
}
