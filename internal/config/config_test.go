package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// clearEnvOverrides blanks every ASKDOCS_* variable for the test's duration.
func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnvOverrides(t)

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4000 {
		t.Errorf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "llama3.2" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("Chunking = %+v, want 1000/200", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 4 {
		t.Errorf("Retrieval.TopK = %d, want 4", cfg.Retrieval.TopK)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestFileValues(t *testing.T) {
	clearEnvOverrides(t)

	content := `{
		"server.port": 5000,
		"ollama.base_url": "http://custom:11434",
		"ollama.chat_model": "custom-chat",
		"ollama.embed_model": "custom-embed",
		"storage.data_dir": "/tmp/askdocs-test",
		"chunking.size": 800,
		"chunking.overlap": 100,
		"retrieval.top_k": 6,
		"log.level": "debug"
	}`
	cfg, err := loadWith(newFileBackend(writeTempConfig(t, content)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://custom:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.ChatModel != "custom-chat" {
		t.Errorf("Ollama.ChatModel = %q", cfg.Ollama.ChatModel)
	}
	if cfg.Storage.DataDir != "/tmp/askdocs-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("Chunking = %+v, want 800/100", cfg.Chunking)
	}
	if cfg.Retrieval.TopK != 6 {
		t.Errorf("Retrieval.TopK = %d, want 6", cfg.Retrieval.TopK)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("ASKDOCS_OLLAMA_CHAT_MODEL", "env-model")
	t.Setenv("ASKDOCS_RETRIEVAL_TOP_K", "8")

	cfg, err := loadWith(newFileBackend(writeTempConfig(t, `{"ollama.chat_model": "file-model"}`)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Ollama.ChatModel != "env-model" {
		t.Errorf("Ollama.ChatModel = %q, want env-model", cfg.Ollama.ChatModel)
	}
	if cfg.Retrieval.TopK != 8 {
		t.Errorf("Retrieval.TopK = %d, want 8", cfg.Retrieval.TopK)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{"valid", func(cfg *Config) {}, ""},
		{"bad port", func(cfg *Config) { cfg.Server.Port = 0 }, "server.port"},
		{"empty base url", func(cfg *Config) { cfg.Ollama.BaseURL = "" }, "base_url"},
		{"empty chat model", func(cfg *Config) { cfg.Ollama.ChatModel = "" }, "chat_model"},
		{"empty embed model", func(cfg *Config) { cfg.Ollama.EmbedModel = "" }, "embed_model"},
		{"zero chunk size", func(cfg *Config) { cfg.Chunking.Size = 0 }, "chunking.size"},
		{"overlap equals size", func(cfg *Config) { cfg.Chunking.Overlap = cfg.Chunking.Size }, "chunking.overlap"},
		{"negative overlap", func(cfg *Config) { cfg.Chunking.Overlap = -1 }, "chunking.overlap"},
		{"zero top_k", func(cfg *Config) { cfg.Retrieval.TopK = 0 }, "top_k"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)

	if err := setKey(b, "ollama.chat_model", "mistral"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "server.port", "5000"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "server.port", "not-a-number"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if err := setKey(b, "nonsense.key", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	// Values survive a reload of the backend.
	reloaded := newFileBackend(path)
	clearEnvOverrides(t)
	cfg, err := loadWith(reloaded)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Ollama.ChatModel != "mistral" {
		t.Errorf("Ollama.ChatModel = %q, want mistral", cfg.Ollama.ChatModel)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
}

func TestValidKeys(t *testing.T) {
	keys := ValidKeys()
	if len(keys) != len(specs) {
		t.Fatalf("ValidKeys returned %d keys, want %d", len(keys), len(specs))
	}
}
