// Package config loads settings from a JSON file backend with ASKDOCS_*
// environment overrides on top of built-in defaults.
package config

import "fmt"

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Storage   StorageConfig
	Chunking  ChunkingConfig
	Retrieval RetrievalConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type RetrievalConfig struct {
	TopK int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4000,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/askdocs/config.json, then applies ASKDOCS_* environment
// overrides, then validates the result.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("invalid config: ollama.base_url is empty")
	}
	if c.Ollama.ChatModel == "" {
		return fmt.Errorf("invalid config: ollama.chat_model is empty")
	}
	if c.Ollama.EmbedModel == "" {
		return fmt.Errorf("invalid config: ollama.embed_model is empty")
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("invalid config: chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("invalid config: chunking.overlap %d must be in [0, %d)", c.Chunking.Overlap, c.Chunking.Size)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("invalid config: retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}
