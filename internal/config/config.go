// Package config handles pipeline configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `json:"data_dir"`

	// Server
	Server ServerConfig `json:"server"`

	// Services
	Qdrant QdrantConfig `json:"qdrant"`
	Ollama OllamaConfig `json:"ollama"`

	// Pipeline tuning
	Pipeline PipelineConfig `json:"pipeline"`
}

// ServerConfig for the HTTP server
type ServerConfig struct {
	Port int    `json:"port"`
	Host string `json:"host"`
}

// QdrantConfig for the executor profile index
type QdrantConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Enabled bool   `json:"enabled"`
}

// OllamaConfig for the embedding provider
type OllamaConfig struct {
	URL     string        `json:"url"`
	Model   string        `json:"model"`
	Timeout time.Duration `json:"timeout"`
}

// PipelineConfig tunes the simulation-to-action pipeline
type PipelineConfig struct {
	// ConfidenceThreshold is the default extraction cut-off on success
	// probability; callers may override per request
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// ExecutionTimeout bounds a single executor invocation
	ExecutionTimeout time.Duration `json:"execution_timeout"`
	DebugMode        bool          `json:"debug_mode"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".scenariq"),
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Qdrant: QdrantConfig{
			Host: "localhost",
			Port: 6334,
		},
		Ollama: OllamaConfig{
			URL:     "http://localhost:11434",
			Model:   "nomic-embed-text",
			Timeout: 30 * time.Second,
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.7,
			ExecutionTimeout:    30 * time.Second,
		},
	}
}

// Load loads config from file, falling back to defaults. Environment
// variables override the file for service endpoints.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.json")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded config
func (c *Config) applyEnv() {
	if v := os.Getenv("SCENARIQ_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		c.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_EMBED_MODEL"); v != "" {
		c.Ollama.Model = v
	}
	if v := os.Getenv("QDRANT_HOST"); v != "" {
		c.Qdrant.Host = v
	}
	if v := os.Getenv("QDRANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Qdrant.Port = port
		}
	}
}

// Save saves config to file
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// DatabasePath is where the SQLite database lives
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "scenariq.db")
}
