// Package config handles Wayfarer configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/wayfarer/config.yaml, /etc/wayfarer/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wayfarer", "config.yaml"))
	}

	paths = append(paths, "/etc/wayfarer/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Wayfarer configuration.
type Config struct {
	Listen   ListenConfig `yaml:"listen"`
	Model    ModelConfig  `yaml:"model"`
	DataDir  string       `yaml:"data_dir"`
	ShareURL string       `yaml:"share_url"`
	LogLevel string       `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ModelConfig defines which model provider answers chat requests.
type ModelConfig struct {
	// Provider selects the token stream source: "workersai" or "ollama".
	Provider string `yaml:"provider"`
	// Name is the model identifier passed to the provider.
	Name string `yaml:"name"`
	// MaxTokens caps the model's response length.
	MaxTokens int `yaml:"max_tokens"`

	WorkersAI WorkersAIConfig `yaml:"workersai"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

// WorkersAIConfig defines Cloudflare Workers AI credentials.
type WorkersAIConfig struct {
	AccountID string `yaml:"account_id"`
	APIToken  string `yaml:"api_token"`
}

// OllamaConfig defines a local Ollama endpoint.
type OllamaConfig struct {
	URL string `yaml:"url"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:  ListenConfig{Port: 8080},
		DataDir: "data",
		Model: ModelConfig{
			Provider:  "workersai",
			Name:      "@cf/meta/llama-3.3-70b-instruct-fp8-fast",
			MaxTokens: 2048,
			Ollama:    OllamaConfig{URL: "http://localhost:11434"},
		},
	}
}
