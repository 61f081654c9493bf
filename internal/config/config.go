package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"docflow/internal/workspace"
)

// ConfigurationError reports a missing or unusable setting, detected
// before any synthesis or publishing work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

type Config struct {
	Project struct {
		Root   string   `yaml:"root"`
		Name   string   `yaml:"name"`
		Lang   string   `yaml:"lang"`
		Ignore []string `yaml:"ignore"`
	} `yaml:"project"`
	AI struct {
		Model        string `yaml:"model"`
		APIKey       string `yaml:"api_key"`
		PromptBudget int    `yaml:"prompt_budget"`
		// RequestTimeout bounds each model call, in seconds.
		RequestTimeout int `yaml:"request_timeout"`
		// MaxRetries caps retries of transient model failures.
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"ai"`
	Workspace struct {
		Token    string `yaml:"token"`
		ParentID string `yaml:"parent_page_id"`
	} `yaml:"workspace"`
	Cache struct {
		Path string `yaml:"path"`
	} `yaml:"cache"`
}

// Load reads the optional YAML config, then applies .env and environment
// overrides on top. A missing config file is not an error; everything can
// come from the environment.
func Load(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	var cfg Config

	// 2. Load YAML config
	file, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	// 3. Override with environment variables if present
	if v := os.Getenv("DOCFLOW_GEMINI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("DOCFLOW_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("DOCFLOW_WORKSPACE_TOKEN"); v != "" {
		cfg.Workspace.Token = v
	}
	if v := os.Getenv("DOCFLOW_WORKSPACE_PARENT"); v != "" {
		cfg.Workspace.ParentID = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.0-flash"
	}
	if c.Project.Lang == "" {
		c.Project.Lang = "python"
	}
	if c.Cache.Path == "" {
		c.Cache.Path = ".docflow-cache.db"
	}
	if c.AI.RequestTimeout == 0 {
		c.AI.RequestTimeout = 120
	}
	if c.AI.MaxRetries == 0 {
		c.AI.MaxRetries = 3
	}
	c.Workspace.ParentID = workspace.NormalizePageID(strings.TrimSpace(c.Workspace.ParentID))
}

// Validate checks that everything needed for a real run is present.
// Dry runs without publishing still need the model credential.
func (c *Config) Validate(publishing bool) error {
	if c.AI.APIKey == "" {
		return &ConfigurationError{Field: "ai.api_key", Reason: "set DOCFLOW_GEMINI_API_KEY or ai.api_key"}
	}
	if c.AI.RequestTimeout < 0 {
		return &ConfigurationError{Field: "ai.request_timeout", Reason: "must be a positive number of seconds"}
	}
	if c.AI.MaxRetries < 0 {
		return &ConfigurationError{Field: "ai.max_retries", Reason: "must not be negative"}
	}
	if publishing {
		if c.Workspace.Token == "" {
			return &ConfigurationError{Field: "workspace.token", Reason: "set DOCFLOW_WORKSPACE_TOKEN or workspace.token"}
		}
		if c.Workspace.ParentID == "" {
			return &ConfigurationError{Field: "workspace.parent_page_id", Reason: "set DOCFLOW_WORKSPACE_PARENT or workspace.parent_page_id"}
		}
	}
	return nil
}
