// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileName is the name of the configuration file inside the repository directory.
const FileName = "config.json"

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Cache struct {
		Objects int `json:"objects"` // LRU entries kept by the object store
	} `json:"cache"`

	History struct {
		MaxDepth int `json:"max_depth"` // walk gives up past this many commits
	} `json:"history"`

	Diff struct {
		ContextLines int `json:"context_lines"`
	} `json:"diff"`

	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

func Default() *Config {
	var c Config
	c.Server.Host = "127.0.0.1"
	c.Server.Port = 7417
	c.Cache.Objects = 1000
	c.History.MaxDepth = 1_000_000
	c.Diff.ContextLines = 3
	c.Environment = "production"
	c.LogLevel = "warn"
	return &c
}

// Path returns the configuration path for a repository directory.
func Path(repoDir string) string {
	return filepath.Join(repoDir, FileName)
}

// Load reads the configuration at path on top of Default. A missing file
// yields the defaults. TRIX_LOG_LEVEL overrides log_level.
func Load(path string) (*Config, error) {
	config := Default()

	file, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, err
	default:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	}

	if level := os.Getenv("TRIX_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Cache.Objects <= 0 {
		return fmt.Errorf("cache.objects must be positive, got %d", c.Cache.Objects)
	}
	if c.History.MaxDepth <= 0 {
		return fmt.Errorf("history.max_depth must be positive, got %d", c.History.MaxDepth)
	}
	if c.Diff.ContextLines < 0 {
		return fmt.Errorf("diff.context_lines cannot be negative, got %d", c.Diff.ContextLines)
	}
	return nil
}

// Save writes the configuration to path, failing if the file already exists.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := file.Write(append(data, '\n')); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
