// Package config provides configuration loading and management for sparqlgate.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Saved-query storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendNATS   = "nats"
)

// Config represents the complete sparqlgate configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Queries QueriesConfig `yaml:"queries"`
	Log     LogConfig     `yaml:"log"`

	// Credentials are taken from the environment or flags and never written
	// to disk.
	Credentials Credentials `yaml:"-" json:"-"`
}

// ServerConfig configures the triple store endpoint
type ServerConfig struct {
	// URL is the RDF4J server base URL (e.g., http://localhost:8080/rdf4j-server)
	URL string `yaml:"url"`
	// Repository is the repository id calls target
	Repository string `yaml:"repository"`
	// Timeout bounds each HTTP exchange
	Timeout time.Duration `yaml:"timeout"`
	// MaxResponseBytes caps buffered response bodies
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
	// QueryLimit is the row limit sent with queries that set none
	QueryLimit int `yaml:"query_limit"`
}

// QueriesConfig configures where saved queries persist
type QueriesConfig struct {
	// Backend is one of memory, file or nats
	Backend string `yaml:"backend"`
	// Path is the directory used by the file backend
	Path string `yaml:"path"`
	// NATSURL is the server used by the nats backend
	NATSURL string `yaml:"nats_url"`
	// Bucket is the JetStream KV bucket used by the nats backend
	Bucket string `yaml:"bucket"`
	// Key is the storage key holding the query list
	Key string `yaml:"key"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level"`
}

// Credentials hold a Basic-auth login.
type Credentials struct {
	Username string
	Password string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URL:              "http://localhost/rdf4j-server",
			Repository:       "default",
			Timeout:          60 * time.Second,
			MaxResponseBytes: 64 * 1024 * 1024,
			QueryLimit:       2048,
		},
		Queries: QueriesConfig{
			Backend: BackendFile,
			Path:    defaultQueriesPath(),
			Bucket:  "SPARQLGATE_QUERIES",
			Key:     "rdf4j-queries",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultQueriesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, "queries")
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server.url is required")
	}
	u, err := url.Parse(c.Server.URL)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server.url must use http or https, got %q", c.Server.URL)
	}
	if c.Server.Repository == "" {
		return fmt.Errorf("server.repository is required")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("server.timeout must not be negative")
	}
	if c.Server.MaxResponseBytes <= 0 {
		return fmt.Errorf("server.max_response_bytes must be positive")
	}
	if c.Server.QueryLimit <= 0 {
		return fmt.Errorf("server.query_limit must be positive")
	}

	switch c.Queries.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Queries.Path == "" {
			return fmt.Errorf("queries.path is required for the file backend")
		}
	case BackendNATS:
		if c.Queries.NATSURL == "" {
			return fmt.Errorf("queries.nats_url is required for the nats backend")
		}
		if c.Queries.Bucket == "" {
			return fmt.Errorf("queries.bucket is required for the nats backend")
		}
	default:
		return fmt.Errorf("queries.backend must be one of memory, file, nats, got %q", c.Queries.Backend)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Server
	if other.Server.URL != "" {
		c.Server.URL = other.Server.URL
	}
	if other.Server.Repository != "" {
		c.Server.Repository = other.Server.Repository
	}
	if other.Server.Timeout != 0 {
		c.Server.Timeout = other.Server.Timeout
	}
	if other.Server.MaxResponseBytes != 0 {
		c.Server.MaxResponseBytes = other.Server.MaxResponseBytes
	}
	if other.Server.QueryLimit != 0 {
		c.Server.QueryLimit = other.Server.QueryLimit
	}

	// Queries
	if other.Queries.Backend != "" {
		c.Queries.Backend = other.Queries.Backend
	}
	if other.Queries.Path != "" {
		c.Queries.Path = other.Queries.Path
	}
	if other.Queries.NATSURL != "" {
		c.Queries.NATSURL = other.Queries.NATSURL
	}
	if other.Queries.Bucket != "" {
		c.Queries.Bucket = other.Queries.Bucket
	}
	if other.Queries.Key != "" {
		c.Queries.Key = other.Queries.Key
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}

	// Credentials
	if other.Credentials.Username != "" {
		c.Credentials.Username = other.Credentials.Username
	}
	if other.Credentials.Password != "" {
		c.Credentials.Password = other.Credentials.Password
	}
}
