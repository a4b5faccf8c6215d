package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "sparqlgate.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/sparqlgate"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Environment variables overriding file configuration.
const (
	EnvServerURL  = "SPARQLGATE_SERVER_URL"
	EnvRepository = "SPARQLGATE_REPOSITORY"
	EnvUsername   = "SPARQLGATE_USERNAME"
	EnvPassword   = "SPARQLGATE_PASSWORD"
	EnvNATSURL    = "SPARQLGATE_NATS_URL"
)

// Loader resolves configuration from defaults, files and the environment.
type Loader struct {
	logger  *slog.Logger
	sources []string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Sources lists the files merged by the last Load or LoadFile, lowest
// precedence first.
func (l *Loader) Sources() []string {
	return l.sources
}

// Load merges, in increasing precedence:
//
//   - DefaultConfig
//   - ~/.config/sparqlgate/config.yaml
//   - the nearest sparqlgate.yaml in the working directory or its parents
//   - SPARQLGATE_* environment variables
//
// A missing user file is skipped silently; an unreadable one is logged and
// skipped.
func (l *Loader) Load() (*Config, error) {
	l.sources = nil
	cfg := DefaultConfig()

	l.overlay(cfg, "user", UserConfigPath())

	if project := findUpwards(ProjectConfigFile); project != "" {
		l.overlay(cfg, "project", project)
	} else {
		l.logger.Debug("No project config found")
	}

	return l.finish(cfg)
}

// LoadFile reads one explicit file over the defaults and applies the
// environment. User and project files are not consulted; a missing file is
// an error.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	l.sources = []string{path}
	l.logger.Debug("Loaded config file", slog.String("path", path))

	return l.finish(cfg)
}

// overlay merges the file at path into cfg when it can be read.
func (l *Loader) overlay(cfg *Config, layer, path string) {
	if path == "" {
		return
	}
	fileCfg, err := readPartial(path)
	switch {
	case err == nil:
		cfg.Merge(fileCfg)
		l.sources = append(l.sources, path)
		l.logger.Debug("Loaded config", slog.String("layer", layer), slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Debug("Config file absent", slog.String("layer", layer), slog.String("path", path))
	default:
		l.logger.Warn("Skipping unreadable config",
			slog.String("layer", layer),
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// readPartial decodes a config file without filling in defaults, so Merge
// only overrides the fields the file sets.
func readPartial(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	partial := &Config{}
	if err := yaml.Unmarshal(data, partial); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return partial, nil
}

// finish applies the environment and validates.
func (l *Loader) finish(cfg *Config) (*Config, error) {
	env := FromEnv()
	if env.Server.URL != "" || env.Server.Repository != "" {
		l.logger.Debug("Applying environment overrides",
			slog.String("server_url", env.Server.URL),
			slog.String("repository", env.Server.Repository))
	}
	cfg.Merge(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv returns a partial config holding only the SPARQLGATE_* variables
// that are set, suitable for Merge.
func FromEnv() *Config {
	env := &Config{}
	env.Server.URL = os.Getenv(EnvServerURL)
	env.Server.Repository = os.Getenv(EnvRepository)
	env.Queries.NATSURL = os.Getenv(EnvNATSURL)
	env.Credentials.Username = os.Getenv(EnvUsername)
	env.Credentials.Password = os.Getenv(EnvPassword)
	return env
}

// EnsureUserConfig writes the defaults to the user config file unless one
// exists, and returns its path.
func (l *Loader) EnsureUserConfig() (string, error) {
	path := UserConfigPath()
	if path == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("Created default user config", slog.String("path", path))
	return path, nil
}

// UserConfigPath returns ~/.config/sparqlgate/config.yaml, or "" when the
// home directory is unknown.
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findUpwards returns the first name found walking from the working directory
// to the filesystem root.
func findUpwards(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
