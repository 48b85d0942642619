package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ClaudeDir is the per-project directory holding plugin state.
	ClaudeDir = ".claude"
	// FileName is the optional config file under ClaudeDir.
	FileName = "progmem.yaml"
	// MemoryFileName is the default document name under ClaudeDir.
	MemoryFileName = "project_memory.json"
	// DotEnvFile is an optional env file at the project root.
	DotEnvFile = ".env"
)

// Config is resolved once per command and handed to the components that need
// it. Nothing below the cmd layer reads the environment.
type Config struct {
	ProjectRoot string
	MemoryPath  string
	LogLevel    string
}

type fileConfig struct {
	MemoryPath string `yaml:"memory_path"`
	LogLevel   string `yaml:"log_level"`
}

// Load builds the config for projectRoot from defaults, then
// <root>/.claude/progmem.yaml if present, then PROGMEM_* entries of
// <root>/.env, then the PROGMEM_MEMORY_PATH and PROGMEM_LOG_LEVEL
// environment variables. Relative memory paths resolve against the project
// root.
func Load(projectRoot string) (*Config, error) {
	cfg := &Config{
		ProjectRoot: projectRoot,
		MemoryPath:  filepath.Join(projectRoot, ClaudeDir, MemoryFileName),
		LogLevel:    "warn",
	}

	fc, err := readFile(filepath.Join(projectRoot, ClaudeDir, FileName))
	if err != nil {
		return nil, err
	}
	if fc.MemoryPath != "" {
		cfg.MemoryPath = cfg.resolve(fc.MemoryPath)
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}

	dotenv, err := readDotEnv(filepath.Join(projectRoot, DotEnvFile))
	if err != nil {
		return nil, err
	}
	if v := dotenv["PROGMEM_MEMORY_PATH"]; v != "" {
		cfg.MemoryPath = cfg.resolve(v)
	}
	if v := dotenv["PROGMEM_LOG_LEVEL"]; v != "" {
		cfg.LogLevel = v
	}

	if v := envStr("PROGMEM_MEMORY_PATH", ""); v != "" {
		cfg.MemoryPath = cfg.resolve(v)
	}
	cfg.LogLevel = strings.ToLower(envStr("PROGMEM_LOG_LEVEL", cfg.LogLevel))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse %s: %w", path, err)
	}
	return fc, nil
}

// readDotEnv parses an env file without touching the process environment.
func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return values, nil
}

// WithMemoryPath overrides the document path, e.g. from a flag.
func (c *Config) WithMemoryPath(path string) {
	if path != "" {
		c.MemoryPath = c.resolve(path)
	}
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) || c.ProjectRoot == "" {
		return path
	}
	return filepath.Join(c.ProjectRoot, path)
}

func (c *Config) validate() error {
	if c.MemoryPath == "" {
		return fmt.Errorf("memory path must not be empty")
	}
	if _, ok := levels[c.LogLevel]; !ok {
		return fmt.Errorf("PROGMEM_LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	return nil
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	if l, ok := levels[c.LogLevel]; ok {
		return l
	}
	return slog.LevelWarn
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
