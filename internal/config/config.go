// internal/config/config.go
//
// This package loads the qcgate.yaml configuration plus optional .env
// overrides. Every deployment gets a data directory holding the SQLite
// database, activity log, and test-set template catalogue.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the YAML file qcgate reads from its data directory.
	ConfigFileName = "qcgate.yaml"

	defaultListenAddr       = "127.0.0.1:8090"
	defaultDatabaseFile     = "qcgate.db"
	defaultActivityFile     = "activity.log"
	defaultTemplateDirName  = "testsets"
	defaultAutoSaveDebounce = 500 * time.Millisecond
)

const defaultConfigYAML = `# qcgate configuration
version: 1

server:
  listen: 127.0.0.1:8090
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
  max_body_bytes: 1048576

# Static bearer tokens accepted by the API. Override via QCGATE_TOKENS
# (comma separated) in production.
auth:
  tokens: []

storage:
  # Paths are resolved relative to the data directory unless absolute.
  database: qcgate.db
  activity_log: activity.log
  template_dir: testsets

execution:
  autosave_debounce: 500ms
`

// ServerConfig captures HTTP listener settings.
type ServerConfig struct {
	Listen       string        `yaml:"listen"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
}

// AuthConfig lists the bearer tokens the API accepts.
type AuthConfig struct {
	Tokens []string `yaml:"tokens"`
}

// StorageConfig locates the persistent files under the data directory.
type StorageConfig struct {
	Database    string `yaml:"database"`
	ActivityLog string `yaml:"activity_log"`
	TemplateDir string `yaml:"template_dir"`
}

// ExecutionConfig tunes the test execution tracker.
type ExecutionConfig struct {
	AutoSaveDebounce time.Duration `yaml:"autosave_debounce"`
}

// FileConfig models qcgate.yaml.
type FileConfig struct {
	Version   int             `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Storage   StorageConfig   `yaml:"storage"`
	Execution ExecutionConfig `yaml:"execution"`
}

// Config holds the resolved runtime configuration.
type Config struct {
	// DataDir is where qcgate keeps its database and logs.
	DataDir string

	File FileConfig
}

// Load resolves configuration for the given data directory. Missing config
// files fall back to defaults; a .env file in the data directory (or the
// process environment) may override individual values.
func Load(dataDir string) (*Config, error) {
	if strings.TrimSpace(dataDir) == "" {
		return nil, fmt.Errorf("config: data directory is required")
	}
	cfg := &Config{
		DataDir: dataDir,
		File:    defaultFileConfig(),
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	_ = godotenv.Load(filepath.Join(dataDir, ".env"))
	cfg.applyEnvOverrides()
	cfg.File.normalize()
	if err := cfg.File.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Init creates the data directory structure and a default config file when
// none exists yet.
func Init(dataDir string) error {
	dirs := []string{
		dataDir,
		filepath.Join(dataDir, defaultTemplateDirName),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: ensure %s: %w", dir, err)
		}
	}
	path := filepath.Join(dataDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// ConfigPath returns the on-disk location of qcgate.yaml.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.DataDir, ConfigFileName)
}

// DatabasePath returns the resolved SQLite database path.
func (c *Config) DatabasePath() string {
	return c.resolve(c.File.Storage.Database)
}

// ActivityLogPath returns the resolved activity log path.
func (c *Config) ActivityLogPath() string {
	return c.resolve(c.File.Storage.ActivityLog)
}

// TemplateDir returns the resolved test-set template directory.
func (c *Config) TemplateDir() string {
	return c.resolve(c.File.Storage.TemplateDir)
}

// Tokens returns the accepted bearer tokens.
func (c *Config) Tokens() []string {
	out := make([]string, len(c.File.Auth.Tokens))
	copy(out, c.File.Auth.Tokens)
	return out
}

func (c *Config) resolve(candidate string) string {
	if filepath.IsAbs(candidate) {
		return filepath.Clean(candidate)
	}
	return filepath.Clean(filepath.Join(c.DataDir, candidate))
}

func (c *Config) loadFile() error {
	path := c.ConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.File = parsed
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("QCGATE_LISTEN")); v != "" {
		c.File.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("QCGATE_TOKENS")); v != "" {
		tokens := strings.Split(v, ",")
		c.File.Auth.Tokens = c.File.Auth.Tokens[:0]
		for _, token := range tokens {
			if trimmed := strings.TrimSpace(token); trimmed != "" {
				c.File.Auth.Tokens = append(c.File.Auth.Tokens, trimmed)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv("QCGATE_DATABASE")); v != "" {
		c.File.Storage.Database = v
	}
	if v := strings.TrimSpace(os.Getenv("QCGATE_AUTOSAVE_DEBOUNCE")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.File.Execution.AutoSaveDebounce = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("QCGATE_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.File.Server.MaxBodyBytes = n
		}
	}
}

func defaultFileConfig() FileConfig {
	return FileConfig{
		Version: 1,
		Server: ServerConfig{
			Listen:       defaultListenAddr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
		Storage: StorageConfig{
			Database:    defaultDatabaseFile,
			ActivityLog: defaultActivityFile,
			TemplateDir: defaultTemplateDirName,
		},
		Execution: ExecutionConfig{
			AutoSaveDebounce: defaultAutoSaveDebounce,
		},
	}
}

func (fc *FileConfig) applyDefaults() {
	defaults := defaultFileConfig()
	if fc.Version == 0 {
		fc.Version = defaults.Version
	}
	if fc.Server.Listen == "" {
		fc.Server.Listen = defaults.Server.Listen
	}
	if fc.Server.ReadTimeout <= 0 {
		fc.Server.ReadTimeout = defaults.Server.ReadTimeout
	}
	if fc.Server.WriteTimeout <= 0 {
		fc.Server.WriteTimeout = defaults.Server.WriteTimeout
	}
	if fc.Server.IdleTimeout <= 0 {
		fc.Server.IdleTimeout = defaults.Server.IdleTimeout
	}
	if fc.Server.MaxBodyBytes <= 0 {
		fc.Server.MaxBodyBytes = defaults.Server.MaxBodyBytes
	}
	if fc.Storage.Database == "" {
		fc.Storage.Database = defaults.Storage.Database
	}
	if fc.Storage.ActivityLog == "" {
		fc.Storage.ActivityLog = defaults.Storage.ActivityLog
	}
	if fc.Storage.TemplateDir == "" {
		fc.Storage.TemplateDir = defaults.Storage.TemplateDir
	}
	if fc.Execution.AutoSaveDebounce <= 0 {
		fc.Execution.AutoSaveDebounce = defaults.Execution.AutoSaveDebounce
	}
}

func (fc *FileConfig) normalize() {
	fc.Server.Listen = strings.TrimSpace(fc.Server.Listen)
	fc.Storage.Database = strings.TrimSpace(fc.Storage.Database)
	fc.Storage.ActivityLog = strings.TrimSpace(fc.Storage.ActivityLog)
	fc.Storage.TemplateDir = strings.TrimSpace(fc.Storage.TemplateDir)
	normalized := fc.Auth.Tokens[:0]
	for _, token := range fc.Auth.Tokens {
		if trimmed := strings.TrimSpace(token); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	fc.Auth.Tokens = normalized
}

func (fc FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("version must be >= 1")
	}
	if fc.Server.Listen == "" {
		return fmt.Errorf("server.listen is required")
	}
	if fc.Storage.Database == "" {
		return fmt.Errorf("storage.database is required")
	}
	return nil
}
