// Package config loads docket configuration from YAML files.
//
// Loading follows a fixed pipeline: optional .env files are loaded into the
// process environment, ${VAR} references in the file are expanded, the YAML
// is decoded, `default` tags fill unset fields and `validate` tags are checked.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	// ErrConfigNotFound is returned when the config file does not exist.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidConfig is returned when the config fails validation.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the docket configuration file.
type Config struct {
	Database DatabaseConfig `yaml:"database"`

	// Log enables repository debug logging of every operation.
	Log bool `yaml:"log" default:"false"`

	// LogLevel is the minimum level emitted by the process logger.
	LogLevel string `yaml:"log_level" default:"info" validate:"oneof=debug info warn error"`

	GC    GCConfig    `yaml:"gc"`
	Retry RetryConfig `yaml:"retry"`
}

// DatabaseConfig locates the database.
type DatabaseConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string `yaml:"path" validate:"required_unless=InMemory true"`

	// InMemory keeps the database in memory. Nothing is persisted.
	InMemory bool `yaml:"in_memory" default:"false"`
}

// GCConfig tunes value log garbage collection.
type GCConfig struct {
	DiscardRatio float64 `yaml:"discard_ratio" default:"0.5" validate:"gt=0,lt=1"`
	PoolSize     int     `yaml:"pool_size"     default:"2"   validate:"min=1"`
}

// RetryConfig tunes retries of conflicting writes.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" default:"3"    validate:"min=1"`
	BaseDelay   time.Duration `yaml:"base_delay"   default:"10ms" validate:"gte=0"`
}

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	envFiles []string
}

// WithEnvFiles loads the named .env files before expanding variables.
// Files that do not exist are ignored. Variables already set in the
// environment take precedence.
func WithEnvFiles(paths ...string) LoadOption {
	return func(o *loadOptions) {
		o.envFiles = append(o.envFiles, paths...)
	}
}

// Load reads, expands, decodes, defaults and validates the config at path.
func Load(path string, opts ...LoadOption) (*Config, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if err := loadEnvFiles(o.envFiles); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes config from YAML text, expanding ${VAR} references from the
// environment, then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("failed to set default values for config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a config with every default applied and no database path.
// It does not validate; callers fill in the database before use.
func Default() *Config {
	var cfg Config
	// defaults.Set only fails on malformed tags
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Validate checks the config against its validate tags.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(c)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	failed := make([]string, 0, len(errs))
	for _, fe := range errs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		failed = append(failed, fmt.Sprintf("%s: %s", fe.Namespace(), tag))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(failed, ", "))
}

// SlogLevel returns LogLevel as a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLogLevel parses a level name (debug, info, warn, error), ignoring case.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", name)
	}
	return level, nil
}

func loadEnvFiles(paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", p, err)
		}
	}
	return nil
}
