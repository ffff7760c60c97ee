// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	DatabaseURL     string        `yaml:"databaseUrl" envconfig:"DATABASE_URL"`
	DatabaseType    string        `yaml:"databaseType" envconfig:"DATABASE_TYPE"`
	IdentitySecret  string        `yaml:"identitySecret" envconfig:"IDENTITY_SECRET"`
	Debug           bool          `yaml:"debug" envconfig:"DEBUG"`
	RetryAttempts   int           `yaml:"retryAttempts" envconfig:"RETRY_ATTEMPTS"`
	RetryMinBackoff time.Duration `yaml:"retryMinBackoff" envconfig:"RETRY_MIN_BACKOFF"`
	RetryMaxBackoff time.Duration `yaml:"retryMaxBackoff" envconfig:"RETRY_MAX_BACKOFF"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Port:            3318,
		DatabaseType:    "sqlite",
		RetryAttempts:   3,
		RetryMinBackoff: 50 * time.Millisecond,
		RetryMaxBackoff: 2 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// RegisterFlags adds the configuration overrides to flags
func RegisterFlags(flags *pflag.FlagSet) {
	def := Defaults()

	flags.StringP("config", "c", "", "YAML config file")
	flags.Bool("debug", false, "Enable debug logging")

	// Network config (can be CLI args or env)
	flags.IntP("port", "p", def.Port, "Server port")
	flags.StringP("database-url", "d", "", "Database URL")
	flags.StringP("database-type", "t", def.DatabaseType, "Database type (sqlite or postgres)")

	// Secrets (prefer env variables, but allow CLI for dev)
	flags.String("identity-secret", "", "Identity signature secret (prefer env)")

	flags.Int("retry-attempts", def.RetryAttempts, "Attempts for transient storage failures")
}

// ParseFlags parses args and loads the layered configuration
func ParseFlags(args []string) (Config, error) {
	flags := pflag.NewFlagSet("ballotbridge", pflag.ContinueOnError)
	RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return FromFlags(flags)
}

// FromFlags builds the configuration in layers, later ones winning:
// defaults, YAML file, .env file, environment, then any flag set on the
// command line.
func FromFlags(flags *pflag.FlagSet) (Config, error) {
	cfg := Defaults()

	configFile, _ := flags.GetString("config")
	if configFile != "" {
		if err := loadFile(configFile, &cfg); err != nil {
			return Config{}, err
		}
	}

	// .env never overrides variables already in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}

	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL, _ = flags.GetString("database-url")
	}
	if flags.Changed("database-type") {
		cfg.DatabaseType, _ = flags.GetString("database-type")
	}
	if flags.Changed("identity-secret") {
		cfg.IdentitySecret, _ = flags.GetString("identity-secret")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}
	if flags.Changed("retry-attempts") {
		cfg.RetryAttempts, _ = flags.GetInt("retry-attempts")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings every command needs
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != "postgres" && c.DatabaseType != "sqlite" {
		return fmt.Errorf("invalid database type %q (sqlite or postgres)", c.DatabaseType)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RetryAttempts < 1 {
		return errors.New("retry attempts must be at least 1")
	}
	return nil
}

// ValidateServe additionally checks settings only the server needs
func (c Config) ValidateServe() error {
	// Secrets - MUST be provided
	if c.IdentitySecret == "" {
		return errors.New("IDENTITY_SECRET required")
	}
	return nil
}

func loadFile(path string, cfg *Config) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}
	return nil
}
