package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

var (
	ErrMissingSetting = errors.New("required setting missing")
	ErrInvalidSetting = errors.New("invalid setting")
)

type Config struct {
	// Server
	Port        string `koanf:"port"`
	Environment string `koanf:"environment"`
	LogFormat   string `koanf:"log_format"`
	LogLevel    string `koanf:"log_level"`

	// Database
	DatabaseURL        string        `koanf:"database_url"`
	DBMaxConns         int           `koanf:"db_max_conns"`
	DBAcquireTimeout   time.Duration `koanf:"db_acquire_timeout"`
	DBStatementTimeout time.Duration `koanf:"db_statement_timeout"`
	DBConnectRetries   int           `koanf:"db_connect_retries"`

	// JWT
	JWTSecret string `koanf:"jwt_secret"`

	// Password hashing
	HashConcurrency int `koanf:"hash_concurrency"`

	// Book generation
	GeminiAPIKey  string `koanf:"gemini_api_key"`
	GeminiBaseURL string `koanf:"gemini_base_url"`
	GeminiModel   string `koanf:"gemini_model"`
}

// Keys read from the environment. Anything else in the environment is ignored.
var envKeys = map[string]bool{
	"PORT":                 true,
	"ENVIRONMENT":          true,
	"LOG_FORMAT":           true,
	"LOG_LEVEL":            true,
	"DATABASE_URL":         true,
	"DB_MAX_CONNS":         true,
	"DB_ACQUIRE_TIMEOUT":   true,
	"DB_STATEMENT_TIMEOUT": true,
	"DB_CONNECT_RETRIES":   true,
	"JWT_SECRET":           true,
	"HASH_CONCURRENCY":     true,
	"GEMINI_API_KEY":       true,
	"GEMINI_BASE_URL":      true,
	"GEMINI_MODEL":         true,
}

// Flags registers every setting on flags with its default value. Flag names use
// dashes; config keys use underscores.
func Flags(flags *pflag.FlagSet) {
	flags.String("port", "8080", "HTTP listen port")
	flags.String("environment", "development", "deployment environment name")
	flags.String("log-format", "json", "log format (json or text)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("database-url", "", "PostgreSQL connection string")
	flags.Int("db-max-conns", 10, "maximum open store connections")
	flags.Duration("db-acquire-timeout", 3*time.Second, "maximum wait for a free store connection")
	flags.Duration("db-statement-timeout", 5*time.Second, "time box for a single unit of store work")
	flags.Int("db-connect-retries", 5, "startup connection attempts before giving up")
	flags.Int("hash-concurrency", 4, "maximum concurrent password hash computations")
	flags.String("gemini-base-url", "https://generativelanguage.googleapis.com/v1beta", "generative language API base URL")
	flags.String("gemini-model", "gemini-2.0-flash", "generative model used for book suggestions")
}

// Load builds the configuration. Precedence, lowest first: flag defaults,
// the optional YAML file, .env and the process environment, flags set on the
// command line. flags must have been populated with Flags and parsed.
func Load(flags *pflag.FlagSet, configFile string) (*Config, error) {
	// .env is optional; existing process variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, oops.Code("CONFIG_DOTENV").With("path", ".env").Wrap(fmt.Errorf("%w: %w", ErrInvalidSetting, err))
	}

	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE").With("path", configFile).Wrap(err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS").Wrap(err)
		}
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE").Wrap(fmt.Errorf("%w: %w", ErrInvalidSetting, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return missing("DATABASE_URL")
	}
	if c.JWTSecret == "" {
		return missing("JWT_SECRET")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("LOG_FORMAT", "must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.DBMaxConns < 1 {
		return invalid("DB_MAX_CONNS", "must be positive, got %d", c.DBMaxConns)
	}
	if c.DBAcquireTimeout <= 0 {
		return invalid("DB_ACQUIRE_TIMEOUT", "must be positive")
	}
	if c.DBStatementTimeout <= 0 {
		return invalid("DB_STATEMENT_TIMEOUT", "must be positive")
	}
	if c.HashConcurrency < 1 {
		return invalid("HASH_CONCURRENCY", "must be positive, got %d", c.HashConcurrency)
	}
	return nil
}

// WeakSecret reports a signing secret shorter than an HS256 key.
func (c *Config) WeakSecret() bool {
	return len(c.JWTSecret) < 32
}

func missing(key string) error {
	return oops.Code("CONFIG_MISSING").
		With("key", key).
		Wrap(fmt.Errorf("%w: %s environment variable is required", ErrMissingSetting, key))
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").
		With("key", key).
		Wrap(fmt.Errorf("%w: %s %s", ErrInvalidSetting, key, fmt.Sprintf(format, args...)))
}

func envKey(s string) string {
	if !envKeys[s] {
		return ""
	}
	return strings.ToLower(s)
}

func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
