// Package config resolves graphtran settings from flags, GRAPHTRAN_*
// environment variables, an optional graphtran.yaml and a .env file, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/graphtran/internal"
	"github.com/valpere/graphtran/internal/chunker"
	"github.com/valpere/graphtran/internal/translator"
)

// APIKeyEnv is the credential read for the Gemini backends.
const APIKeyEnv = "GEMINI_API_KEY"

const (
	BackendGemini = "gemini"
	BackendGenAI  = "genai"
	BackendOllama = "ollama"
)

type Config struct {
	Backend        string        `mapstructure:"backend"`
	Model          string        `mapstructure:"model"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Reference      string        `mapstructure:"reference"`
	Rules          string        `mapstructure:"rules"`
	ChunkLines     int           `mapstructure:"chunk_lines"`
	Concurrency    int           `mapstructure:"concurrency"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RPM            int           `mapstructure:"rpm"`
	DB             string        `mapstructure:"db"`
	NoCache        bool          `mapstructure:"no_cache"`
	Verify         bool          `mapstructure:"verify"`
	NoRulesContext bool          `mapstructure:"no_rules_context"`
	Verbose        bool          `mapstructure:"verbose"`
}

// SetDefaults registers every key so that GRAPHTRAN_* variables are picked
// up by AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendGemini)
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("reference", "api_docs.json")
	v.SetDefault("rules", "")
	v.SetDefault("chunk_lines", chunker.DefaultLines)
	v.SetDefault("concurrency", 1)
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_delay", 2*time.Second)
	v.SetDefault("timeout", 120*time.Second)
	v.SetDefault("rpm", 0)
	v.SetDefault("db", "")
	v.SetDefault("no_cache", false)
	v.SetDefault("verify", false)
	v.SetDefault("no_rules_context", false)
	v.SetDefault("verbose", false)
}

// BindFlags binds each flag in fs to the key of the same name with dashes
// turned into underscores.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Name == "config" || f.Name == "help" {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
	})
	return err
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configFile (or graphtran.yaml in the working directory when
// empty) and the environment into a Config. A missing default file is not
// an error; a missing explicit one is.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("GRAPHTRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("graphtran")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(APIKeyEnv)
	}
	return &cfg, nil
}

// Validate checks the settings a conversion needs. It runs before any file
// or network work.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGemini, BackendGenAI:
		if c.APIKey == "" {
			return &internal.ConfigurationError{Setting: APIKeyEnv, Reason: "not set"}
		}
	case BackendOllama:
	default:
		return &internal.ConfigurationError{Setting: "backend", Reason: fmt.Sprintf("unknown backend %q", c.Backend)}
	}
	if c.ChunkLines <= 0 {
		return &internal.ConfigurationError{Setting: "chunk-lines", Reason: "must be positive"}
	}
	if c.Concurrency <= 0 {
		return &internal.ConfigurationError{Setting: "concurrency", Reason: "must be positive"}
	}
	if c.MaxRetries <= 0 {
		return &internal.ConfigurationError{Setting: "max-retries", Reason: "must be at least 1"}
	}
	if c.Timeout < 0 || c.RPM < 0 {
		return &internal.ConfigurationError{Setting: "timeout/rpm", Reason: "must not be negative"}
	}
	if c.Reference == "" {
		return &internal.ConfigurationError{Setting: "reference", Reason: "empty path"}
	}
	return nil
}

// CacheEnabled reports whether convert should use the chunk cache and run
// history. Both are off unless a database path is configured.
func (c *Config) CacheEnabled() bool {
	return c.DB != "" && !c.NoCache
}

// Service returns the backend settings.
func (c *Config) Service() translator.ServiceConfig {
	return translator.ServiceConfig{
		APIKey:  c.APIKey,
		Model:   c.Model,
		BaseURL: c.BaseURL,
		Timeout: c.Timeout,
	}
}
