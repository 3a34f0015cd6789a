package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/graphtran/internal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "env-key")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, cfg.Backend)
	assert.Equal(t, "api_docs.json", cfg.Reference)
	assert.Equal(t, 50, cfg.ChunkLines)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 120*time.Second, cfg.Timeout)
	assert.Equal(t, "env-key", cfg.APIKey)
	assert.Empty(t, cfg.DB)
	assert.False(t, cfg.CacheEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestCacheEnabled(t *testing.T) {
	tests := []struct {
		name    string
		db      string
		noCache bool
		want    bool
	}{
		{"no database", "", false, false},
		{"database set", "cache.db", false, true},
		{"no-cache wins", "cache.db", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{DB: tt.db, NoCache: tt.noCache}
			assert.Equal(t, tt.want, cfg.CacheEnabled())
		})
	}
}

func TestLoad_DBFromEnv(t *testing.T) {
	t.Setenv("GRAPHTRAN_DB", "/tmp/graphtran-test.db")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/graphtran-test.db", cfg.DB)
	assert.True(t, cfg.CacheEnabled())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphtran.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: ollama\nchunk_lines: 20\ntimeout: 30s\n"), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, BackendOllama, cfg.Backend)
	assert.Equal(t, 20, cfg.ChunkLines)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graphtran.yaml")
	require.NoError(t, os.WriteFile(path, []byte("concurrency: 2\n"), 0o644))
	t.Setenv("GRAPHTRAN_CONCURRENCY", "4")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestBindFlags_FlagWins(t *testing.T) {
	t.Setenv("GRAPHTRAN_CHUNK_LINES", "10")

	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	fs.Int("chunk-lines", 50, "")
	fs.Bool("no-cache", false, "")
	require.NoError(t, fs.Parse([]string{"--chunk-lines", "7", "--no-cache"}))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.ChunkLines)
	assert.True(t, cfg.NoCache)
}

func TestBindFlags_UnsetFlagKeepsEnv(t *testing.T) {
	t.Setenv("GRAPHTRAN_CHUNK_LINES", "10")

	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	fs.Int("chunk-lines", 50, "")
	require.NoError(t, fs.Parse(nil))

	v := viper.New()
	require.NoError(t, BindFlags(v, fs))
	cfg, err := Load(v, "")
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.ChunkLines)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{Backend: BackendGemini, APIKey: "k", Reference: "api_docs.json", ChunkLines: 50, Concurrency: 1, MaxRetries: 3}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		setting string
	}{
		{"missing key", func(c *Config) { c.APIKey = "" }, APIKeyEnv},
		{"genai needs key", func(c *Config) { c.Backend = BackendGenAI; c.APIKey = "" }, APIKeyEnv},
		{"unknown backend", func(c *Config) { c.Backend = "bard" }, "backend"},
		{"zero chunk lines", func(c *Config) { c.ChunkLines = 0 }, "chunk-lines"},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, "concurrency"},
		{"zero retries", func(c *Config) { c.MaxRetries = 0 }, "max-retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, internal.IsConfiguration(err))
			assert.Contains(t, err.Error(), tt.setting)
		})
	}

	c := valid()
	c.Backend, c.APIKey = BackendOllama, ""
	assert.NoError(t, c.Validate(), "ollama runs without a credential")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("GRAPHTRAN_TEST_DOTENV=from-file\n"), 0o644))
	t.Setenv("GRAPHTRAN_TEST_DOTENV", "")
	os.Unsetenv("GRAPHTRAN_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("GRAPHTRAN_TEST_DOTENV"))
}
