package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
database:
  dsn: "postgres://postgres@localhost:5432/postgres"
  rls: true
llm:
  provider: openai
  base_url: "https://openrouter.ai/api/v1"
  model: "meta-llama/llama-3-8b-instruct"
export:
  image_timeout: 5s
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.True(t, cfg.Database.RLS)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "meta-llama/llama-3-8b-instruct", cfg.LLM.Model)
	assert.Equal(t, 5*time.Second, cfg.Export.ImageTimeout)
	assert.Equal(t, int64(10<<20), cfg.Export.ImageMaxBytes)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
}

func TestLoadConfig_missingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.LLM.Model)
	assert.Equal(t, 4000, cfg.LLM.MaxTokens)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.7, *cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, int64(40_000_000), cfg.Export.ImageMaxPixels)
}

func TestLoadConfig_zeroTemperatureKept(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
llm:
  temperature: 0
`))
	require.NoError(t, err)

	require.NotNil(t, cfg.LLM.Temperature)
	assert.Zero(t, *cfg.LLM.Temperature)
	assert.Zero(t, cfg.LLM.TemperatureValue())
}

func TestLoadConfig_envProviderPicksModel(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderOpenAI)
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("LLM_MODEL", "")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, DefaultOpenAIModel, cfg.LLM.Model)
}

func TestLoadConfig_envProviderOverridesFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderGemini)
	t.Setenv("GEMINI_MODEL", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := LoadConfig(writeConfig(t, `
llm:
  provider: openai
  api_key: openai-key
`))
	require.NoError(t, err)

	assert.Equal(t, ProviderGemini, cfg.LLM.Provider)
	assert.Equal(t, DefaultGeminiModel, cfg.LLM.Model)
	assert.Equal(t, "gemini-key", cfg.LLM.Key)
}

func TestLoadConfig_envModel(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderOpenAI)
	t.Setenv("LLM_MODEL", "gpt-4.1")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1", cfg.LLM.Model)
}

func TestLoadConfig_invalidYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "server: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DATABASE_URL":   "postgres://db.supabase.co:5432/postgres",
		"JWT_SECRET":     "secret",
		"GEMINI_API_KEY": "gemini-key",
		"GEMINI_MODEL":   "gemini-2.5-flash",
		"PORT":           "8081",
	}
	cfg := &Config{}
	require.NoError(t, applyEnv(cfg, func(k string) string { return env[k] }))
	ApplyDefaults(cfg)

	assert.Equal(t, "postgres://db.supabase.co:5432/postgres", cfg.Database.DSN)
	assert.Equal(t, "secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "gemini-key", cfg.LLM.Key)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_badPort(t *testing.T) {
	cfg := &Config{}
	err := applyEnv(cfg, func(k string) string {
		if k == "PORT" {
			return "eighty"
		}
		return ""
	})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
	assert.Contains(t, err.Error(), "llm.api_key")

	cfg.Database.DSN = "postgres://localhost"
	cfg.Auth.JWTSecret = "s"
	cfg.LLM.Key = "k"
	cfg.LLM.Provider = "anthropic"
	assert.ErrorContains(t, cfg.Validate(), "unsupported llm provider")
}
