package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	LLM      LLMConfig      `yaml:"llm"`
	Export   ExportConfig   `yaml:"export"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DatabaseConfig points at the Supabase postgres instance.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Password string `yaml:"password"`
	Debug    bool   `yaml:"debug"`
	// RLS runs every query inside a transaction that carries the caller's
	// claims and role, so the row-level-security policies apply.
	RLS bool `yaml:"rls"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Audience  string `yaml:"audience"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"base_url"`
	Key      string `yaml:"api_key"`
	Model    string `yaml:"model"`
	// Temperature is a pointer so an explicit 0 survives ApplyDefaults.
	Temperature *float64      `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ExportConfig struct {
	TemplatesDir  string        `yaml:"templates_dir"`
	ImageTimeout  time.Duration `yaml:"image_timeout"`
	ImageMaxBytes int64         `yaml:"image_max_bytes"`
	// ImageMaxPixels bounds width*height before an image is decoded.
	ImageMaxPixels int64 `yaml:"image_max_pixels"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LoadConfig reads the YAML file at path, applies the environment overrides
// and then the defaults, so provider-dependent defaults see the final provider. A missing file is not an error when the environment
// carries the required values.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&cfg.Database.DSN, "DATABASE_URL", "SUPABASE_DB_URL")
	set(&cfg.Database.Password, "DATABASE_PASSWORD")
	set(&cfg.Auth.JWTSecret, "JWT_SECRET", "SUPABASE_JWT_SECRET")
	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.Export.TemplatesDir, "TEMPLATES_DIR")

	if cfg.LLM.Provider == "" || cfg.LLM.Provider == ProviderGemini {
		set(&cfg.LLM.Key, "GEMINI_API_KEY", "LLM_API_KEY")
		set(&cfg.LLM.Model, "GEMINI_MODEL")
	} else {
		set(&cfg.LLM.Key, "LLM_API_KEY")
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// Validate reports the settings that have to be present before serving.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "database.dsn")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.LLM.Key == "" {
		missing = append(missing, "llm.api_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	switch c.LLM.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	return nil
}

// TemperatureValue is the configured sampling temperature.
func (c *LLMConfig) TemperatureValue() float64 {
	if c.Temperature == nil {
		return DefaultTemperature
	}
	return *c.Temperature
}

// Addr is the listen address of the HTTP server.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
