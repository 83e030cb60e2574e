package config

import "time"

const (
	DefaultTemperature = 0.7
	DefaultGeminiModel = "gemini-1.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"*"}
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 120 * time.Second
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = "authenticated"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderGemini
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case ProviderGemini:
			cfg.LLM.Model = DefaultGeminiModel
		case ProviderOpenAI:
			cfg.LLM.Model = DefaultOpenAIModel
		}
	}
	if cfg.LLM.Temperature == nil {
		t := DefaultTemperature
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4000
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Export.TemplatesDir == "" {
		cfg.Export.TemplatesDir = "./templates"
	}
	if cfg.Export.ImageTimeout == 0 {
		cfg.Export.ImageTimeout = 10 * time.Second
	}
	if cfg.Export.ImageMaxBytes == 0 {
		cfg.Export.ImageMaxBytes = 10 << 20
	}
	if cfg.Export.ImageMaxPixels == 0 {
		cfg.Export.ImageMaxPixels = 40_000_000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
