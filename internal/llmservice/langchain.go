package llmservice

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"documate/internal/config"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

var statusCodeRe = regexp.MustCompile(`status code:? (\d{3})`)

type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangChainCompleter talks to any OpenAI-compatible endpoint (OpenAI,
// OpenRouter, a local gateway) through langchaingo.
type LangChainCompleter struct {
	llm contentGenerator
}

func NewLangChainCompleter(cfg *config.LLMConfig) (*LangChainCompleter, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating OpenAI-compatible client")
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &LangChainCompleter{llm: llm}, nil
}

func (c *LangChainCompleter) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	hasUser := false
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == RoleSystem {
			role = llms.ChatMessageTypeSystem
		} else {
			hasUser = true
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	if !hasUser {
		return "", ErrEmptyPrompt
	}

	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	)
	if err != nil {
		return "", langChainError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	choice := resp.Choices[0]
	if reason := strings.ToLower(choice.StopReason); reason != "" && reason != "stop" {
		log.Warn().Str("stop_reason", choice.StopReason).Msg("Generation stopped early")
	}
	return choice.Content, nil
}

func langChainError(err error) error {
	status := contextStatus(err)
	if status == 0 {
		status = http.StatusBadGateway
		if m := statusCodeRe.FindStringSubmatch(err.Error()); m != nil {
			if code, convErr := strconv.Atoi(m[1]); convErr == nil && code >= 400 {
				status = code
			}
		}
	}
	return &StatusError{Status: status, Message: "LLM API error: " + err.Error(), Err: err}
}
