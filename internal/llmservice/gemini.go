package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"documate/internal/config"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiCompleter calls the Gemini generateContent API. System turns become
// the system instruction; user turns are sent as contents.
type GeminiCompleter struct {
	models geminiModels
	model  string
}

func NewGeminiCompleter(ctx context.Context, cfg *config.LLMConfig) (*GeminiCompleter, error) {
	if cfg.Key == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.Key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiCompleter{models: client.Models, model: cfg.Model}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, messages []Message, opts Options) (string, error) {
	var system []*genai.Part
	var contents []*genai.Content
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, genai.NewPartFromText(m.Content))
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
	}
	if len(contents) == 0 {
		return "", ErrEmptyPrompt
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(opts.Temperature)),
		MaxOutputTokens: int32(opts.MaxTokens),
	}
	if len(system) > 0 {
		cfg.SystemInstruction = &genai.Content{Parts: system}
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", geminiError(err)
	}
	if res == nil || len(res.Candidates) == 0 {
		log.Warn().Str("model", g.model).Msg("Gemini returned no candidates")
		return "", nil
	}
	if reason := res.Candidates[0].FinishReason; reason != "" && reason != genai.FinishReasonStop {
		log.Warn().Str("finish_reason", string(reason)).Msg("Generation stopped early")
	}
	return res.Text(), nil
}

func geminiError(err error) error {
	if status := contextStatus(err); status != 0 {
		return &StatusError{Status: status, Message: "Google API error: " + err.Error(), Err: err}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Status: apiStatus(apiErr.Code), Message: "Google API error: " + apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &StatusError{Status: apiStatus(apiErrPtr.Code), Message: "Google API error: " + apiErrPtr.Message, Err: err}
	}
	return &StatusError{Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
}

func apiStatus(code int) int {
	if code < 400 || code > 599 {
		return http.StatusBadGateway
	}
	return code
}
