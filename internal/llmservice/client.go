package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"documate/internal/config"
)

// EmptyResponseMessage replaces a successful but empty completion, so raw
// transport data never reaches the user.
const EmptyResponseMessage = "Error: The AI could not generate content for this section. Please try refining the title or regenerating."

var ErrEmptyPrompt = errors.New("no user message to send")

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

type Message struct {
	Role    Role
	Content string
}

type Options struct {
	Temperature float64
	MaxTokens   int
}

// Completer sends role-tagged turns to a text-generation backend.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}

// StatusError is a failed upstream call with the HTTP-like status to report.
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	return e.Message
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewCompleter builds the backend selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg *config.LLMConfig) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiCompleter(ctx, cfg)
	case config.ProviderOpenAI:
		return NewLangChainCompleter(cfg)
	}
	return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
}

// contextStatus maps context failures to a gateway status, or 0.
func contextStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	}
	return 0
}
