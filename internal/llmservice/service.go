package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"documate/internal/config"
	"documate/internal/models"

	"github.com/rs/zerolog/log"
)

// Service holds the prompts for outline, section and refinement requests.
type Service struct {
	completer Completer
	opts      Options
	timeout   time.Duration
}

func NewService(completer Completer, cfg *config.LLMConfig) *Service {
	return &Service{
		completer: completer,
		opts:      Options{Temperature: cfg.TemperatureValue(), MaxTokens: cfg.MaxTokens},
		timeout:   cfg.Timeout,
	}
}

// GenerateOutline returns the raw model text for an outline request. The
// caller extracts the items.
func (s *Service) GenerateOutline(ctx context.Context, topic, documentType string) (string, error) {
	system := fmt.Sprintf(models.OutlinePromptTemplate, documentType, models.OutlineSectionCount(documentType))
	return s.complete(ctx, system, "Topic: "+topic)
}

func (s *Service) GenerateSectionContent(ctx context.Context, sectionTitle, topic, documentType string) (string, error) {
	tmpl := models.SlideContentPromptTemplate
	if strings.EqualFold(documentType, models.DocumentTypeWord) {
		tmpl = models.WordContentPromptTemplate
	}
	system := fmt.Sprintf(tmpl, sectionTitle, topic)
	return s.complete(ctx, system, "Generate content for section titled: "+sectionTitle)
}

func (s *Service) RefineContent(ctx context.Context, currentContent, prompt, documentType string) (string, error) {
	system := fmt.Sprintf(models.RefinePromptTemplate, documentType, currentContent, prompt)
	return s.complete(ctx, system, prompt)
}

func (s *Service) complete(ctx context.Context, system, user string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.completer.Complete(ctx, []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}, s.opts)
	if err != nil {
		log.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Completion failed")
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		log.Warn().Dur("elapsed", time.Since(start)).Msg("Empty completion, substituting message")
		return EmptyResponseMessage, nil
	}
	log.Debug().Int("chars", len(text)).Dur("elapsed", time.Since(start)).Msg("Completion received")
	return text, nil
}
