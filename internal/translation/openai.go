package translation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is used when OPENAI_MODEL is unset.
const DefaultOpenAIModel = openai.GPT4oMini

// OpenAIProvider translates with OpenAI chat completions.
type OpenAIProvider struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAIProvider builds a provider for the public API. baseURL may point at any OpenAI-compatible
// server; empty keeps the default.
func NewOpenAIProvider(apiKey, model, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(strings.TrimSpace(apiKey))
	if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
		cfg.BaseURL = strings.TrimRight(trimmed, "/")
	}
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		apiKey: strings.TrimSpace(apiKey),
		model:  trimmedModel,
	}
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) ModelName() string {
	return p.model
}

func (p *OpenAIProvider) SupportedLanguages() []string {
	return nil
}

func (p *OpenAIProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p.apiKey == "" {
		return nil, newGatewayError(p.Name(), ErrProviderUnavailable, fmt.Errorf("OPENAI_API_KEY is not set"))
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newGatewayError(p.Name(), ErrEmptyText, nil)
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, newGatewayError(p.Name(), ErrUnsupportedLanguage, fmt.Errorf("target language is required"))
	}
	sourceLang := normalizeLangCode(req.SourceLang)

	instruction := fmt.Sprintf(
		"Translate the user's text into %s (%s). Respond with only the translation, nothing else.",
		languageName(targetLang, false), targetLang,
	)
	if sourceLang != "" {
		instruction = fmt.Sprintf(
			"Translate the user's text from %s into %s (%s). Respond with only the translation, nothing else.",
			languageName(sourceLang, false), languageName(targetLang, false), targetLang,
		)
	}

	started := time.Now()
	translated, err := chatCompletion(ctx, p.client, p.Name(), openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}
