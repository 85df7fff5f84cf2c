package translation

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultLocalEndpoint is a self-hosted OpenAI-compatible server, such as vLLM serving HY-MT.
	DefaultLocalEndpoint = "http://127.0.0.1:8845/v1"
	DefaultLocalModel    = "tencent/HY-MT1.5-7B"
)

// LocalProvider translates with a self-hosted machine translation model behind an OpenAI-compatible
// chat endpoint. HY-MT expects a single user message and no system prompt.
type LocalProvider struct {
	client  *openai.Client
	baseURL string
	model   string
}

// NewLocalProvider builds a provider for endpoint and model. Empty values use the defaults.
func NewLocalProvider(endpoint, model string) *LocalProvider {
	baseURL := normalizeEndpoint(endpoint)
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultLocalModel
	}

	cfg := openai.DefaultConfig("")
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	return &LocalProvider{
		client:  openai.NewClientWithConfig(cfg),
		baseURL: baseURL,
		model:   trimmedModel,
	}
}

func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) ModelName() string {
	return p.model
}

func (p *LocalProvider) SupportedLanguages() []string {
	return sortedCodes(localLanguageCodes)
}

func (p *LocalProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newGatewayError(p.Name(), ErrEmptyText, nil)
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, newGatewayError(p.Name(), ErrUnsupportedLanguage, fmt.Errorf("target language is required"))
	}
	sourceLang := normalizeLangCode(req.SourceLang)

	started := time.Now()
	translated, err := chatCompletion(ctx, p.client, p.Name(), openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: localPrompt(text, sourceLang, targetLang)},
		},
		Temperature: 0.7,
		TopP:        0.6,
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

// localPrompt renders the HY-MT instruction. Pairs involving Chinese use the model's Chinese template.
func localPrompt(text, sourceLang, targetLang string) string {
	if isChineseLanguage(sourceLang) || isChineseLanguage(targetLang) {
		return fmt.Sprintf("将以下文本翻译为%s，注意只需要输出翻译后的结果，不要额外解释：\n\n%s", languageName(targetLang, true), text)
	}
	return fmt.Sprintf("Translate the following segment into %s, without additional explanation.\n\n%s", languageName(targetLang, false), text)
}

func isChineseLanguage(lang string) bool {
	return strings.HasPrefix(normalizeLangCode(lang), "zh")
}

// normalizeEndpoint returns the API base URL the client appends /chat/completions to. Bare hosts get
// http:// and /v1; a full chat completions URL is cut back to its base.
func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultLocalEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return DefaultLocalEndpoint
	}
	path := strings.TrimSuffix(strings.TrimRight(parsed.Path, "/"), "/chat/completions")
	if path == "" {
		path = "/v1"
	}
	parsed.Path = path
	return parsed.String()
}
