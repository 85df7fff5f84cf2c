package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultLibreTranslateURL is the default base URL of a self-hosted LibreTranslate server.
const DefaultLibreTranslateURL = "http://127.0.0.1:5000"

// LibreTranslateProvider translates text with the LibreTranslate /translate API.
type LibreTranslateProvider struct {
	baseURL   string
	apiKey    string
	languages []string
	client    *http.Client
}

// NewLibreTranslateProvider builds a provider for baseURL. languages restricts the accepted targets;
// nil accepts whatever the server accepts.
func NewLibreTranslateProvider(baseURL, apiKey string, languages []string) *LibreTranslateProvider {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultLibreTranslateURL
	}
	return &LibreTranslateProvider{
		baseURL:   trimmed,
		apiKey:    strings.TrimSpace(apiKey),
		languages: sortedCodes(languages),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (p *LibreTranslateProvider) Name() string {
	return "libretranslate"
}

func (p *LibreTranslateProvider) SupportedLanguages() []string {
	return p.languages
}

type libreTranslateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreTranslateResponse struct {
	TranslatedText   string `json:"translatedText"`
	DetectedLanguage *struct {
		Language string `json:"language"`
	} `json:"detectedLanguage,omitempty"`
}

type libreTranslateError struct {
	Error string `json:"error"`
}

func (p *LibreTranslateProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, newGatewayError(p.Name(), ErrEmptyText, nil)
	}
	targetLang := normalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, newGatewayError(p.Name(), ErrUnsupportedLanguage, fmt.Errorf("target language is required"))
	}
	sourceLang := normalizeLangCode(req.SourceLang)
	source := sourceLang
	if source == "" {
		source = "auto"
	}

	body, err := json.Marshal(libreTranslateRequest{
		Q:      text,
		Source: source,
		Target: targetLang,
		Format: "text",
		APIKey: p.apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal libretranslate request: %w", err)
	}

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build libretranslate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errorFromTransport(p.Name(), fmt.Errorf("send libretranslate request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errorFromTransport(p.Name(), fmt.Errorf("read libretranslate response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		var errPayload libreTranslateError
		if json.Unmarshal(respBody, &errPayload) == nil && strings.TrimSpace(errPayload.Error) != "" {
			return nil, errorFromStatus(p.Name(), resp.StatusCode, errPayload.Error)
		}
		return nil, errorFromStatus(p.Name(), resp.StatusCode, string(respBody))
	}

	var parsed libreTranslateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, newGatewayError(p.Name(), ErrProviderRejected, fmt.Errorf("decode libretranslate response: %w", err))
	}
	translated := strings.TrimSpace(parsed.TranslatedText)
	if translated == "" {
		return nil, newGatewayError(p.Name(), ErrProviderRejected, fmt.Errorf("libretranslate returned empty text"))
	}
	if sourceLang == "" && parsed.DetectedLanguage != nil {
		sourceLang = normalizeLangCode(parsed.DetectedLanguage.Language)
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}
