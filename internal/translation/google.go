package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleEndpoint is the Cloud Translation v2 REST endpoint.
const DefaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"

// GoogleProvider calls the Google Cloud Translation v2 REST API with an API key.
type GoogleProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewGoogleProvider(apiKey string) *GoogleProvider {
	return &GoogleProvider{
		endpoint: DefaultGoogleEndpoint,
		apiKey:   strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoint points the provider at another base URL, for example a regional endpoint.
func (p *GoogleProvider) WithEndpoint(endpoint string) *GoogleProvider {
	if trimmed := strings.TrimRight(strings.TrimSpace(endpoint), "/"); trimmed != "" {
		p.endpoint = trimmed
	}
	return p
}

func (p *GoogleProvider) Name() string {
	return "google"
}

// SupportedLanguages is empty: Google accepts every target it knows and rejects the rest with 400.
func (p *GoogleProvider) SupportedLanguages() []string {
	return nil
}

type googleTranslateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type googleTranslateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
}

type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *GoogleProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p.apiKey == "" {
		return nil, newGatewayError(p.Name(), ErrProviderUnavailable, fmt.Errorf("GOOGLE_TRANSLATE_API_KEY is not set"))
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

	body, err := json.Marshal(googleTranslateRequest{
		Q:      []string{text},
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal google translate request: %w", err)
	}

	endpoint := p.endpoint + "?key=" + url.QueryEscape(p.apiKey)
	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build google translate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		// The request URL carries the API key; keep it out of logged errors.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, errorFromTransport(p.Name(), fmt.Errorf("send google translate request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errorFromTransport(p.Name(), fmt.Errorf("read google translate response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		var errPayload googleErrorResponse
		if json.Unmarshal(respBody, &errPayload) == nil && strings.TrimSpace(errPayload.Error.Message) != "" {
			return nil, errorFromStatus(p.Name(), resp.StatusCode, errPayload.Error.Message)
		}
		return nil, errorFromStatus(p.Name(), resp.StatusCode, string(respBody))
	}

	var parsed googleTranslateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, newGatewayError(p.Name(), ErrProviderRejected, fmt.Errorf("decode google translate response: %w", err))
	}
	if len(parsed.Data.Translations) == 0 {
		return nil, newGatewayError(p.Name(), ErrProviderRejected, fmt.Errorf("google translate response missing translations"))
	}

	first := parsed.Data.Translations[0]
	translated := strings.TrimSpace(html.UnescapeString(first.TranslatedText))
	if translated == "" {
		return nil, newGatewayError(p.Name(), ErrProviderRejected, fmt.Errorf("google translate returned empty text"))
	}
	if sourceLang == "" {
		sourceLang = normalizeLangCode(first.DetectedSourceLanguage)
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   sourceLang,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}
