package translation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrGateway matches every failure reported by a translation provider.
var ErrGateway = errors.New("translation gateway failure")

var (
	ErrEmptyText           = errors.New("text is empty")
	ErrUnsupportedLanguage = errors.New("language is not supported")
	ErrRateLimited         = errors.New("translation provider rate limited")
	ErrProviderUnavailable = errors.New("translation provider unavailable")
	ErrProviderRejected    = errors.New("translation provider rejected the request")
)

// GatewayError carries the failure kind (one of the Err* sentinels) and the underlying cause.
type GatewayError struct {
	Provider   string
	Kind       error
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway || target == e.Kind
}

func newGatewayError(provider string, kind error, cause error) *GatewayError {
	return &GatewayError{Provider: provider, Kind: kind, Err: cause}
}

// IsRetryable reports whether a later attempt may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrProviderUnavailable)
}

// maxErrorMessageRunes bounds provider messages copied into errors, job rows and logs.
const maxErrorMessageRunes = 300

// errorFromStatus maps a non-2xx provider response onto a gateway error.
func errorFromStatus(provider string, status int, message string) *GatewayError {
	kind := ErrProviderRejected
	switch {
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		kind = ErrProviderUnavailable
	}

	var cause error
	if msg := strings.TrimSpace(message); msg != "" {
		if runes := []rune(msg); len(runes) > maxErrorMessageRunes {
			msg = string(runes[:maxErrorMessageRunes])
		}
		cause = errors.New(msg)
	}
	return &GatewayError{Provider: provider, Kind: kind, StatusCode: status, Err: cause}
}

// errorFromTransport maps network failures and deadline expiry onto ErrProviderUnavailable.
func errorFromTransport(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrGateway) {
		return err
	}
	// A caller that went away is not the provider's fault.
	if errors.Is(err, context.Canceled) {
		return err
	}
	return newGatewayError(provider, ErrProviderUnavailable, err)
}
