package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// chatCompletion sends one chat completion request and returns the trimmed text of the first choice.
// Failures are mapped onto the gateway error kinds for provider.
func chatCompletion(ctx context.Context, client *openai.Client, provider string, req openai.ChatCompletionRequest) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyChatError(provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", newGatewayError(provider, ErrProviderRejected, fmt.Errorf("translation response missing choices"))
	}
	translated := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translated == "" {
		return "", newGatewayError(provider, ErrProviderRejected, fmt.Errorf("translation response was empty"))
	}
	return translated, nil
}

func classifyChatError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return errorFromStatus(provider, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		message := ""
		if reqErr.Err != nil {
			message = reqErr.Err.Error()
		}
		return errorFromStatus(provider, reqErr.HTTPStatusCode, message)
	}
	return errorFromTransport(provider, fmt.Errorf("chat completion: %w", err))
}
