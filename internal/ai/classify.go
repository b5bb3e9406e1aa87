package ai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"virtus/internal/retry"
)

// classifyProviderError tags quota-class failures as retryable. This is
// the only place that inspects provider error text; everything above it
// switches on the typed wrapper.
func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &retry.RateLimitedError{Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "quota", "exhausted", "rate limit"} {
		if strings.Contains(msg, marker) {
			return &retry.RateLimitedError{Err: err}
		}
	}
	return err
}
