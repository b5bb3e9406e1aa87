package ai

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"

	"virtus/internal/retry"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		rateLimited bool
	}{
		{"nil", nil, false},
		{"api 429", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}, true},
		{"api 500", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError, Message: "boom"}, false},
		{"quota text", errors.New("RESOURCE_EXHAUSTED: quota exceeded for model"), true},
		{"rate limit text", errors.New("Rate limit reached for requests"), true},
		{"status text", errors.New("status code 429 returned"), true},
		{"transport", errors.New("connection refused"), false},
		{"malformed", errors.New("unexpected end of JSON input"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyProviderError(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("got=%v want=nil", got)
				}
				return
			}
			if retry.IsRateLimited(got) != tt.rateLimited {
				t.Fatalf("IsRateLimited=%v want=%v (err=%v)", retry.IsRateLimited(got), tt.rateLimited, got)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("classified error lost its cause: %v", got)
			}
		})
	}
}
