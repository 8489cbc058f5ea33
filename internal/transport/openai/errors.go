package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// wrapAPIError tags err with sentinel and keeps the provider's own message.
// Nebius-style bodies carry it in "detail" instead of the OpenAI error envelope.
func wrapAPIError(what string, err, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := extractDetail(reqErr.Body)
		if msg == "" {
			msg = string(reqErr.Body)
		}
		return fmt.Errorf("%s: HTTP %d: %s: %w", what, reqErr.HTTPStatusCode, msg, sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%s: HTTP %d: %s: %w", what, apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}
	return fmt.Errorf("%s: %w: %w", what, sentinel, err)
}

func extractDetail(body []byte) string {
	var b struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &b); err != nil {
		return ""
	}
	return b.Detail
}
