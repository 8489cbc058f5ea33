package domain

import "context"

// CompletionRequest is a single synchronous request to the generation model.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
	// JSONOutput asks the model for a JSON object response.
	JSONOutput bool
}

// Completion is the model output with token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Completer is the generation model contract.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
