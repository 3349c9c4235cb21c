package core

import "encoding/json"

// ChatCompletionChoice is a backend choice re-projected to the three fields
// clients see. Values are passed through untouched; a missing index is omitted.
type ChatCompletionChoice struct {
	Index        json.RawMessage `json:"index,omitempty"`
	Message      json.RawMessage `json:"message"`
	FinishReason json.RawMessage `json:"finish_reason"`
}

// OpenAIUsage represents token usage statistics in OpenAI format.
type OpenAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the OpenAI-compatible non-streaming chat completion response.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   json.RawMessage        `json:"usage"`
}

// ErrorDetail is the body of the OpenAI error envelope. Code is either a
// string such as "model_not_found" or an HTTP status number.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// ErrorResponse is the shared error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}
