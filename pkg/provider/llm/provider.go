// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (e.g., OpenAI, Anthropic,
// or a local Ollama instance) and exposes a uniform completion call. SkillProbe
// uses it for four kinds of request: transcript cleanup, skill extraction from
// a job description, skill detection in a candidate utterance, and interview
// question generation. None of these need streaming or tool calling, so the
// interface is a single blocking Complete.
//
// Implementors must be safe for concurrent use.
package llm

import (
	"context"
	"errors"
)

// Message is a single message in an LLM conversation.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the LLM backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the LLM needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history. The last message is
	// typically from the "user" role and drives the response.
	Messages []Message

	// Temperature controls output randomness in the range [0.0, 2.0]. Zero
	// leaves the provider default in place.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// SystemPrompt is an optional high-priority instruction injected before the
	// conversation history. Providers without a native system field prepend it
	// as a "system"-role message.
	SystemPrompt string
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	// Content is the full text of the assistant's reply.
	Content string

	// Usage contains token accounting for this request/response pair.
	Usage Usage
}

// Provider is the abstraction over any LLM backend.
//
// Complete should propagate context cancellation promptly: when ctx is
// cancelled the call must return as quickly as possible.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ErrEmptyResponse is returned by [Generate] when the provider answers with no
// response object at all.
var ErrEmptyResponse = errors.New("llm: empty response")

// Generate is the prompt-in, text-out shorthand used by SkillProbe's
// analysis stages. It sends prompt as a single user message with an optional
// system prompt and returns the reply content.
func Generate(ctx context.Context, p Provider, prompt, systemPrompt string, temperature float64) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []Message{{Role: "user", Content: prompt}},
		Temperature:  temperature,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", ErrEmptyResponse
	}
	return resp.Content, nil
}
