package llm

import "context"

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client generates a completion for an ordered message sequence.
// The caller decides which prompt goes in; the client is prompt-agnostic.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
