package types

// Role is the author of a chat message.
type Role string

// Message is a single chat message sent to a language model.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token accounting for a completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a language model completion.
type Response struct {
	Content      string      `json:"content"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Model        string      `json:"model,omitempty"`
	TokensUsed   *TokenUsage `json:"tokens_used,omitempty"`
}

// ContextKey is the type of context keys set by this module.
type ContextKey string

const (
	// ContextKeyQueryID carries the id of the query being served.
	ContextKeyQueryID ContextKey = "query_id"
	// ContextKeyDomainID carries the id of the domain doing the work.
	ContextKeyDomainID ContextKey = "domain_id"
	// ContextKeyRequestSource carries where the request entered ("engine", "a2a").
	ContextKeyRequestSource ContextKey = "request_source"
)
