package nlp

import (
	"context"

	"github.com/soundprediction/lexigraph/pkg/types"
)

// Client is a chat completion backend used for judgments.
type Client interface {
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)
	// ChatWithStructuredOutput asks for a single JSON object. Implementations
	// may describe the schema in the prompt instead of forwarding it.
	ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error)
	Close() error
}

const (
	RoleSystem types.Role = "system"
	RoleUser   types.Role = "user"
)

func NewSystemMessage(content string) types.Message {
	return types.Message{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) types.Message {
	return types.Message{Role: RoleUser, Content: content}
}
