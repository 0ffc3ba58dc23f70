package nlp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/types"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 1024
)

// OpenAIClient implements the Client interface for OpenAI and OpenAI-compatible
// chat completion services.
type OpenAIClient struct {
	client *openai.Client
	model  config.ModelConfig
}

// NewOpenAIClient builds a client from the judgment model settings. Model and
// MaxTokens fall back to DefaultModel and DefaultMaxTokens. A BaseURL without
// an API path gets "/v1" appended.
func NewOpenAIClient(mc config.ModelConfig) (*OpenAIClient, error) {
	apiKey := mc.APIKey
	if mc.BaseURL != "" && apiKey == "" {
		// local OpenAI-compatible servers accept any key
		apiKey = "unused"
	}
	oc := openai.DefaultConfig(apiKey)

	if mc.BaseURL != "" {
		if err := validateBaseURL(mc.BaseURL); err != nil {
			return nil, fmt.Errorf("invalid base URL: %w", err)
		}
		base := strings.TrimRight(mc.BaseURL, "/")
		if !hasAPIPath(base) {
			base += "/v1"
		}
		oc.BaseURL = base
	}

	if mc.Model == "" {
		mc.Model = DefaultModel
	}
	if mc.MaxTokens <= 0 {
		mc.MaxTokens = DefaultMaxTokens
	}

	return &OpenAIClient{client: openai.NewClientWithConfig(oc), model: mc}, nil
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, messages []types.Message) (*types.Response, error) {
	return c.complete(ctx, c.buildChatRequest(messages, false))
}

// ChatWithStructuredOutput requests a JSON object response. The schema is described
// in the prompt itself, so it is not forwarded.
func (c *OpenAIClient) ChatWithStructuredOutput(ctx context.Context, messages []types.Message, schema any) (*types.Response, error) {
	return c.complete(ctx, c.buildChatRequest(messages, true))
}

// Close cleans up resources (no-op for OpenAI client).
func (c *OpenAIClient) Close() error {
	return nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (*types.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewEmptyResponseError("no choices returned from chat completion")
	}

	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return nil, NewRefusalError(choice.Message.Refusal)
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, NewEmptyResponseError("chat completion returned empty content")
	}

	response := &types.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
	}

	// Some OpenAI-compatible services do not report usage.
	if resp.Usage.TotalTokens > 0 {
		response.TokensUsed = &types.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}

	return response, nil
}

func (c *OpenAIClient) buildChatRequest(messages []types.Message, structuredOutput bool) openai.ChatCompletionRequest {
	openaiMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		openaiMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model.Model,
		Messages:    openaiMessages,
		Temperature: c.model.Temperature,
		MaxTokens:   c.model.MaxTokens,
	}

	if structuredOutput {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
		if c.model.BaseURL != "" && len(req.Messages) > 0 {
			last := &req.Messages[len(req.Messages)-1]
			if last.Role == string(RoleUser) {
				last.Content += "\n\nPlease respond with valid JSON only."
			}
		}
	}

	return req
}

// classifyError maps go-openai errors onto the package error types so RetryClient
// can tell rate limits from permanent failures.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(reqErr.Error())
	}
	return fmt.Errorf("chat completion failed: %w", err)
}

// validateBaseURL validates the base URL format.
func validateBaseURL(baseURL string) error {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid baseURL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("baseURL must use http:// or https:// scheme")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("baseURL must include a host")
	}
	return nil
}

// hasAPIPath checks if the base URL already includes an API path component.
func hasAPIPath(baseURL string) bool {
	return strings.HasSuffix(baseURL, "/v1") || strings.HasSuffix(baseURL, "/api")
}
