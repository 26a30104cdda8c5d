package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

// OpenAIClient talks to any OpenAI compatible chat completions endpoint
// (OpenAI, DeepSeek).
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIClient(apiKey, baseURL, model string, timeout time.Duration) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is empty")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		maxTokens:   500,
		temperature: 0.7,
	}, nil
}

var _ interfaces.AIClient = (*OpenAIClient)(nil)

// Chat sends messages and returns the first choice's text.
func (c *OpenAIClient) Chat(ctx context.Context, messages []entities.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion: empty content")
	}
	return content, nil
}
