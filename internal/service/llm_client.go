package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/errors"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/pkg/retry"
)

// GenerateOptions tunes one completion call.
type GenerateOptions struct {
	Temperature float64
	MaxTokens   int
}

// Completion is the model output plus reported token usage.
type Completion struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient is the narrow interface to the chat-completion service.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Completion, error)
}

// OpenAILLMClient implements LLMClient against an OpenAI-compatible
// chat completions API.
type OpenAILLMClient struct {
	Endpoint   string
	APIKey     string
	Model      string
	Policy     retry.Policy
	HTTPClient *http.Client
}

func NewOpenAILLMClient(endpoint, apiKey, model string, timeout time.Duration, policy retry.Policy) *OpenAILLMClient {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if policy.MaxRetries == 0 {
		policy = retry.DefaultPolicy()
	}
	return &OpenAILLMClient{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		Model:      model,
		Policy:     policy,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int         `json:"index"`
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Generate sends the prompt and returns the first choice. Timeouts, resets,
// 429 and 5xx retry; auth failures and other 4xx surface immediately.
func (c *OpenAILLMClient) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*Completion, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperrors.ErrEmptyInput
	}

	model := c.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4000
	}
	temperature := opts.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	reqBody := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	}

	var completion *Completion
	err := retry.Do(ctx, c.Policy, func(ctx context.Context) error {
		var err error
		completion, err = c.call(ctx, reqBody)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCancelled, "generation cancelled")
		}
		return nil, apperrors.Wrap(err, apperrors.ErrLLMService, "completion failed")
	}
	return completion, nil
}

func (c *OpenAILLMClient) call(ctx context.Context, reqBody chatRequest) (*Completion, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.Endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("LLM API error: status %d, body: %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, err
		}
		return nil, retry.Permanent(err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, retry.Permanent(fmt.Errorf("LLM API error: %s (type: %s, code: %s)",
			chatResp.Error.Message, chatResp.Error.Type, chatResp.Error.Code))
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in LLM response")
	}

	return &Completion{
		Text:             chatResp.Choices[0].Message.Content,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
		TotalTokens:      chatResp.Usage.TotalTokens,
	}, nil
}
