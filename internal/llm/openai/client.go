package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"legal-ease-backend/internal/llm"
)

const providerName = "openai"

var apiURL = "https://api.openai.com/v1/chat/completions"

// Client implements llm.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. Per-call deadlines come from the
// caller's context; timeout only bounds a single HTTP exchange.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = "You explain legal documents in plain language and reply with a single JSON object."

// Analyze implements llm.Client.
func (c *Client) Analyze(ctx context.Context, input llm.AnalyzeInput) (llm.Analysis, error) {
	if strings.TrimSpace(input.Text) == "" {
		return llm.Analysis{}, llm.ErrEmptyText
	}
	raw, err := c.complete(ctx, "analyze", llm.AnalysisPrompt(input))
	if err != nil {
		return llm.Analysis{}, err
	}
	return llm.ParseAnalysis(raw)
}

// Answer implements llm.Client.
func (c *Client) Answer(ctx context.Context, input llm.AnswerInput) (llm.Answer, error) {
	if strings.TrimSpace(input.Text) == "" {
		return llm.Answer{}, llm.ErrEmptyText
	}
	raw, err := c.complete(ctx, "answer", llm.AnswerPrompt(input))
	if err != nil {
		return llm.Answer{}, err
	}
	return llm.ParseAnswer(raw)
}

// complete sends prompt once, retrying a single time without temperature when
// the model rejects the parameter.
func (c *Client) complete(ctx context.Context, op, prompt string) (string, error) {
	withTemp := !isGPT5(c.model)
	content, err := c.completeOnce(ctx, op, prompt, withTemp)
	if err != nil && withTemp && isTemperatureUnsupported(err) {
		log.Printf("llm retry without temperature model=%s operation=%s", c.model, op)
		content, err = c.completeOnce(ctx, op, prompt, false)
	}
	return content, err
}

func (c *Client) completeOnce(ctx context.Context, op, prompt string, withTemp bool) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: responseFormat{
			Type: "json_object",
		},
	}
	if withTemp {
		temp := float32(0.2)
		reqBody.Temperature = &temp
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("openai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return "", &llm.StatusError{Provider: providerName, Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return "", fmt.Errorf("%w: openai response parse: %v", llm.ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		code := resp.StatusCode
		if code < http.StatusBadRequest {
			code = http.StatusBadRequest
		}
		return "", &llm.StatusError{
			Provider: providerName,
			Code:     code,
			Message:  fmt.Sprintf("%s (%s)", parsed.Error.Message, parsed.Error.Type),
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &llm.StatusError{Provider: providerName, Code: resp.StatusCode}
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: openai response missing choices", llm.ErrMalformedResponse)
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%w: openai response empty content", llm.ErrMalformedResponse)
	}
	logUsage(c.model, op, parsed.Usage)
	return content, nil
}

func logUsage(model, op string, usage *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) {
	if usage == nil {
		log.Printf("llm response model=%s operation=%s", model, op)
		return
	}
	log.Printf("llm response model=%s operation=%s prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, op, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func isTemperatureUnsupported(err error) bool {
	var statusErr *llm.StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	msg := strings.ToLower(statusErr.Message)
	return strings.Contains(msg, "temperature") && strings.Contains(msg, "unsupported")
}

var _ llm.Client = (*Client)(nil)
