package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/shared/telemetry"
)

const providerName = "gemini"

// Client implements llm.Client on the Gemini API.
type Client struct {
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

// NewClient constructs a Gemini client for the given API key and model.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for Gemini")
	}
	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	c := &Client{model: model}
	c.generate = func(ctx context.Context, prompt string) (string, error) {
		return generateText(ctx, sdk, model, prompt)
	}
	return c, nil
}

// Analyze implements llm.Client.
func (c *Client) Analyze(ctx context.Context, input llm.AnalyzeInput) (llm.Analysis, error) {
	if strings.TrimSpace(input.Text) == "" {
		return llm.Analysis{}, llm.ErrEmptyText
	}
	raw, err := c.call(ctx, "analyze", llm.AnalysisPrompt(input))
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
	raw, err := c.call(ctx, "answer", llm.AnswerPrompt(input))
	if err != nil {
		return llm.Answer{}, err
	}
	return llm.ParseAnswer(raw)
}

func (c *Client) call(ctx context.Context, op, prompt string) (string, error) {
	start := time.Now()
	raw, err := c.generate(ctx, prompt)
	fields := map[string]any{
		"provider":     providerName,
		"model":        c.model,
		"operation":    op,
		"prompt_chars": len(prompt),
		"duration_ms":  float64(time.Since(start).Microseconds()) / 1000.0,
	}
	if err != nil {
		fields["error"] = err
		telemetry.Error("llm.call_failed", fields)
		return "", err
	}
	fields["response_chars"] = len(raw)
	telemetry.Info("llm.call", fields)
	return raw, nil
}

func generateText(ctx context.Context, sdk *genai.Client, model, prompt string) (string, error) {
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(0.2)),
		MaxOutputTokens:  2048,
		ResponseMIMEType: "application/json",
	}
	resp, err := sdk.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", translateError(err)
	}
	text := responseText(resp)
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: gemini returned no candidates", llm.ErrMalformedResponse)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func translateError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Provider: providerName, Code: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llm.StatusError{Provider: providerName, Code: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini generate: %w", err)
}
