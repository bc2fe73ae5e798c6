package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"legal-ease-backend/internal/llm"
)

func stubClient(reply string, err error, seen *string) *Client {
	return &Client{
		model: "gemini-2.0-flash",
		generate: func(ctx context.Context, prompt string) (string, error) {
			if seen != nil {
				*seen = prompt
			}
			return reply, err
		},
	}
}

func TestAnalyzeParsesReply(t *testing.T) {
	var prompt string
	c := stubClient(`{"summary":"Lease for 12 months.","key_points":["Rent $1,200"],"warnings":[]}`, nil, &prompt)

	got, err := c.Analyze(context.Background(), llm.AnalyzeInput{Text: "lease body", Filename: "lease.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "Lease for 12 months.", got.Summary)
	assert.Equal(t, []string{"Rent $1,200"}, got.KeyPoints)
	assert.Contains(t, prompt, "lease.pdf")
	assert.Contains(t, prompt, "lease body")
}

func TestAnswerPropagatesBackendError(t *testing.T) {
	boom := &llm.StatusError{Provider: providerName, Code: 429, Message: "quota"}
	c := stubClient("", boom, nil)

	_, err := c.Answer(context.Background(), llm.AnswerInput{Text: "doc", Question: "q?"})
	require.ErrorIs(t, err, boom)
}

func TestAnswerMalformedReply(t *testing.T) {
	c := stubClient("I cannot help with that.", nil, nil)
	_, err := c.Answer(context.Background(), llm.AnswerInput{Text: "doc", Question: "q?"})
	require.ErrorIs(t, err, llm.ErrMalformedResponse)
}

func TestEmptyTextShortCircuits(t *testing.T) {
	called := false
	c := &Client{generate: func(context.Context, string) (string, error) {
		called = true
		return "", nil
	}}
	_, err := c.Analyze(context.Background(), llm.AnalyzeInput{Text: " "})
	require.ErrorIs(t, err, llm.ErrEmptyText)
	assert.False(t, called)
}

func TestResponseTextJoinsParts(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: `{"answer":`}, {Text: `"yes"}`}}},
	}}}
	assert.Equal(t, `{"answer":"yes"}`, responseText(resp))
	assert.Empty(t, responseText(nil))
}

func TestTranslateErrorMapsAPIError(t *testing.T) {
	err := translateError(genai.APIError{Code: 503, Message: "overloaded"})
	var status *llm.StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, 503, status.Code)
	assert.True(t, llm.ShouldRetry(err))

	err = translateError(errors.New("dial tcp: connection refused"))
	assert.True(t, strings.HasPrefix(err.Error(), "gemini generate:"))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "gemini-2.0-flash")
	require.Error(t, err)
}
