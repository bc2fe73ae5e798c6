package llm

import (
	"context"
	"errors"
	"strings"
)

// Client abstracts generative backends for legal document analysis.
type Client interface {
	Analyze(ctx context.Context, input AnalyzeInput) (Analysis, error)
	Answer(ctx context.Context, input AnswerInput) (Answer, error)
}

// AnalyzeInput carries the extracted document text.
type AnalyzeInput struct {
	Text     string
	Filename string
}

// AnswerInput carries the document text and the user's question.
type AnswerInput struct {
	Text     string
	Question string
}

// Analysis is the structured result of analyzing a document. Treat as immutable once produced.
type Analysis struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"keyPoints"`
	Warnings           []string `json:"warnings"`
	SuggestedQuestions []string `json:"suggestedQuestions"`
}

// Answer is a grounded reply to a question about a document.
type Answer struct {
	Text          string     `json:"answer"`
	SourceExcerpt string     `json:"sourceExcerpt,omitempty"`
	Confidence    Confidence `json:"confidence"`
}

// Confidence labels how well an answer is supported by the document.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// ParseConfidence maps free-form model output onto a Confidence, defaulting to medium.
func ParseConfidence(raw string) Confidence {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return ConfidenceHigh
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceMedium
	}
}

var (
	// ErrMalformedResponse is returned when a backend reply cannot be parsed into the expected shape.
	ErrMalformedResponse = errors.New("malformed llm response")
	// ErrEmptyText is returned when a request carries no document text.
	ErrEmptyText = errors.New("document text is empty")
)
