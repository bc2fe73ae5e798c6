package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultSuggestedQuestions is used when a backend omits follow-up questions.
var DefaultSuggestedQuestions = []string{
	"What are the payment terms?",
	"How can this agreement be terminated?",
	"What are my main obligations?",
}

type analysisPayload struct {
	Summary            string   `json:"summary"`
	KeyPoints          []string `json:"key_points"`
	Warnings           []string `json:"warnings"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

type answerPayload struct {
	Answer        string `json:"answer"`
	SourceSection string `json:"source_section"`
	Confidence    string `json:"confidence"`
}

// ParseAnalysis decodes a backend reply into an Analysis.
func ParseAnalysis(raw string) (Analysis, error) {
	obj, err := jsonObject(raw)
	if err != nil {
		return Analysis{}, err
	}
	var p analysisPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		return Analysis{}, fmt.Errorf("%w: empty summary", ErrMalformedResponse)
	}
	questions := cleanList(p.SuggestedQuestions)
	if len(questions) == 0 {
		questions = append([]string(nil), DefaultSuggestedQuestions...)
	}
	return Analysis{
		Summary:            summary,
		KeyPoints:          cleanList(p.KeyPoints),
		Warnings:           cleanList(p.Warnings),
		SuggestedQuestions: questions,
	}, nil
}

// ParseAnswer decodes a backend reply into an Answer.
func ParseAnswer(raw string) (Answer, error) {
	obj, err := jsonObject(raw)
	if err != nil {
		return Answer{}, err
	}
	var p answerPayload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return Answer{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	text := strings.TrimSpace(p.Answer)
	if text == "" {
		return Answer{}, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}
	return Answer{
		Text:          text,
		SourceExcerpt: strings.TrimSpace(p.SourceSection),
		Confidence:    ParseConfidence(p.Confidence),
	}, nil
}

// jsonObject returns the outermost {...} span of raw, tolerating code fences and chatter.
func jsonObject(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("%w: no JSON object", ErrMalformedResponse)
	}
	return raw[start : end+1], nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
