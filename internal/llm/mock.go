package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// MockClient produces deterministic demo output without calling a backend.
// It is used when no provider credentials are configured.
type MockClient struct{}

// Analyze returns a canned analysis sized to the document.
func (MockClient) Analyze(ctx context.Context, input AnalyzeInput) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return Analysis{}, ErrEmptyText
	}
	name := strings.TrimSpace(input.Filename)
	if name == "" {
		name = "This document"
	}
	return Analysis{
		Summary: fmt.Sprintf("%s contains %d characters of contractual text. It sets out terms between the parties, "+
			"including obligations, payments, and how the agreement ends. (Demo analysis)", name, len(input.Text)),
		KeyPoints: []string{
			"The document sets specific terms and conditions for the agreement",
			"Payment obligations and financial responsibilities are described",
			"Liability and risk allocation clauses are present",
			"Termination conditions and procedures are specified",
			"A dispute resolution process is defined",
		},
		Warnings: []string{
			"Review every payment obligation and due date carefully",
			"Check any automatic renewal or early termination penalties",
			"This is a demo analysis; configure an API key for full results",
		},
		SuggestedQuestions: append([]string(nil), DefaultSuggestedQuestions...),
	}, nil
}

// Answer quotes the sentence that best overlaps the question's keywords.
func (MockClient) Answer(ctx context.Context, input AnswerInput) (Answer, error) {
	if err := ctx.Err(); err != nil {
		return Answer{}, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return Answer{}, ErrEmptyText
	}
	keywords := questionKeywords(input.Question)
	best, score := "", 0
	for _, sentence := range splitSentences(input.Text) {
		lower := strings.ToLower(sentence)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
			}
		}
		if hits > score {
			best, score = sentence, hits
		}
	}
	switch {
	case score == 0:
		return Answer{
			Text:       "The document does not appear to address this question. (Demo answer)",
			Confidence: ConfidenceLow,
		}, nil
	case score == 1:
		return Answer{
			Text:          "The document says: " + best,
			SourceExcerpt: best,
			Confidence:    ConfidenceMedium,
		}, nil
	default:
		return Answer{
			Text:          "The document says: " + best,
			SourceExcerpt: best,
			Confidence:    ConfidenceHigh,
		}, nil
	}
}

var stopwords = map[string]struct{}{
	"what": {}, "which": {}, "when": {}, "where": {}, "does": {}, "there": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "have": {}, "will": {}, "about": {}, "document": {},
	"agreement": {}, "should": {}, "would": {}, "could": {}, "the": {}, "and": {}, "are": {},
}

func questionKeywords(q string) []string {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		out = append(out, f)
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, s := range strings.SplitAfter(line, ". ") {
			if trimmed := strings.TrimSpace(s); trimmed != "" && !strings.HasPrefix(trimmed, "--- Page") {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
