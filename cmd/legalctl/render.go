package main

import (
	"fmt"
	"strings"

	"legal-ease-backend/internal/orchestrator"
)

// textReplies renders outcomes as plain terminal text.
type textReplies struct{}

func (textReplies) AnalysisReady(v orchestrator.AnalysisReady) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s (%d pages, %d characters)\n\n", v.Filename, v.PageCount, v.TextLength)
	fmt.Fprintf(&b, "SUMMARY\n%s\n", v.Analysis.Summary)
	writeList(&b, "KEY POINTS", v.Analysis.KeyPoints)
	writeList(&b, "WARNINGS", v.Analysis.Warnings)
	writeList(&b, "SUGGESTED QUESTIONS", v.Analysis.SuggestedQuestions)
	return strings.TrimRight(b.String(), "\n")
}

func (textReplies) ExtractionFailed(v orchestrator.ExtractionFailed) string {
	return "extraction failed: " + v.Reason
}

func (textReplies) AnalysisFailed(v orchestrator.AnalysisFailed) string {
	return "analysis failed: " + v.Reason
}

func (textReplies) Superseded(orchestrator.Superseded) string {
	return "superseded by a newer upload"
}

func (textReplies) QAAnswered(v orchestrator.QAAnswered) string {
	e := v.Exchange
	s := fmt.Sprintf("\nQ: %s\nA: %s\nConfidence: %s", e.Question, e.Answer, e.Confidence)
	if e.SourceExcerpt != "" {
		s += "\nSource: " + e.SourceExcerpt
	}
	return s
}

func (textReplies) StillProcessing(orchestrator.StillProcessing) string {
	return "document is still being analyzed"
}

func (textReplies) NoActiveDocument(orchestrator.NoActiveDocument) string {
	return "no active document"
}

func (textReplies) QAFailed(v orchestrator.QAFailed) string { return "question failed: " + v.Reason }

func (textReplies) RateLimited(v orchestrator.RateLimited) string {
	return fmt.Sprintf("rate limited (%s); retry in %ds", v.Scope, v.RetryAfterSeconds())
}

func (textReplies) InvalidInput(v orchestrator.InvalidInput) string {
	return fmt.Sprintf("invalid input (%s): %s", v.Code, v.Reason)
}

func (textReplies) Reset(orchestrator.Reset) string { return "session reset" }

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for i, item := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, item)
	}
}
