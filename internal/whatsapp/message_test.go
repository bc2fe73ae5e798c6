package whatsapp

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/orchestrator"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want Kind
	}{
		{"pdf media", Message{NumMedia: 1, MediaURL: "https://m/1", MediaContentType: "application/pdf"}, KindUpload},
		{"pdf media with caption", Message{Body: "help", NumMedia: 1, MediaURL: "https://m/1", MediaContentType: "application/pdf"}, KindUpload},
		{"image media", Message{NumMedia: 1, MediaURL: "https://m/1", MediaContentType: "image/jpeg"}, KindUnsupported},
		{"help", Message{Body: "  HELP "}, KindHelp},
		{"hi", Message{Body: "hi"}, KindHelp},
		{"start", Message{Body: "start"}, KindHelp},
		{"new", Message{Body: "new"}, KindReset},
		{"clear", Message{Body: "Clear"}, KindReset},
		{"question", Message{Body: "What is the rent?"}, KindAsk},
		{"empty", Message{Body: "   "}, KindWelcome},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.msg))
		})
	}
}

func TestParseNumMedia(t *testing.T) {
	assert.Equal(t, 2, parseNumMedia("2"))
	assert.Equal(t, 0, parseNumMedia(""))
	assert.Equal(t, 0, parseNumMedia("-1"))
	assert.Equal(t, 0, parseNumMedia("x"))
}

func TestFormatAnalysisLimitsLists(t *testing.T) {
	msg := formatAnalysis(llm.Analysis{
		Summary:   "A lease.",
		KeyPoints: []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"},
		Warnings:  []string{"w1", "w2", "w3", "w4"},
	})
	assert.Contains(t, msg, "5. k5")
	assert.NotContains(t, msg, "k6")
	assert.Contains(t, msg, "3. w3")
	assert.NotContains(t, msg, "w4")
	assert.Contains(t, msg, "⚠️ *IMPORTANT WARNINGS*")
}

func TestFormatAnalysisWithoutWarnings(t *testing.T) {
	msg := formatAnalysis(llm.Analysis{Summary: "A lease.", KeyPoints: []string{"k1"}})
	assert.NotContains(t, msg, "WARNINGS")
}

func TestFormatAnswerConfidenceEmoji(t *testing.T) {
	cases := map[llm.Confidence]string{
		llm.ConfidenceHigh:   "🎯 *Confidence: High*",
		llm.ConfidenceMedium: "📊 *Confidence: Medium*",
		llm.ConfidenceLow:    "🤔 *Confidence: Low*",
	}
	for conf, want := range cases {
		msg := formatAnswer(orchestrator.Exchange{Question: "q?", Answer: "a", Confidence: conf})
		assert.Contains(t, msg, want)
	}
}

func TestFormatAnswerIncludesExcerpt(t *testing.T) {
	msg := formatAnswer(orchestrator.Exchange{Question: "q?", Answer: "a", SourceExcerpt: "clause 4"})
	assert.Contains(t, msg, "📄 *Source Reference:*\nclause 4")
}

func TestMessagesAreClamped(t *testing.T) {
	long := strings.Repeat("é", 3000)
	msg := formatAnalysis(llm.Analysis{Summary: long})
	assert.Equal(t, MaxBodyLength, utf8.RuneCountInString(msg))
	assert.True(t, strings.HasSuffix(msg, "…"))
}

func TestFormatRateLimited(t *testing.T) {
	assert.Contains(t, formatRateLimited(30), "30 seconds")
	assert.Contains(t, formatRateLimited(250), "5 minutes")
}

func TestEveryOutcomeRendersText(t *testing.T) {
	results := []orchestrator.Result{
		orchestrator.AnalysisReady{Analysis: llm.Analysis{Summary: "s"}},
		orchestrator.ExtractionFailed{Reason: "no text"},
		orchestrator.AnalysisFailed{Reason: "down"},
		orchestrator.Superseded{},
		orchestrator.QAAnswered{Exchange: orchestrator.Exchange{Question: "q", Answer: "a"}},
		orchestrator.StillProcessing{},
		orchestrator.NoActiveDocument{},
		orchestrator.QAFailed{Reason: "down"},
		orchestrator.RateLimited{},
		orchestrator.InvalidInput{Reason: "bad"},
		orchestrator.Reset{},
	}
	for _, res := range results {
		text := orchestrator.Render[string](replies{}, res)
		assert.NotEmpty(t, text, string(res.Outcome()))
		assert.LessOrEqual(t, utf8.RuneCountInString(text), MaxBodyLength)
	}
}
