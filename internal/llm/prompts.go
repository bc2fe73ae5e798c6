package llm

import (
	_ "embed"
	"strings"
	"unicode/utf8"
)

// MaxPromptChars caps how much document text is sent to a backend.
const MaxPromptChars = 8000

var (
	//go:embed prompts/analysis.txt
	analysisTemplate string
	//go:embed prompts/answer.txt
	answerTemplate string
)

// AnalysisPrompt renders the analysis prompt for the given input.
func AnalysisPrompt(input AnalyzeInput) string {
	name := strings.TrimSpace(input.Filename)
	if name == "" {
		name = "document"
	}
	r := strings.NewReplacer(
		"{{filename}}", name,
		"{{document}}", Truncate(input.Text, MaxPromptChars),
	)
	return r.Replace(analysisTemplate)
}

// AnswerPrompt renders the question-answering prompt for the given input.
func AnswerPrompt(input AnswerInput) string {
	r := strings.NewReplacer(
		"{{document}}", Truncate(input.Text, MaxPromptChars),
		"{{question}}", strings.TrimSpace(input.Question),
	)
	return r.Replace(answerTemplate)
}

// Truncate returns at most max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
