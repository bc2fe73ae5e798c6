package whatsapp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"legal-ease-backend/internal/llm"
	"legal-ease-backend/internal/orchestrator"
)

// MaxBodyLength is Twilio's limit for a single WhatsApp message body.
const MaxBodyLength = 1600

const (
	maxKeyPoints = 5
	maxWarnings  = 3
)

const welcomeText = `🏛️ *Welcome to Legal EASE!*

I'm your AI legal document assistant. I can help you understand complex legal documents in plain English.

📄 *How to use:*
• Send me a PDF document
• I'll analyze it and explain the key points
• Ask me questions about specific clauses
• Get warnings about concerning terms

🚀 *Try it now:* Send me any legal document (rental agreement, contract, terms of service, etc.)

💡 *Example questions:*
• "What is the monthly rent?"
• "Can I have pets?"
• "What are the termination conditions?"

Let's make legal documents easy to understand! 📚✨`

const helpText = `🆘 *Legal EASE Help*

📄 *Document Analysis:*
• Send any PDF legal document
• Get instant AI analysis
• Identify potential concerns

💬 *Ask Questions:*
• "What is the rent amount?"
• "Can I terminate early?"
• "Are there penalty fees?"

🚀 *Supported Documents:*
• Rental agreements
• Employment contracts
• Terms of service
• Loan agreements
• Insurance policies

📱 *Commands:*
• Send "help" - Show this message
• Send "new" - Start fresh analysis
• Send PDF - Analyze document
• Ask questions - Get answers

Ready to analyze your document? Send it now! 📤`

const (
	analyzingText   = "📄 *Analyzing your document...*\n\nThis may take a few moments. I'll send you the results shortly! ⏳"
	unsupportedText = "📎 I can only read PDF documents right now. Please send your document as a PDF file."
	resetText       = "🔄 Session cleared! Send me a new document to analyze."
	noDocumentText  = "❓ Please upload a document first before asking questions!"
	processingText  = "⏳ I'm still analyzing your document. I'll send the results as soon as they're ready!"
	supersededText  = "📄 You sent a newer document, so I'll reply about that one instead."
	downloadFailed  = "Could not download your document. Please try sending it again."
	internalFailure = "An unexpected error occurred. Please try again."
)

func formatAnalysis(a llm.Analysis) string {
	var b strings.Builder
	b.WriteString("📄 *Document Analysis: your document*\n\n📋 *SUMMARY*\n")
	summary := strings.TrimSpace(a.Summary)
	if summary == "" {
		summary = "Analysis completed"
	}
	b.WriteString(summary)

	b.WriteString("\n\n✅ *KEY POINTS*")
	for i, point := range limit(a.KeyPoints, maxKeyPoints) {
		fmt.Fprintf(&b, "\n%d. %s", i+1, point)
	}

	if warnings := limit(a.Warnings, maxWarnings); len(warnings) > 0 {
		b.WriteString("\n\n⚠️ *IMPORTANT WARNINGS*")
		for i, warning := range warnings {
			fmt.Fprintf(&b, "\n%d. %s", i+1, warning)
		}
	}

	b.WriteString("\n\n💬 *Ask me questions about this document!*\nExamples:\n")
	b.WriteString("• \"What are the payment terms?\"\n• \"What happens if I terminate early?\"\n• \"Are there any hidden fees?\"")
	return clamp(b.String())
}

func formatAnswer(answer orchestrator.Exchange) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❓ *Your Question:*\n%s\n\n🤖 *Legal EASE AI Answer:*\n%s", answer.Question, answer.Answer)
	if excerpt := strings.TrimSpace(answer.SourceExcerpt); excerpt != "" {
		fmt.Fprintf(&b, "\n\n📄 *Source Reference:*\n%s", excerpt)
	}
	fmt.Fprintf(&b, "\n\n%s *Confidence: %s*\n\n💡 *Ask another question or send a new document to analyze!*",
		confidenceEmoji(answer.Confidence), confidenceLabel(answer.Confidence))
	return clamp(b.String())
}

func formatError(reason string) string {
	return clamp(fmt.Sprintf("❌ *Oops! Something went wrong*\n\n%s\n\n🔄 *Please try again:*\n"+
		"• Make sure your PDF is readable\n• File size should be under 10MB\n• Send one document at a time\n\nNeed help? Just ask! 💬", reason))
}

func formatRateLimited(seconds int) string {
	wait := fmt.Sprintf("%d seconds", seconds)
	if seconds >= 120 {
		wait = fmt.Sprintf("%d minutes", (seconds+59)/60)
	}
	return fmt.Sprintf("⏱️ You're sending messages too quickly. Please try again in %s.", wait)
}

func confidenceEmoji(c llm.Confidence) string {
	switch c {
	case llm.ConfidenceHigh:
		return "🎯"
	case llm.ConfidenceLow:
		return "🤔"
	default:
		return "📊"
	}
}

func confidenceLabel(c llm.Confidence) string {
	switch c {
	case llm.ConfidenceHigh:
		return "High"
	case llm.ConfidenceLow:
		return "Low"
	default:
		return "Medium"
	}
}

func limit(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

// clamp cuts s to MaxBodyLength runes, marking the cut with an ellipsis.
func clamp(s string) string {
	if utf8.RuneCountInString(s) <= MaxBodyLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxBodyLength-1]) + "…"
}
