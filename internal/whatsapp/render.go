package whatsapp

import (
	"legal-ease-backend/internal/orchestrator"
)

// replies renders orchestrator outcomes as chat text.
type replies struct{}

func (replies) AnalysisReady(v orchestrator.AnalysisReady) string { return formatAnalysis(v.Analysis) }

func (replies) ExtractionFailed(v orchestrator.ExtractionFailed) string {
	return formatError(v.Reason)
}

func (replies) AnalysisFailed(v orchestrator.AnalysisFailed) string { return formatError(v.Reason) }

func (replies) Superseded(orchestrator.Superseded) string { return supersededText }

func (replies) QAAnswered(v orchestrator.QAAnswered) string {
	return formatAnswer(v.Exchange)
}

func (replies) StillProcessing(orchestrator.StillProcessing) string { return processingText }

func (replies) NoActiveDocument(orchestrator.NoActiveDocument) string { return noDocumentText }

func (replies) QAFailed(v orchestrator.QAFailed) string { return formatError(v.Reason) }

func (replies) RateLimited(v orchestrator.RateLimited) string {
	return formatRateLimited(v.RetryAfterSeconds())
}

func (replies) InvalidInput(v orchestrator.InvalidInput) string { return formatError(v.Reason) }

func (replies) Reset(orchestrator.Reset) string { return resetText }
