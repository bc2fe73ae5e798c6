package webapi

import (
	"net/http"

	"legal-ease-backend/internal/orchestrator"
)

// httpReply is a rendered outcome: either a success body or an error envelope.
type httpReply struct {
	status     int
	body       any
	code       string
	message    string
	details    any
	retryAfter int
}

func failure(status int, code, message string) httpReply {
	return httpReply{status: status, code: code, message: message}
}

// replies maps orchestrator outcomes onto HTTP statuses and JSON bodies.
type replies struct {
	sessionID string
}

func (r replies) AnalysisReady(v orchestrator.AnalysisReady) httpReply {
	return httpReply{status: http.StatusOK, body: analyzeResponse{
		Success:   true,
		SessionID: r.sessionID,
		Filename:  v.Filename,
		Analysis:  newAnalysisBody(v.Analysis),
		Metadata:  documentMetadata{PageCount: v.PageCount, TextLength: v.TextLength},
	}}
}

func (replies) ExtractionFailed(v orchestrator.ExtractionFailed) httpReply {
	return failure(http.StatusUnprocessableEntity, "pdf_extraction_error", v.Reason)
}

func (replies) AnalysisFailed(v orchestrator.AnalysisFailed) httpReply {
	return failure(http.StatusBadGateway, "analysis_error", v.Reason)
}

func (replies) Superseded(orchestrator.Superseded) httpReply {
	return failure(http.StatusConflict, "superseded", "A newer upload replaced this document")
}

func (replies) QAAnswered(v orchestrator.QAAnswered) httpReply {
	return httpReply{status: http.StatusOK, body: questionResponse{Success: true, Exchange: v.Exchange}}
}

func (replies) StillProcessing(orchestrator.StillProcessing) httpReply {
	return failure(http.StatusConflict, "still_processing", "Your document is still being analyzed. Please wait.")
}

func (replies) NoActiveDocument(orchestrator.NoActiveDocument) httpReply {
	return failure(http.StatusNotFound, "document_not_found", "No document found. Please upload a PDF first.")
}

func (replies) QAFailed(v orchestrator.QAFailed) httpReply {
	return failure(http.StatusBadGateway, "qa_error", v.Reason)
}

func (replies) RateLimited(v orchestrator.RateLimited) httpReply {
	secs := v.RetryAfterSeconds()
	reply := failure(http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests. Please try again later.")
	reply.details = map[string]any{"retryAfterSeconds": secs, "scope": v.Scope}
	reply.retryAfter = secs
	return reply
}

func (replies) InvalidInput(v orchestrator.InvalidInput) httpReply {
	status := http.StatusBadRequest
	if v.Code == orchestrator.CodeFileTooLarge {
		status = http.StatusRequestEntityTooLarge
	}
	return failure(status, v.Code, v.Reason)
}

func (replies) Reset(v orchestrator.Reset) httpReply {
	return httpReply{status: http.StatusOK, body: resetResponse{
		Success:    true,
		Message:    "Session reset. You can upload a new document.",
		HadSession: v.HadSession,
	}}
}
